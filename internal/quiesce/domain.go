package quiesce

import (
	"sync/atomic"
	"unsafe"
)

const cacheLine = 64 // typical size of a cache line

// readerState is the tag and reading flag published by a reader.
type readerState struct {
	tag     atomic.Uint64
	reading atomic.Bool
}

// Reader is the per goroutine half of the protocol. It is padded to a cache
// line because writers poll it while its owner writes it.
type Reader struct {
	readerState
	_ [cacheLine - unsafe.Sizeof(readerState{})%cacheLine]byte
}

// Reading reports if the reader is inside a read section.
func (r *Reader) Reading() bool { return r.reading.Load() }

// Domain hands out monotonically increasing generation tags to readers and
// lets writers wait for every reader tagged before them. The zero value is
// safe to use.
type Domain struct {
	tag     atomic.Uint64
	writers counter
}

// Acquire tags r with the current generation, marks it as reading and bumps
// the generation, so every later reader gets a strictly newer tag. The
// returned Token must be Released when the read section ends. A Reader may
// only hold one Token at a time.
func (d *Domain) Acquire(r *Reader) Token {
	if r.reading.Load() {
		panic("quiesce: reader acquired twice")
	}

	gen := d.tag.Load()
	r.tag.Store(gen)
	r.reading.Store(true)
	d.tag.Add(1)

	return Token{r: r, gen: gen}
}

// Increment bumps the generation and registers a writer. The returned Pending
// must be Waited on, with every reader that may still observe what the writer
// unpublished, before the writer reuses it. It is safe to be called
// concurrently.
func (d *Domain) Increment() Pending {
	d.writers.Acquire()
	return Pending{d: d, gen: d.tag.Add(1)}
}

// Gen returns the current generation.
func (d *Domain) Gen() uint64 { return d.tag.Load() }

// Writers returns the number of writers currently inside Wait or between
// Increment and Wait.
func (d *Domain) Writers() int { return int(d.writers.count.Load()) }
