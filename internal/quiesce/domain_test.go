package quiesce

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDomain(t *testing.T) {
	var d Domain
	var r Reader

	for i := 0; i < 10; i++ {
		tok := d.Acquire(&r)
		assert.Equal(t, tok.Gen(), 2*i)
		assert.That(t, r.Reading())
		tok.Release()
		assert.That(t, !r.Reading())
		assert.Equal(t, d.Increment().Wait([]*Reader{&r}), 2*i+2)
	}

	assert.Equal(t, d.Gen(), 20)
	assert.Equal(t, d.Writers(), 0)
}

func TestDomainDoubleAcquire(t *testing.T) {
	var d Domain
	var r Reader
	d.Acquire(&r)
	defer func() { assert.NotNil(t, recover()) }()
	d.Acquire(&r)
}

func TestDomainWaitsForOlderReaders(t *testing.T) {
	var d Domain
	var old, young Reader

	oldTok := d.Acquire(&old)
	p := d.Increment()
	youngTok := d.Acquire(&young)
	defer youngTok.Release()

	done := make(chan uint64)
	go func() { done <- p.Wait([]*Reader{&old, &young}) }()

	select {
	case <-done:
		t.Fatal("writer finished while an older reader was reading")
	case <-time.After(20 * time.Millisecond):
	}

	oldTok.Release()
	assert.Equal(t, <-done, p.Gen())
}

func TestDomainConcurrentWriters(t *testing.T) {
	var d Domain
	var r Reader

	tok := d.Acquire(&r)
	p1, p2 := d.Increment(), d.Increment()
	assert.Equal(t, d.Writers(), 2)

	var finished atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	for _, p := range []Pending{p1, p2} {
		go func(p Pending) {
			defer wg.Done()
			p.Wait([]*Reader{&r})
			finished.Add(1)
		}(p)
	}

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, finished.Load(), int32(0))

	tok.Release()
	wg.Wait()
	assert.Equal(t, d.Writers(), 0)
}

func TestDomainRace(t *testing.T) {
	num := 2000
	var d Domain
	np := runtime.GOMAXPROCS(-1)

	// shared is a list published by pointer swap; writers unlink the old list,
	// wait for readers and then poison it. readers must never see poison.
	type list struct{ dead atomic.Bool }
	var shared atomic.Pointer[list]
	shared.Store(new(list))

	readers := make([]*Reader, np)
	for i := range readers {
		readers[i] = new(Reader)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2 * np)
	for i := 0; i < np; i++ {
		go func(r *Reader) {
			defer wg.Done()
			for i := 0; i < num; i++ {
				tok := d.Acquire(r)
				l := shared.Load()
				runtime.Gosched()
				if l.dead.Load() {
					t.Error("read a reclaimed list")
				}
				tok.Release()
			}
		}(readers[i])

		go func() {
			defer wg.Done()
			for i := 0; i < num/10; i++ {
				mu.Lock()
				old := shared.Swap(new(list))
				mu.Unlock()

				d.Increment().Wait(readers)
				old.dead.Store(true)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkDomain(b *testing.B) {
	b.Run("Acquire", func(b *testing.B) {
		var d Domain
		b.ReportAllocs()

		b.RunParallel(func(pb *testing.PB) {
			r := new(Reader)
			for pb.Next() {
				d.Acquire(r).Release()
			}
		})
	})

	b.Run("Increment", func(b *testing.B) {
		var d Domain
		readers := make([]*Reader, 8)
		for i := range readers {
			readers[i] = new(Reader)
		}
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			d.Increment().Wait(readers)
		}
	})
}
