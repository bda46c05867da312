package quiesce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/assert"
)

func TestCounterWaitsForHolder(t *testing.T) {
	var ctr counter
	var returned atomic.Bool

	ctr.Acquire()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctr.Wait()
		returned.Store(true)
	}()

	time.Sleep(10 * time.Millisecond)
	assert.That(t, !returned.Load())
	assert.That(t, !ctr.Zero())

	ctr.Release()
	<-done
	assert.That(t, returned.Load())
	assert.That(t, ctr.Zero())
}

func TestCounterWaitUnderChurn(t *testing.T) {
	var ctr counter
	var stop atomic.Bool

	// short Acquire/Release pairs leave the count at zero between them, which
	// a spinning Wait must be able to observe.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for !stop.Load() {
			ctr.Acquire()
			ctr.Release()
		}
	}()

	ctr.Acquire()
	waited := make(chan struct{})
	go func() {
		defer close(waited)
		ctr.Wait()
	}()

	select {
	case <-waited:
		t.Fatal("wait returned while the counter was held")
	case <-time.After(10 * time.Millisecond):
	}

	ctr.Release()
	<-waited

	stop.Store(true)
	wg.Wait()
	assert.That(t, ctr.Zero())
}

func TestCounterUnderflow(t *testing.T) {
	defer func() { assert.NotNil(t, recover()) }()
	var ctr counter
	ctr.Release()
}
