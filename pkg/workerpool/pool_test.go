package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPool_RunsAllTasks(t *testing.T) {
	p := New(4)
	defer p.Close()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if !p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		}) {
			t.Fatal("Submit() returned false on open pool")
		}
	}
	wg.Wait()

	if got := count.Load(); got != 100 {
		t.Errorf("ran %d tasks, want 100", got)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := New(3)
	defer p.Close()

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			inFlight.Add(-1)
		})
	}
	wg.Wait()

	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
}

func TestPool_CloseRejectsSubmit(t *testing.T) {
	p := New(2)
	p.Close()

	if p.Submit(func() {}) {
		t.Error("Submit() after Close should return false")
	}
	// Close is idempotent.
	p.Close()
}

func TestPool_SurvivesPanickingTask(t *testing.T) {
	p := New(2)
	defer p.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(func() {
		defer wg.Done()
		panic("task exploded")
	})
	wg.Wait()

	var ran atomic.Bool
	wg.Add(1)
	p.Submit(func() {
		defer wg.Done()
		ran.Store(true)
	})
	wg.Wait()

	if !ran.Load() {
		t.Error("pool stopped running tasks after a panic")
	}
}

func TestPool_NilTaskIgnored(t *testing.T) {
	p := New(1)
	defer p.Close()

	if p.Submit(nil) {
		t.Error("Submit(nil) should return false")
	}
}
