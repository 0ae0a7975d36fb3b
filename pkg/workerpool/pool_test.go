package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := New("test", 4, 16)

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if !p.TrySubmit(func() {
			defer wg.Done()
			n.Add(1)
		}) {
			wg.Done()
			t.Fatalf("submit %d rejected", i)
		}
	}
	wg.Wait()
	p.Close()

	if n.Load() != 10 {
		t.Fatalf("expected 10 tasks, got %d", n.Load())
	}
}

func TestPoolSurvivesPanic(t *testing.T) {
	p := New("panic", 1, 4)
	done := make(chan struct{})

	p.TrySubmit(func() { panic("boom") })
	p.TrySubmit(func() { close(done) })
	<-done
	p.Close()
}

func TestTrySubmitAfterClose(t *testing.T) {
	p := New("closed", 1, 1)
	p.Close()
	if p.TrySubmit(func() {}) {
		t.Fatalf("expected submit after close to be rejected")
	}
}

func TestTrySubmitWhenFull(t *testing.T) {
	p := New("full", 1, 1)
	block := make(chan struct{})
	started := make(chan struct{})

	p.TrySubmit(func() {
		close(started)
		<-block
	})
	<-started
	if !p.TrySubmit(func() {}) {
		t.Fatalf("buffer slot should accept one task")
	}
	if p.TrySubmit(func() {}) {
		t.Fatalf("expected full pool to reject")
	}
	close(block)
	p.Close()
}
