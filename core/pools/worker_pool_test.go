package pools

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Basic(t *testing.T) {
	pool := NewWorkerPool(4, 0)

	var counter atomic.Int64
	for i := 0; i < 100; i++ {
		if err := pool.Submit(func() {
			counter.Add(1)
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	pool.Close()

	if counter.Load() != 100 {
		t.Errorf("Expected 100 tasks completed, got %d", counter.Load())
	}
	stats := pool.Stats()
	if stats.TasksCompleted != 100 || stats.TasksPending != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// Close drains tasks that were queued but not yet started.
func TestWorkerPool_CloseDrains(t *testing.T) {
	pool := NewWorkerPool(2, 64)

	release := make(chan struct{})
	var done atomic.Int64
	for i := 0; i < 50; i++ {
		pool.Submit(func() {
			<-release
			done.Add(1)
		})
	}

	closed := make(chan struct{})
	go func() {
		pool.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while tasks were still blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after tasks finished")
	}

	if done.Load() != 50 {
		t.Errorf("expected 50 drained tasks, got %d", done.Load())
	}
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Close()

	if err := pool.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
	// A second Close is harmless
	pool.Close()
}

// Concurrency never exceeds the number of workers, and a full pool makes
// Submit wait instead of running the task inline.
func TestWorkerPool_BoundedConcurrency(t *testing.T) {
	const workers = 3
	pool := NewWorkerPool(workers, 1)

	var running, peak atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 30; i++ {
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()
	pool.Close()

	if p := peak.Load(); p > workers {
		t.Errorf("peak concurrency %d exceeds %d workers", p, workers)
	}
}

func TestWorkerPool_PanicContained(t *testing.T) {
	pool := NewWorkerPool(1, 4)

	var recovered atomic.Value
	pool.PanicHandler = func(v any) {
		recovered.Store(v)
	}

	var after atomic.Bool
	pool.Submit(func() { panic("boom") })
	pool.Submit(func() { after.Store(true) })
	pool.Close()

	if !after.Load() {
		t.Error("worker died after a panicking task")
	}
	if v, _ := recovered.Load().(string); !strings.Contains(v, "boom") {
		t.Errorf("panic handler got %v", recovered.Load())
	}
	if pool.Stats().TasksPanicked != 1 {
		t.Errorf("expected 1 panicked task, got %d", pool.Stats().TasksPanicked)
	}
}

// A task that never returns holds only its own worker: everything
// submitted after it is picked up by the others.
func TestWorkerPool_BlockedTaskDoesNotStrandQueue(t *testing.T) {
	pool := NewWorkerPool(2, 4)

	stuck := make(chan struct{})
	defer func() {
		close(stuck)
		pool.Close()
	}()

	pool.Submit(func() { <-stuck })

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		if err := pool.Submit(func() { wg.Done() }); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks queued behind a blocked task were never run")
	}
}

func TestWorkerPool_SubmitBlocksWhenFull(t *testing.T) {
	pool := NewWorkerPool(1, 1)

	release := make(chan struct{})
	running := make(chan struct{})
	pool.Submit(func() {
		close(running)
		<-release
	})
	<-running
	pool.Submit(func() {}) // fills the queue

	submitted := make(chan struct{})
	go func() {
		pool.Submit(func() {})
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("Submit returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-submitted:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit did not return after the queue drained")
	}
	pool.Close()

	if stats := pool.Stats(); stats.SubmitsBlocked != 1 || stats.TasksCompleted != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestBufferPool(t *testing.T) {
	bp := NewBufferPool(4096, 1024)

	br := bp.AcquireReader(strings.NewReader("abc"))
	if br.Size() != 4096 {
		t.Errorf("reader size = %d, want 4096", br.Size())
	}
	b, _ := br.Peek(3)
	if string(b) != "abc" {
		t.Errorf("reader content = %q", b)
	}
	bp.ReleaseReader(br)

	var sb strings.Builder
	bw := bp.AcquireWriter(&sb)
	bw.WriteString("xyz")
	bw.Flush()
	bp.ReleaseWriter(bw)
	if sb.String() != "xyz" {
		t.Errorf("writer output = %q", sb.String())
	}

	stats := bp.Stats()
	if stats.ReaderGets != 1 || stats.WriterGets != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func BenchmarkWorkerPool_Submit(b *testing.B) {
	pool := NewWorkerPool(8, 0)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			pool.Submit(func() {
				_ = 1 + 1
			})
		}
	})
	pool.Close()
}
