package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if pool.Workers() != runtime.GOMAXPROCS(0) {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want GOMAXPROCS", n, pool.Workers())
		}
		pool.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	work := make([]func(), 100)
	for i := range work {
		work[i] = func() { counter.Add(1) }
	}
	pool.ExecuteAll(work)

	if got := counter.Load(); got != 100 {
		t.Errorf("counter = %d, want 100", got)
	}
}

func TestWorkerPool_ExecuteAll_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()
	pool.ExecuteAll(nil)
}

func TestWorkerPool_ExecuteAllAfterCloseRunsInline(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	ran := 0
	pool.ExecuteAll([]func(){func() { ran++ }, func() { ran++ }})
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	const x, y, z = 16, 16, 2
	var mu sync.Mutex
	seen := make(map[[3]uint32]int)
	pool.Dispatch(x, y, z, func(g [3]uint32) {
		mu.Lock()
		seen[g]++
		mu.Unlock()
	})

	if len(seen) != x*y*z {
		t.Fatalf("visited %d workgroups, want %d", len(seen), x*y*z)
	}
	for g, n := range seen {
		if n != 1 {
			t.Errorf("workgroup %v visited %d times", g, n)
		}
		if g[0] >= x || g[1] >= y || g[2] >= z {
			t.Errorf("workgroup %v out of range", g)
		}
	}
}

func TestWorkerPool_DispatchZero(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()
	pool.Dispatch(0, 4, 1, func([3]uint32) { t.Error("fn called for empty grid") })
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()
	if pool.IsRunning() {
		t.Error("pool should not be running after Close")
	}
}

func TestWorkerPool_WorkStealing(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	// Every slow task lands on worker 0's queue; the others must steal.
	work := make([]func(), 16)
	var done atomic.Int64
	for i := range work {
		if i%4 == 0 {
			work[i] = func() {
				time.Sleep(5 * time.Millisecond)
				done.Add(1)
			}
		} else {
			work[i] = func() { done.Add(1) }
		}
	}

	start := time.Now()
	pool.ExecuteAll(work)
	if done.Load() != 16 {
		t.Errorf("done = %d, want 16", done.Load())
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ExecuteAll took %v", elapsed)
	}
}

func TestWorkerPool_NoGoroutineLeak(t *testing.T) {
	before := runtime.NumGoroutine()
	for range 5 {
		pool := NewWorkerPool(4)
		pool.Dispatch(4, 4, 1, func([3]uint32) {})
		pool.Close()
	}
	time.Sleep(20 * time.Millisecond)
	if after := runtime.NumGoroutine(); after > before+2 {
		t.Errorf("goroutines: before=%d after=%d", before, after)
	}
}
