package shutdown

import (
	"sync"
	"testing"
)

func TestSignalCounter_ForceAtThreshold(t *testing.T) {
	forced := 0
	counter := NewSignalCounter(2, func() { forced++ })

	if got := counter.Increment(); got != 1 {
		t.Errorf("first Increment() = %d, want 1", got)
	}
	if forced != 0 {
		t.Error("force callback should not run on the first signal")
	}

	counter.Increment()
	if forced != 1 {
		t.Errorf("force callback ran %d times, want 1", forced)
	}
	if counter.Count() != 2 {
		t.Errorf("Count() = %d, want 2", counter.Count())
	}
}

func TestSignalCounter_NilCallback(t *testing.T) {
	counter := NewSignalCounter(1, nil)
	counter.Increment()
	counter.Increment()
	if counter.Count() != 2 {
		t.Errorf("Count() = %d, want 2", counter.Count())
	}
}

func TestSignalCounter_Concurrent(t *testing.T) {
	counter := NewSignalCounter(1000, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.Increment()
		}()
	}
	wg.Wait()

	if counter.Count() != 50 {
		t.Errorf("Count() = %d, want 50", counter.Count())
	}
}
