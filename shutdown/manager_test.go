package shutdown

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"ideobatch/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	return logging.NewWithCore(zaptest.NewLogger(t).Core())
}

func TestManager_New(t *testing.T) {
	manager := NewManager(testLogger(t))

	if manager.Context() == nil {
		t.Fatal("Context should not be nil")
	}
	if manager.Context().Err() != nil {
		t.Error("context should start live")
	}
	if manager.IsShuttingDown() {
		t.Error("new manager should not be shutting down")
	}
	if manager.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", manager.timeout, DefaultTimeout)
	}
}

func TestManager_WithTimeout(t *testing.T) {
	manager := NewManager(nil, WithTimeout(5*time.Second), WithTimeout(0))
	if manager.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", manager.timeout)
	}
}

func TestManager_FirstSignalCancels(t *testing.T) {
	var forced int32
	manager := NewManager(testLogger(t), WithForceHandler(func() { atomic.AddInt32(&forced, 1) }))

	manager.handleSignal(os.Interrupt)

	select {
	case <-manager.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context should be cancelled by the first signal")
	}
	if atomic.LoadInt32(&forced) != 0 {
		t.Error("first signal should not force")
	}

	manager.handleSignal(os.Interrupt)
	if atomic.LoadInt32(&forced) != 1 {
		t.Error("second signal should call the force handler")
	}
	if manager.Signals() != 2 {
		t.Errorf("Signals() = %d, want 2", manager.Signals())
	}
}

func TestManager_WithParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	manager := NewManager(nil, WithParent(parent))

	cancel()
	select {
	case <-manager.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("cancelling the parent should cancel the run context")
	}
}

func TestManager_ShutdownRunsClosers(t *testing.T) {
	manager := NewManager(testLogger(t), WithTimeout(time.Second))
	manager.Start()

	var order []string
	manager.Register("second", 20, func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})
	manager.Register("first", 10, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("closer context should carry a deadline")
		}
		order = append(order, "first")
		return nil
	})

	if err := manager.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if len(order) != 2 || order[0] != "first" {
		t.Errorf("order = %v, want [first second]", order)
	}
	if manager.Context().Err() == nil {
		t.Error("Shutdown should cancel the run context")
	}
	if !manager.IsShuttingDown() {
		t.Error("IsShuttingDown() should be true")
	}
	if err := manager.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestManager_ShutdownReportsErrors(t *testing.T) {
	manager := NewManager(testLogger(t))
	manager.Register("history", 1, func(ctx context.Context) error { return errors.New("disk full") })

	err := manager.Shutdown()
	if err == nil || !strings.Contains(err.Error(), "history: disk full") {
		t.Errorf("Shutdown() error = %v, want the closer error", err)
	}
}
