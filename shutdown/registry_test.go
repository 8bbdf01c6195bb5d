package shutdown

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRegistry_New(t *testing.T) {
	registry := NewRegistry()
	if registry.Count() != 0 {
		t.Errorf("expected 0 entries, got %d", registry.Count())
	}
	if registry.IsClosed() {
		t.Error("new registry should not be closed")
	}
}

func TestRegistry_PriorityOrdering(t *testing.T) {
	registry := NewRegistry()

	var order []string
	record := func(name string) CloseFunc {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	registry.Register("logger", 30, record("logger"))
	registry.Register("history", 10, record("history"))
	registry.Register("database", 20, record("database"))
	registry.Register("history-b", 10, record("history-b"))

	want := []string{"history", "history-b", "database", "logger"}
	if names := registry.Names(); !reflect.DeepEqual(names, want) {
		t.Errorf("Names() = %v, want %v", names, want)
	}

	if errs := registry.Shutdown(context.Background()); len(errs) != 0 {
		t.Fatalf("Shutdown() errors = %v", errs)
	}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("execution order = %v, want %v", order, want)
	}
}

func TestRegistry_ErrorsDoNotStopLaterClosers(t *testing.T) {
	registry := NewRegistry()
	ran := false

	registry.Register("bad", 1, func(ctx context.Context) error { return errors.New("boom") })
	registry.Register("good", 2, func(ctx context.Context) error {
		ran = true
		return nil
	})

	errs := registry.Shutdown(context.Background())
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "bad: boom") {
		t.Errorf("Shutdown() errors = %v, want one named error", errs)
	}
	if !ran {
		t.Error("closer after the failing one should still run")
	}
}

func TestRegistry_ShutdownOnce(t *testing.T) {
	registry := NewRegistry()
	calls := 0
	registry.Register("once", 1, func(ctx context.Context) error {
		calls++
		return nil
	})

	registry.Shutdown(context.Background())
	registry.Shutdown(context.Background())

	if calls != 1 {
		t.Errorf("closer ran %d times, want 1", calls)
	}
	if !registry.IsClosed() {
		t.Error("registry should be closed")
	}

	registry.Register("late", 1, func(ctx context.Context) error { return nil })
	if registry.Count() != 1 {
		t.Errorf("registration after Shutdown should be ignored, count = %d", registry.Count())
	}
}

func TestRegistry_IgnoresNil(t *testing.T) {
	registry := NewRegistry()
	registry.Register("nil", 1, nil)
	if registry.Count() != 0 {
		t.Errorf("nil closer should be ignored, count = %d", registry.Count())
	}
}
