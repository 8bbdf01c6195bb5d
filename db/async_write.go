package db

import (
	"context"
	"sync"
	"time"
)

// DefaultChannelCapacity is the default buffer size for async write channels.
const DefaultChannelCapacity = 100

// DefaultDrainTimeout is the maximum time to wait for pending writes during shutdown.
const DefaultDrainTimeout = 30 * time.Second

// WriteOperation is one queued write.
type WriteOperation[T any] struct {
	Data T
	// Timestamp when the operation was queued
	Timestamp time.Time
}

// WriteHandler processes one operation. Implementations handle their own
// error logging; the writer only counts failures.
type WriteHandler[T any] func(op WriteOperation[T]) error

// AsyncWriter moves writes off the caller's goroutine through a buffered
// channel and a single background consumer.
type AsyncWriter[T any] struct {
	writeChan chan WriteOperation[T]
	handler   WriteHandler[T]
	drain     time.Duration
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
	failed  int
}

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	// ChannelCapacity is the buffer size for pending writes
	ChannelCapacity int
	// DrainTimeout is the maximum wait time during shutdown
	DrainTimeout time.Duration
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		DrainTimeout:    DefaultDrainTimeout,
	}
}

// NewAsyncWriter creates a writer with the default configuration. Call
// Start before queueing.
func NewAsyncWriter[T any](handler WriteHandler[T]) *AsyncWriter[T] {
	return NewAsyncWriterWithConfig(handler, DefaultAsyncWriterConfig())
}

// NewAsyncWriterWithConfig creates a writer with custom configuration.
func NewAsyncWriterWithConfig[T any](handler WriteHandler[T], config AsyncWriterConfig) *AsyncWriter[T] {
	if config.ChannelCapacity < 0 {
		config.ChannelCapacity = 0
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncWriter[T]{
		writeChan: make(chan WriteOperation[T], config.ChannelCapacity),
		handler:   handler,
		drain:     config.DrainTimeout,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background consumer. Extra calls are no-ops.
func (w *AsyncWriter[T]) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.closed {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.processWrites()
}

func (w *AsyncWriter[T]) processWrites() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drainChannel()
			return
		case op := <-w.writeChan:
			w.handle(op)
		}
	}
}

// drainChannel processes whatever is still buffered.
func (w *AsyncWriter[T]) drainChannel() {
	for {
		select {
		case op := <-w.writeChan:
			w.handle(op)
		default:
			return
		}
	}
}

func (w *AsyncWriter[T]) handle(op WriteOperation[T]) {
	if err := w.handler(op); err != nil {
		w.mu.Lock()
		w.failed++
		w.mu.Unlock()
	}
}

// Write queues data without blocking. It returns false when the buffer is
// full or the writer is closed.
func (w *AsyncWriter[T]) Write(data T) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	select {
	case w.writeChan <- WriteOperation[T]{Data: data, Timestamp: time.Now()}:
		return true
	default:
		return false
	}
}

// WriteWithTimeout queues data, waiting up to timeout for buffer space.
func (w *AsyncWriter[T]) WriteWithTimeout(data T, timeout time.Duration) bool {
	op := WriteOperation[T]{Data: data, Timestamp: time.Now()}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return false
	}

	select {
	case w.writeChan <- op:
		return true
	case <-timer.C:
		return false
	case <-w.ctx.Done():
		return false
	}
}

// Pending returns the number of operations waiting in the buffer.
func (w *AsyncWriter[T]) Pending() int {
	return len(w.writeChan)
}

// Failed returns how many handler calls returned an error.
func (w *AsyncWriter[T]) Failed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

// Stop rejects new writes, drains the buffer and waits for the consumer.
func (w *AsyncWriter[T]) Stop() {
	w.markClosed()
	w.cancel()
	w.wg.Wait()
}

// StopWithTimeout is Stop with a bound on the wait. It reports whether the
// drain finished in time.
func (w *AsyncWriter[T]) StopWithTimeout(timeout time.Duration) bool {
	w.markClosed()
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close is StopWithTimeout with the configured drain timeout.
func (w *AsyncWriter[T]) Close() bool {
	return w.StopWithTimeout(w.drain)
}

func (w *AsyncWriter[T]) markClosed() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// IsStarted returns whether the background consumer is running.
func (w *AsyncWriter[T]) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}
