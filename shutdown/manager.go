package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ideobatch/logging"
)

// DefaultTimeout bounds the closers run by Shutdown.
const DefaultTimeout = 30 * time.Second

// ExitForced is the process exit code used when a second signal arrives.
const ExitForced = 130

// Manager owns the run context. SIGINT or SIGTERM cancels it; a second
// signal calls the force handler, which exits the process by default.
//
// Usage:
//
//	m := shutdown.NewManager(logger)
//	m.Start()
//	defer m.Shutdown()
//	report := dispatcher.Run(m.Context(), jobs)
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration
	onForce func()

	ctx    context.Context
	cancel context.CancelFunc

	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the deadline handed to closers.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithForceHandler replaces the default os.Exit(ExitForced).
func WithForceHandler(fn func()) Option {
	return func(m *Manager) {
		if fn != nil {
			m.onForce = fn
		}
	}
}

// WithParent derives the run context from parent instead of Background.
func WithParent(parent context.Context) Option {
	return func(m *Manager) {
		m.cancel()
		m.ctx, m.cancel = context.WithCancel(parent)
	}
}

// NewManager creates a manager. A nil logger discards output.
func NewManager(logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  DefaultTimeout,
		onForce:  func() { os.Exit(ExitForced) },
		ctx:      ctx,
		cancel:   cancel,
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("Received second signal, forcing exit")
		m.onForce()
	})
	return m
}

// Context is cancelled by the first signal or by Cancel.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Cancel cancels the run context without a signal.
func (m *Manager) Cancel() {
	m.cancel()
}

// Register adds a closer. See Registry.Register.
func (m *Manager) Register(name string, priority int, fn CloseFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered closer",
		zap.String("name", name),
		zap.Int("priority", priority))
}

// Start begins listening for SIGINT and SIGTERM. Extra calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.handleSignal(sig)
		}
	}()
}

func (m *Manager) handleSignal(sig os.Signal) {
	if m.signals.Increment() == 1 {
		m.logger.Info("Received signal, cancelling pending requests",
			zap.String("signal", sig.String()))
		m.cancel()
	}
}

// Shutdown stops signal delivery, cancels the run context and runs every
// closer with the configured timeout. Later calls return nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	if started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}
	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	errs := m.registry.Shutdown(ctx)
	for _, err := range errs {
		m.logger.Error("Closer failed", zap.Error(err))
	}
	m.logger.Debug("Closers finished",
		zap.Strings("closers", m.registry.Names()),
		zap.Duration("duration", time.Since(start)))

	if len(errs) > 0 {
		return fmt.Errorf("shutdown had %d errors: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// IsShuttingDown reports whether Shutdown has been called.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Signals returns how many signals have been received.
func (m *Manager) Signals() int {
	return m.signals.Count()
}
