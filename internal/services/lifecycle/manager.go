// Package lifecycle coordinates orderly teardown: components register a stop
// function and are shut down in reverse registration order when a termination
// signal arrives.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// StopFunc tears one component down. It must respect ctx's deadline.
type StopFunc func(ctx context.Context) error

type entry struct {
	name string
	stop StopFunc
}

// Manager collects stop functions and runs them once on shutdown. Later
// registrations stop first, so a component never outlives what it depends on.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	entries []entry
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{timeout: timeout, logger: logger}
}

// Register adds a component's stop function under a name used in shutdown logs.
func (m *Manager) Register(name string, stop StopFunc) {
	if stop == nil {
		return
	}
	m.mu.Lock()
	m.entries = append(m.entries, entry{name: name, stop: stop})
	m.mu.Unlock()
}

// Listen arms SIGTERM/SIGINT handling; the first signal invokes cancel.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(signals)
		received := <-signals
		m.logger.Info("termination signal received", zap.String("signal", received.String()))
		cancel()
	}()
}

// Shutdown stops every registered component in reverse order within the
// configured timeout. A failing component is logged and skipped so the rest
// still get their chance; all failures are joined into the returned error.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	entries := make([]entry, len(m.entries))
	copy(entries, m.entries)
	m.mu.Unlock()

	var failures error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		started := time.Now()
		if err := e.stop(ctx); err != nil {
			m.logger.Error("component shutdown failed",
				zap.String("component", e.name),
				zap.Error(err))
			failures = errors.Join(failures, err)
			continue
		}
		m.logger.Info("component stopped",
			zap.String("component", e.name),
			zap.Duration("took", time.Since(started)))
	}
	return failures
}
