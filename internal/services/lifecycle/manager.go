package lifecycle

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
)

// closeGrace is what a hook gets once the shutdown budget is spent, enough to
// flush and close a file.
const closeGrace = time.Second

// ShutdownFunc describes a graceful shutdown callback.
type ShutdownFunc func(ctx context.Context) error

type component struct {
	name string
	fn   ShutdownFunc
}

// Manager owns the stop order of the gateway's long-lived resources and
// reacts to OS signals.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu         sync.Mutex
	components []component
	done       bool
}

// New creates a lifecycle manager with the desired timeout.
func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a shutdown hook. Hooks run in reverse registration order, so
// resources opened first are released last. A hook registered after Shutdown
// ran is executed right away.
func (m *Manager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	if !m.done {
		m.components = append(m.components, component{name: name, fn: fn})
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	_ = m.stop(ctx, component{name: name, fn: fn})
}

// Shutdown runs every hook once within the configured timeout. Hooks reached
// after the timeout still get closeGrace, so the access log and the journal are
// flushed even when draining the server used the whole budget. Later calls are
// no-ops.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return nil
	}
	m.done = true

	var result error
	for i := len(m.components) - 1; i >= 0; i-- {
		result = errors.Join(result, m.stop(ctx, m.components[i]))
	}
	return result
}

func (m *Manager) stop(ctx context.Context, c component) error {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), closeGrace)
		defer cancel()
		m.logger.Warn("shutdown budget spent, closing with grace period", zap.String("component", c.name))
	}

	started := time.Now()
	if err := c.fn(ctx); err != nil {
		m.logger.Error("shutdown hook failed", zap.String("component", c.name), zap.Error(err))
		return fmt.Errorf("%s: %w", c.name, err)
	}
	m.logger.Info("component stopped", zap.String("component", c.name), zap.Duration("took", time.Since(started)))
	return nil
}

// Listen waits in the background for SIGINT or SIGTERM and then invokes cancel.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}
