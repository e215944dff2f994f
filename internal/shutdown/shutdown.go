// Package shutdown coordinates graceful process termination.
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

	"github.com/glefebvre/cinefinder/internal/logger"
)

// Hook releases one resource
type Hook func(context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Handler runs registered hooks once, newest first, when the process is asked
// to stop
type Handler struct {
	mu             sync.Mutex
	hooks          []namedHook
	timeout        time.Duration
	signalChan     chan os.Signal
	ctx            context.Context
	cancel         context.CancelFunc
	isShuttingDown bool
	err            error
	done           chan struct{}
	logger         *logger.FieldLogger
}

// New creates a new shutdown handler. timeout bounds the whole hook run.
func New(timeout time.Duration, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.AppLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		timeout:    timeout,
		signalChan: make(chan os.Signal, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     log.Component("shutdown"),
	}
}

// Register adds a hook. Hooks run sequentially in reverse registration order,
// so a server registered after its database stops before the database closes.
func (h *Handler) Register(name string, fn Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: fn})
}

// Context is cancelled as soon as shutdown starts
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Wait blocks until SIGINT, SIGTERM or Trigger, then runs the hooks
func (h *Handler) Wait() error {
	signal.Notify(h.signalChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(h.signalChan)

	select {
	case sig := <-h.signalChan:
		h.logger.WithFields(map[string]interface{}{"signal": sig.String()}).Info("shutdown signal received")
	case <-h.ctx.Done():
	}
	return h.Shutdown()
}

// Shutdown runs every hook with a shared deadline and returns their joined
// errors. Later calls wait for the first run and return its result.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.isShuttingDown {
		h.mu.Unlock()
		<-h.done
		return h.err
	}
	h.isShuttingDown = true
	hooks := make([]namedHook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		start := time.Now()
		if err := hook.fn(ctx); err != nil {
			h.logger.WithFields(map[string]interface{}{"hook": hook.name}).Error("shutdown hook failed", err)
			errs = append(errs, fmt.Errorf("%s: %w", hook.name, err))
			continue
		}
		h.logger.WithFields(map[string]interface{}{
			"hook":        hook.name,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("shutdown hook completed")
	}

	h.err = errors.Join(errs...)
	close(h.done)
	return h.err
}

// IsShuttingDown returns true if shutdown has been initiated
func (h *Handler) IsShuttingDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isShuttingDown
}

// Trigger asks a pending Wait to start shutting down
func (h *Handler) Trigger() {
	select {
	case h.signalChan <- syscall.SIGTERM:
	default:
	}
}
