package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glefebvre/cinefinder/internal/logger"
)

func newHandler(timeout time.Duration) *Handler {
	return New(timeout, logger.Discard())
}

func TestNew(t *testing.T) {
	timeout := 5 * time.Second
	h := newHandler(timeout)

	if h.timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, h.timeout)
	}
	if h.IsShuttingDown() {
		t.Error("expected IsShuttingDown to be false")
	}
	if len(h.hooks) != 0 {
		t.Errorf("expected 0 hooks, got %d", len(h.hooks))
	}
	if h.Context().Err() != nil {
		t.Error("expected context to be live before shutdown")
	}
}

func TestShutdown_RunsHooksNewestFirst(t *testing.T) {
	h := newHandler(5 * time.Second)

	var order []string
	for _, name := range []string{"database", "cache", "http"} {
		h.Register(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := h.Shutdown(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := []string{"http", "cache", "database"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d hooks to run, got %d", len(expected), len(order))
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("hook %d: expected %s, got %s", i, expected[i], order[i])
		}
	}
	if !h.IsShuttingDown() {
		t.Error("expected IsShuttingDown to be true")
	}
	if h.Context().Err() == nil {
		t.Error("expected context to be cancelled")
	}
}

func TestShutdown_JoinsErrors(t *testing.T) {
	h := newHandler(5 * time.Second)

	errCache := errors.New("cache close failed")
	errDB := errors.New("database close failed")
	ran := 0

	h.Register("database", func(ctx context.Context) error { ran++; return errDB })
	h.Register("ok", func(ctx context.Context) error { ran++; return nil })
	h.Register("cache", func(ctx context.Context) error { ran++; return errCache })

	err := h.Shutdown()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, errCache) || !errors.Is(err, errDB) {
		t.Errorf("expected both hook errors, got %v", err)
	}
	if ran != 3 {
		t.Errorf("expected every hook to run, got %d", ran)
	}
}

func TestShutdown_HooksShareDeadline(t *testing.T) {
	h := newHandler(50 * time.Millisecond)

	h.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := h.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("shutdown took too long: %v", elapsed)
	}
}

func TestShutdown_OnlyOnce(t *testing.T) {
	h := newHandler(5 * time.Second)

	var mu sync.Mutex
	calls := 0
	h.Register("counter", func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Shutdown()
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected hook to run once, ran %d times", calls)
	}
}

func TestShutdown_RepeatedCallReturnsFirstResult(t *testing.T) {
	h := newHandler(5 * time.Second)
	errBoom := errors.New("boom")
	h.Register("boom", func(ctx context.Context) error { return errBoom })

	first := h.Shutdown()
	second := h.Shutdown()
	if !errors.Is(first, errBoom) || !errors.Is(second, errBoom) {
		t.Errorf("expected both calls to report the hook error, got %v and %v", first, second)
	}
}

func TestWait_Trigger(t *testing.T) {
	h := newHandler(5 * time.Second)

	done := make(chan struct{})
	h.Register("marker", func(ctx context.Context) error {
		close(done)
		return nil
	})

	result := make(chan error, 1)
	go func() { result <- h.Wait() }()
	h.Trigger()

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Trigger")
	}

	select {
	case <-done:
	default:
		t.Error("expected hook to have run")
	}
}

func TestWait_ReturnsAfterDirectShutdown(t *testing.T) {
	h := newHandler(5 * time.Second)

	result := make(chan error, 1)
	go func() { result <- h.Wait() }()

	if err := h.Shutdown(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Shutdown")
	}
}
