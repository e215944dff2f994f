package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrOpenState is returned when the circuit breaker is open
	ErrOpenState = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when too many requests are made in half-open state
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed allows all requests through
	StateClosed State = iota

	// StateOpen rejects all requests
	StateOpen

	// StateHalfOpen allows limited requests to test recovery
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration
type Config struct {
	// Name identifies the guarded dependency in logs and metrics
	Name string

	// MaxFailures is the number of consecutive failures before opening the circuit
	MaxFailures uint

	// Timeout is how long to wait in open state before moving to half-open
	Timeout time.Duration

	// MaxHalfOpenRequests is the maximum requests allowed in half-open state
	MaxHalfOpenRequests uint

	// IsSuccessful determines if the result counts as a success.
	// Errors it accepts (a 404 from the catalog, say) do not trip the breaker.
	IsSuccessful func(error) bool

	// OnStateChange is invoked after every transition, outside the breaker lock
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns sensible defaults for circuit breaker
func DefaultConfig() Config {
	return Config{
		Name:                "default",
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
}

type transition struct {
	from, to State
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	mu               sync.RWMutex
	state            State
	failures         uint
	successes        uint
	lastStateChange  time.Time
	halfOpenRequests uint
	cfg              Config
	now              func() time.Time
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool {
			return err == nil
		}
	}
	if cfg.MaxHalfOpenRequests == 0 {
		cfg.MaxHalfOpenRequests = 1
	}

	return &CircuitBreaker{
		state:           StateClosed,
		lastStateChange: time.Now(),
		cfg:             cfg,
		now:             time.Now,
	}
}

// Name returns the configured breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// Execute runs the given function through the circuit breaker
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(err)

	return err
}

// beforeRequest checks if the request should be allowed
func (cb *CircuitBreaker) beforeRequest() error {
	var changed *transition

	cb.mu.Lock()
	err := func() error {
		switch cb.state {
		case StateClosed:
			return nil

		case StateOpen:
			if cb.now().Sub(cb.lastStateChange) > cb.cfg.Timeout {
				changed = cb.setState(StateHalfOpen)
				cb.halfOpenRequests++
				return nil
			}
			return ErrOpenState

		case StateHalfOpen:
			if cb.halfOpenRequests >= cb.cfg.MaxHalfOpenRequests {
				return ErrTooManyRequests
			}
			cb.halfOpenRequests++
			return nil

		default:
			return ErrOpenState
		}
	}()
	cb.mu.Unlock()

	cb.notify(changed)
	return err
}

// afterRequest updates the circuit breaker state based on the result
func (cb *CircuitBreaker) afterRequest(err error) {
	var changed *transition

	cb.mu.Lock()
	if cb.cfg.IsSuccessful(err) {
		changed = cb.onSuccess()
	} else {
		changed = cb.onFailure()
	}
	cb.mu.Unlock()

	cb.notify(changed)
}

func (cb *CircuitBreaker) onSuccess() *transition {
	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.MaxHalfOpenRequests {
			return cb.setState(StateClosed)
		}
	}
	return nil
}

func (cb *CircuitBreaker) onFailure() *transition {
	cb.failures++

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.MaxFailures {
			return cb.setState(StateOpen)
		}

	case StateHalfOpen:
		return cb.setState(StateOpen)
	}
	return nil
}

// setState transitions to a new state; callers hold cb.mu
func (cb *CircuitBreaker) setState(state State) *transition {
	from := cb.state
	cb.state = state
	cb.lastStateChange = cb.now()
	cb.successes = 0
	cb.halfOpenRequests = 0

	if state == StateClosed {
		cb.failures = 0
	}

	if from == state {
		return nil
	}
	return &transition{from: from, to: state}
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t == nil || cb.cfg.OnStateChange == nil {
		return
	}
	cb.cfg.OnStateChange(cb.cfg.Name, t.from, t.to)
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current failure count
func (cb *CircuitBreaker) Failures() uint {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	changed := cb.setState(StateClosed)
	cb.mu.Unlock()

	cb.notify(changed)
}
