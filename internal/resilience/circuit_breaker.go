package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen means the target is unavailable and the request was
	// aborted without attempting the network call. Distinct from a timeout.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

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

// CircuitBreaker isolates one downstream target (keyed by domain). Half-open
// admission is accounted per in-flight call: at most halfOpenMax trial calls
// may be in flight, and a cancelled call releases its slot without touching
// breaker state.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMax      int

	state            State
	failures         int
	successes        int
	halfOpenInFlight int
	lastFailTime     time.Time
	mu               sync.Mutex

	onStateChange func(name string, from, to State)
}

type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenMaxCalls int
	OnStateChange    func(name string, from, to State)
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 3
	}

	return &CircuitBreaker{
		name:             cfg.Name,
		failureThreshold: cfg.FailureThreshold,
		recoveryTimeout:  cfg.RecoveryTimeout,
		halfOpenMax:      cfg.HalfOpenMaxCalls,
		state:            StateClosed,
		onStateChange:    cfg.OnStateChange,
	}
}

// Call is one admitted request. Exactly one of Success, Failure, or Cancel
// must be invoked when the request completes.
type Call struct {
	cb       *CircuitBreaker
	halfOpen bool
	done     bool
}

// Allow admits a request or rejects it with ErrCircuitOpen. Admission and
// state transitions are atomic relative to concurrent callers: no two calls
// can both observe half-open and exceed the trial-call cap.
func (cb *CircuitBreaker) Allow() (*Call, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return &Call{cb: cb}, nil

	case StateOpen:
		if time.Since(cb.lastFailTime) > cb.recoveryTimeout {
			cb.transitionTo(StateHalfOpen)
			cb.halfOpenInFlight = 1
			return &Call{cb: cb, halfOpen: true}, nil
		}
		return nil, ErrCircuitOpen

	case StateHalfOpen:
		if cb.halfOpenInFlight+cb.successes >= cb.halfOpenMax {
			return nil, ErrCircuitOpen
		}
		cb.halfOpenInFlight++
		return &Call{cb: cb, halfOpen: true}, nil
	}

	return nil, ErrCircuitOpen
}

// Execute wraps fn with breaker accounting.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	call, err := cb.Allow()
	if err != nil {
		return err
	}

	if err := fn(); err != nil {
		call.Failure()
		return err
	}

	call.Success()
	return nil
}

func (c *Call) Success() {
	cb := c.cb
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if c.done {
		return
	}
	c.done = true

	if c.halfOpen {
		cb.halfOpenInFlight--
	}

	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.transitionTo(StateClosed)
		}
	}
}

func (c *Call) Failure() {
	cb := c.cb
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if c.done {
		return
	}
	c.done = true

	if c.halfOpen {
		cb.halfOpenInFlight--
	}

	cb.lastFailTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		cb.transitionTo(StateOpen)
	}
}

// Cancel releases the in-flight slot without recording an outcome. Used when
// the caller's context is cancelled or the request was served from cache.
func (c *Call) Cancel() {
	cb := c.cb
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if c.done {
		return
	}
	c.done = true

	if c.halfOpen {
		cb.halfOpenInFlight--
	}
}

func (cb *CircuitBreaker) transitionTo(newState State) {
	oldState := cb.state
	cb.state = newState
	cb.failures = 0
	cb.successes = 0
	if newState != StateHalfOpen {
		cb.halfOpenInFlight = 0
	}

	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, oldState, newState)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenInFlight = 0
}

func (cb *CircuitBreaker) Stats() (state State, failures int, lastFail time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failures, cb.lastFailTime
}
