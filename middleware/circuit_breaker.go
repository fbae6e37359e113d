package middleware

import (
	"errors"
	"sync"
	"time"

	"github.com/shrek82/sorm/core"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreakerMiddleware fails statement executions fast after the backend
// has produced Threshold consecutive errors, until ResetTimeout has passed.
type CircuitBreakerMiddleware struct {
	Threshold    int           // Number of failures before opening
	ResetTimeout time.Duration // Time to wait before half-open

	mu             sync.Mutex
	state          State
	failures       int
	lastFailure    time.Time
	halfOpenPassed bool
}

func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreakerMiddleware {
	return &CircuitBreakerMiddleware{
		Threshold:    threshold,
		ResetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

func (m *CircuitBreakerMiddleware) Name() string {
	return "CircuitBreaker"
}

func (m *CircuitBreakerMiddleware) Init(s *core.Session) error {
	return nil
}

func (m *CircuitBreakerMiddleware) Shutdown() error {
	return nil
}

func (m *CircuitBreakerMiddleware) Process(st *core.Statement, next core.ExecFunc) error {
	m.mu.Lock()
	switch m.state {
	case StateOpen:
		if time.Since(m.lastFailure) > m.ResetTimeout {
			m.state = StateHalfOpen
			m.halfOpenPassed = false
		} else {
			m.mu.Unlock()
			return ErrCircuitOpen
		}
	case StateHalfOpen:
		if m.halfOpenPassed {
			// allow one probe, reject the rest
			m.mu.Unlock()
			return ErrCircuitOpen
		}
		m.halfOpenPassed = true
	}
	m.mu.Unlock()

	err := next(st)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.recordFailure()
	} else {
		m.recordSuccess()
	}
	return err
}

func (m *CircuitBreakerMiddleware) recordFailure() {
	m.failures++
	m.lastFailure = time.Now()

	if m.state == StateClosed {
		if m.failures >= m.Threshold {
			m.state = StateOpen
		}
	} else if m.state == StateHalfOpen {
		m.state = StateOpen
		m.halfOpenPassed = false
	}
}

func (m *CircuitBreakerMiddleware) recordSuccess() {
	if m.state == StateHalfOpen {
		m.state = StateClosed
		m.failures = 0
		m.halfOpenPassed = false
	} else if m.state == StateClosed {
		// consecutive failures only
		m.failures = 0
	}
}
