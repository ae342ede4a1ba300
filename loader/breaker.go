package loader

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState is the state of the upstream circuit breaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // requests flow
	BreakerOpen                         // upstream considered down
	BreakerHalfOpen                     // probing recovery
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// Breaker stops hammering a data source that keeps failing. Safe for
// concurrent use.
type Breaker struct {
	cfg BreakerConfig
	log logrus.FieldLogger
	now func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

func NewBreaker(cfg BreakerConfig, log logrus.FieldLogger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{cfg: cfg, log: log, now: time.Now}
}

// Allow reports whether a request may go out now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) >= b.cfg.Cooldown {
			b.state = BreakerHalfOpen
			b.successes = 0
			b.log.WithField("breaker", b.cfg.Name).Info("circuit breaker half-open")
			return true
		}
		return false
	}
	return false
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
			b.log.WithField("breaker", b.cfg.Name).Info("circuit breaker closed")
		}
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = BreakerOpen
			b.log.WithFields(logrus.Fields{
				"breaker":  b.cfg.Name,
				"failures": b.failures,
			}).Warn("circuit breaker open")
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.successes = 0
		b.log.WithField("breaker", b.cfg.Name).Warn("circuit breaker re-opened")
	}
}

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
