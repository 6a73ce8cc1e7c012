package nextdns

import "time"

const (
	defaultBaseDelay   = 2500 * time.Millisecond
	defaultMaxJitter   = time.Second
	defaultMaxAttempts = 7
)

// Policy controls how rate limited requests are retried.
type Policy struct {
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	MaxAttempts int
}

// DefaultPolicy waits 2.5s, 5s, 10s ... plus up to one second of jitter, seven times.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   defaultBaseDelay,
		MaxJitter:   defaultMaxJitter,
		MaxAttempts: defaultMaxAttempts,
	}
}

// Delay returns the wait before retrying after the given zero-based attempt was rate
// limited. jitter is a fraction in [0, 1).
func (p Policy) Delay(attempt int, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter >= 1 {
		jitter = 0.999
	}
	return p.BaseDelay*time.Duration(1<<uint(attempt)) + time.Duration(jitter*float64(p.MaxJitter))
}

func (p Policy) withDefaults() Policy {
	if p == (Policy{}) {
		return DefaultPolicy()
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	if p.MaxAttempts < 0 {
		p.MaxAttempts = 0
	}
	return p
}
