package nextdns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyDelay(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		attempt int
		jitter  float64
		want    time.Duration
	}{
		{0, 0, 2500 * time.Millisecond},
		{1, 0, 5 * time.Second},
		{2, 0.5, 10*time.Second + 500*time.Millisecond},
		{6, 0, 160 * time.Second},
		{-1, 0, 2500 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt, tt.jitter), "attempt %d", tt.attempt)
	}

	assert.Less(t, p.Delay(0, 1.5), 3500*time.Millisecond)
}

func TestPolicyDefaults(t *testing.T) {
	assert.Equal(t, DefaultPolicy(), Policy{}.withDefaults())

	p := Policy{MaxAttempts: -1}.withDefaults()
	assert.Equal(t, 2500*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 0, p.MaxAttempts)
}
