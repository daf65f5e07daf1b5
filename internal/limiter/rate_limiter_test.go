package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRateLimiter_CapsUnsafeConfig(t *testing.T) {
	rl := NewRateLimiter(1000)
	assert.Equal(t, MaxSafetyRPS, rl.MaxRPS())
}

func TestNewRateLimiter_AcceptsSafeConfig(t *testing.T) {
	rl := NewRateLimiter(10)
	assert.Equal(t, 10, rl.MaxRPS())
}

func TestNewRateLimiter_ZeroUsesDefault(t *testing.T) {
	rl := NewRateLimiter(0)
	assert.Equal(t, MaxSafetyRPS, rl.MaxRPS())
}

func TestWait_RespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(1)

	// 耗尽突发额度
	for i := 0; i < DefaultBurstSize; i++ {
		assert.NoError(t, rl.Wait(context.Background()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}
