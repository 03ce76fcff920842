package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Threshold(t *testing.T) {
	limiter := NewRateLimiter(newFakeCounter(), RateLimitConfig{Hormone: 2})
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "1.2.3.4", FeatureHormone))
	assert.True(t, limiter.Allow(ctx, "1.2.3.4", FeatureHormone))
	assert.False(t, limiter.Allow(ctx, "1.2.3.4", FeatureHormone))

	// Other addresses and features are counted separately.
	assert.True(t, limiter.Allow(ctx, "5.6.7.8", FeatureHormone))
}

func TestRateLimiter_NewWindowResets(t *testing.T) {
	limiter := NewRateLimiter(newFakeCounter(), RateLimitConfig{Face: 1})
	now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "ip", FeatureFace))
	assert.False(t, limiter.Allow(ctx, "ip", FeatureFace))

	now = now.Add(time.Hour)
	assert.True(t, limiter.Allow(ctx, "ip", FeatureFace))
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("connection refused")
	limiter := NewRateLimiter(counter, RateLimitConfig{Journey: 1})

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(context.Background(), "ip", FeatureJourney))
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	var nilLimiter *RateLimiter
	assert.True(t, nilLimiter.Allow(context.Background(), "ip", FeatureLead))

	noCounter := NewRateLimiter(nil, RateLimitConfig{Lead: 1})
	assert.True(t, noCounter.Allow(context.Background(), "ip", FeatureLead))
	assert.True(t, noCounter.Allow(context.Background(), "ip", FeatureLead))

	zero := NewRateLimiter(newFakeCounter(), RateLimitConfig{})
	assert.True(t, zero.Allow(context.Background(), "ip", FeatureLead))
}

func TestUploadLimiter(t *testing.T) {
	limiter := NewUploadLimiter(2)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("ip"))
	assert.True(t, limiter.Allow("ip"))
	assert.False(t, limiter.Allow("ip"))
	assert.True(t, limiter.Allow("other"))

	// One token refills every 30 minutes.
	now = now.Add(31 * time.Minute)
	assert.True(t, limiter.Allow("ip"))

	now = now.Add(3 * time.Hour)
	limiter.Cleanup(time.Hour)
	assert.Empty(t, limiter.limiters)
}
