package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Rate-limited features.
const (
	FeatureHormone = "hormone"
	FeatureFace    = "face"
	FeatureJourney = "journey"
	FeatureLead    = "lead"
	FeatureUpload  = "upload"
)

const rateLimitWindow = time.Hour

// Counter increments the hit count for (ip, feature, window) and returns the
// new total.
type Counter interface {
	Increment(ctx context.Context, ip, feature string, window time.Time) (int, error)
}

// RateLimiter enforces per-IP hourly thresholds. Counter failures let the
// request through.
type RateLimiter struct {
	counter Counter
	limits  map[string]int
	now     func() time.Time
}

func NewRateLimiter(counter Counter, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		limits: map[string]int{
			FeatureHormone: cfg.Hormone,
			FeatureFace:    cfg.Face,
			FeatureJourney: cfg.Journey,
			FeatureLead:    cfg.Lead,
			FeatureUpload:  cfg.Upload,
		},
		now: time.Now,
	}
}

// Allow records one hit and reports whether the caller is within the limit.
// A nil limiter, a missing counter or a non-positive threshold allow
// everything.
func (l *RateLimiter) Allow(ctx context.Context, ip, feature string) bool {
	if l == nil || l.counter == nil {
		return true
	}
	limit := l.limits[feature]
	if limit <= 0 {
		return true
	}

	window := l.now().UTC().Truncate(rateLimitWindow)
	count, err := l.counter.Increment(ctx, ip, feature, window)
	if err != nil {
		rateLimitErrorsTotal.WithLabelValues(feature).Inc()
		slog.Warn("Rate limit check failed, allowing request", "error", err, "feature", feature)
		return true
	}
	if count > limit {
		rateLimitRejectionsTotal.WithLabelValues(feature).Inc()
		slog.Info("Rate limit exceeded", "feature", feature, "ip", ip, "count", count, "limit", limit)
		return false
	}
	return true
}

// PostgresCounter calls the increment_rate_limit SQL function installed by
// repository.AutoMigrate.
type PostgresCounter struct {
	pool *pgxpool.Pool
}

func NewPostgresCounter(pool *pgxpool.Pool) *PostgresCounter {
	return &PostgresCounter{pool: pool}
}

func (c *PostgresCounter) Increment(ctx context.Context, ip, feature string, window time.Time) (int, error) {
	var count int
	err := c.pool.QueryRow(ctx, "SELECT increment_rate_limit($1, $2, $3)", ip, feature, window).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment_rate_limit: %w", err)
	}
	return count, nil
}

// Prune deletes windows that started before before and returns how many
// rows went away.
func (c *PostgresCounter) Prune(ctx context.Context, before time.Time) (int, error) {
	var removed int
	if err := c.pool.QueryRow(ctx, "SELECT prune_rate_limits($1)", before).Scan(&removed); err != nil {
		return 0, fmt.Errorf("prune_rate_limits: %w", err)
	}
	return removed, nil
}

// StartPruning removes counter rows older than a day once per interval
// until ctx is cancelled.
func (c *PostgresCounter) StartPruning(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				removed, err := c.Prune(ctx, now.Add(-24*time.Hour))
				if err != nil {
					slog.Error("Failed to prune rate limit counters", "error", err)
					continue
				}
				slog.Info("Pruned rate limit counters", "removed", removed)
			}
		}
	}()
}

// RedisCounter keeps one expiring key per window. Expiry replaces pruning.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Increment(ctx context.Context, ip, feature string, window time.Time) (int, error) {
	key := fmt.Sprintf("ratelimit:%s:%s:%d", feature, ip, window.Unix())
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*rateLimitWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis rate limit: %w", err)
	}
	return int(incr.Val()), nil
}
