package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// backendTimeout bounds every redis call made from the request path. A slow
// backend must not stall requests; it resolves through FailMode instead.
const backendTimeout = 500 * time.Millisecond

// windowStore abstracts the sorted-set operations the sliding window needs.
// The production implementation runs on go-redis pipelines.
type windowStore interface {
	// Purge drops members scored at or before cutoff and reports how many
	// remain plus the oldest remaining timestamp (zero when empty).
	Purge(ctx context.Context, key string, cutoff time.Time) (int64, time.Time, error)
	// Add records one request at the given time and refreshes the key TTL.
	Add(ctx context.Context, key string, at time.Time, member string, ttl time.Duration) error
	// Clear removes the identifier's whole window.
	Clear(ctx context.Context, key string) error
}

// RedisLimiter is a true sliding-window limiter over a shared redis backend,
// for deployments where several instances serve the same clients.
type RedisLimiter struct {
	cfg    Config
	store  windowStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewRedis(client *redis.Client, cfg Config, logger zerolog.Logger) *RedisLimiter {
	return newRedisLimiter(&redisStore{client: client}, cfg, logger)
}

func newRedisLimiter(store windowStore, cfg Config, logger zerolog.Logger) *RedisLimiter {
	return &RedisLimiter{
		cfg:    cfg.withDefaults(),
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (r *RedisLimiter) Check(ctx context.Context, identifier string) Result {
	key := r.cfg.KeyPrefix + ":" + identifier
	now := r.now()

	cctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	count, oldest, err := r.store.Purge(cctx, key, now.Add(-r.cfg.Window))
	if err != nil {
		return r.resolveBackendFailure(err, now)
	}

	if count >= int64(r.cfg.MaxRequests) {
		resetAt := oldest.Add(r.cfg.Window)
		if oldest.IsZero() {
			resetAt = now.Add(r.cfg.Window)
		}
		retryAfter := resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{Allowed: false, ResetAt: resetAt, RetryAfter: retryAfter}
	}

	// Millisecond scores collide under load; the uuid fragment keeps every
	// request a distinct member.
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
	if err := r.store.Add(cctx, key, now, member, r.cfg.Window+time.Minute); err != nil {
		return r.resolveBackendFailure(err, now)
	}

	return Result{
		Allowed:   true,
		Remaining: r.cfg.MaxRequests - int(count) - 1,
		ResetAt:   now.Add(r.cfg.Window),
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, identifier string) bool {
	return r.Check(ctx, identifier).Allowed
}

func (r *RedisLimiter) Reset(ctx context.Context, identifier string) error {
	cctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	return r.store.Clear(cctx, r.cfg.KeyPrefix+":"+identifier)
}

func (r *RedisLimiter) resolveBackendFailure(err error, now time.Time) Result {
	if r.cfg.FailMode == FailClosed {
		r.logger.Warn().Err(err).
			Str("key_prefix", r.cfg.KeyPrefix).
			Msg("rate limit backend unavailable, denying request")
		return Result{
			Allowed:    false,
			ResetAt:    now.Add(r.cfg.Window),
			RetryAfter: r.cfg.Window,
		}
	}
	r.logger.Warn().Err(err).
		Str("key_prefix", r.cfg.KeyPrefix).
		Msg("rate limit backend unavailable, allowing request")
	return Result{
		Allowed:   true,
		Remaining: r.cfg.MaxRequests - 1,
		ResetAt:   now.Add(r.cfg.Window),
	}
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Purge(ctx context.Context, key string, cutoff time.Time) (int64, time.Time, error) {
	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff.UnixMilli(), 10))
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	var oldest time.Time
	if members := oldestCmd.Val(); len(members) > 0 {
		oldest = time.UnixMilli(int64(members[0].Score))
	}
	return countCmd.Val(), oldest, nil
}

func (s *redisStore) Add(ctx context.Context, key string, at time.Time, member string, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
