package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// SmartLimiter tries a shared Redis counter first and silently falls back to
// the local fixed-window limiter when Redis is not configured, unreachable or
// returns anything unexpected. Availability wins over globally exact counts.
type SmartLimiter struct {
	local *Limiter
	rdb   *redis.Client
}

// NewSmartLimiter wraps local with an optional Redis backend; rdb may be nil,
// in which case every check is served locally.
func NewSmartLimiter(local *Limiter, rdb *redis.Client) *SmartLimiter {
	return &SmartLimiter{local: local, rdb: rdb}
}

// Local exposes the fallback limiter (used for IP-only checks and for pruning).
func (s *SmartLimiter) Local() *Limiter { return s.local }

// CheckSmart performs one batched Redis round trip: INCR, EXPIRE-if-absent and
// a remaining-TTL read. The first increment in a window sets the expiry; later
// ones leave it untouched so the window stays fixed.
func (s *SmartLimiter) CheckSmart(ctx context.Context, key string, limit int, window time.Duration) Result {
	now := time.Now()
	if s.rdb == nil {
		return s.local.Check(key, limit, window, now)
	}

	cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	pipe := s.rdb.Pipeline()
	incr := pipe.Incr(cctx, key)
	pipe.ExpireNX(cctx, key, window)
	pttl := pipe.PTTL(cctx, key)
	if _, err := pipe.Exec(cctx); err != nil {
		return s.local.Check(key, limit, window, now)
	}

	count, err := incr.Result()
	if err != nil || count <= 0 {
		return s.local.Check(key, limit, window, now)
	}
	ttl, err := pttl.Result()
	if err != nil || ttl <= 0 {
		// key without expiry (or PTTL raced the expiry away): treat the
		// configured window as remaining
		ttl = window
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   now.Add(ttl),
	}
}
