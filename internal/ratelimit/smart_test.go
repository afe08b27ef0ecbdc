package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func TestCheckSmart_NoRedisUsesLocal(t *testing.T) {
	s := NewSmartLimiter(NewLimiter(), nil)

	r1 := s.CheckSmart(context.Background(), "k", 2, time.Minute)
	if !r1.Allowed || r1.Remaining != 1 {
		t.Fatalf("want local first hit allowed remaining=1, got %+v", r1)
	}
	s.CheckSmart(context.Background(), "k", 2, time.Minute)
	if r3 := s.CheckSmart(context.Background(), "k", 2, time.Minute); r3.Allowed {
		t.Fatalf("local fallback should enforce the limit, got %+v", r3)
	}
}

func TestCheckSmart_UnreachableRedisFallsBack(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1", // nothing listens here
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewSmartLimiter(NewLimiter(), rdb)
	r := s.CheckSmart(context.Background(), "k", 1, time.Minute)
	if !r.Allowed {
		t.Fatalf("redis failure must fall back to local, got %+v", r)
	}
	if r2 := s.CheckSmart(context.Background(), "k", 1, time.Minute); r2.Allowed {
		t.Fatalf("fallback limiter must keep counting, got %+v", r2)
	}
}
