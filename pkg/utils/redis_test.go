package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := OpenRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	_ = rdb.Close()

	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestLockIsSingleHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rdb, err := OpenRedis(ctx, RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rdb.Close()

	ok, err := AcquireLock(ctx, rdb, "lock:reassign", "a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got %v %v", ok, err)
	}
	ok, err = AcquireLock(ctx, rdb, "lock:reassign", "b", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail, got %v %v", ok, err)
	}

	// a foreign token must not release the lock
	if err := ReleaseLock(ctx, rdb, "lock:reassign", "b"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists("lock:reassign") {
		t.Fatalf("expected lock to survive foreign release")
	}

	if err := ReleaseLock(ctx, rdb, "lock:reassign", "a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = AcquireLock(ctx, rdb, "lock:reassign", "b", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release, got %v %v", ok, err)
	}
}

func TestLockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rdb, err := OpenRedis(ctx, RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rdb.Close()

	if ok, _ := AcquireLock(ctx, rdb, "k", "a", time.Second); !ok {
		t.Fatalf("expected acquire")
	}
	mr.FastForward(2 * time.Second)
	if ok, _ := AcquireLock(ctx, rdb, "k", "b", time.Second); !ok {
		t.Fatalf("expected acquire after ttl")
	}
}

func TestLockValidatesArgs(t *testing.T) {
	if _, err := AcquireLock(context.Background(), nil, "k", "t", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
