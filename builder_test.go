package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildWithDefaults(t *testing.T) {
	e, err := New().WithSeed("demo", testSeed(t)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()

	if _, err := e.Login(context.Background(), "demo", "alice", testPassword); err != nil {
		t.Fatalf("login on default build: %v", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Issuer = ""

	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected build to fail on invalid config")
	}
}

func TestBuildRejectsInvalidSeedTenant(t *testing.T) {
	if _, err := New().WithSeed("X", testSeed(t)).Build(); err == nil {
		t.Fatal("expected build to fail on malformed seed tenant id")
	}
}

func TestBuildIsSingleShot(t *testing.T) {
	b := New().WithSeed("demo", testSeed(t))
	if _, err := b.Build(); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build on same builder to fail")
	}
}

// With a Redis client configured the lockout guard lives in Redis, so the
// full lockout semantics hold against a shared backend.
func TestBuildWithRedisGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	e, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithSeed("demo", testSeed(t)).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := e.Login(ctx, "demo", "alice", "wrong-password"); err == nil {
			t.Fatalf("attempt %d should fail", i+1)
		}
	}
	if _, err := e.Login(ctx, "demo", "alice", testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked via redis guard, got %v", err)
	}
}
