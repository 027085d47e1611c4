package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "tk")

	return store, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _, done := newRedisStore(t)
	defer done()

	ctx := context.Background()

	if _, ok, err := store.Read(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	want := Token{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}
	if err := store.Write(ctx, want); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, ok, err := store.Read(ctx)
	if err != nil || !ok {
		t.Fatalf("read failed: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestRedisStoreClear(t *testing.T) {
	store, _, done := newRedisStore(t)
	defer done()

	ctx := context.Background()

	if err := store.Write(ctx, Token{AccessToken: "at"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok, err := store.Read(ctx); err != nil || ok {
		t.Fatalf("cleared store must be empty: ok=%v err=%v", ok, err)
	}

	// Clearing an already empty store is not an error.
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("double clear failed: %v", err)
	}
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	store, mr, done := newRedisStore(t)
	defer done()

	if err := mr.Set("tk:token", "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, _, err := store.Read(context.Background())
	if !errors.Is(err, ErrRecordCorrupt) {
		t.Fatalf("expected ErrRecordCorrupt, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, done := newRedisStore(t)
	defer done()
	mr.Close()

	if _, _, err := store.Read(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := store.Write(context.Background(), Token{AccessToken: "at"}); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, _ := store.Read(ctx); ok {
		t.Fatal("new memory store must be empty")
	}

	want := Token{AccessToken: "at", RefreshToken: "rt", ExpiresAt: 42}
	if err := store.Write(ctx, want); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, ok, _ := store.Read(ctx)
	if !ok || got != want {
		t.Fatalf("round trip mismatch: got %+v ok=%v", got, ok)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok, _ := store.Read(ctx); ok {
		t.Fatal("cleared store must be empty")
	}
}

func TestTokenTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	if _, ok := (Token{}).TTL(now); ok {
		t.Fatal("absent expiry must report ok=false")
	}

	tok := Token{ExpiresAt: now.Add(90 * time.Second).Unix()}
	d, ok := tok.TTL(now)
	if !ok || d != 90*time.Second {
		t.Fatalf("expected 90s ttl, got %v ok=%v", d, ok)
	}
}
