package redisstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/userauth/store"
	"github.com/MrEthical07/userauth/store/storetest"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.UserStore {
		_, rdb := newTestRedis(t)
		return New(rdb, "test")
	})
}

func TestKeyLayout(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := New(rdb, "app")
	ctx := context.Background()

	u, err := s.Create(ctx, "a@x.com", "h")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := s.Update(ctx, u.ID, store.Update{SessionID: store.Set("sess"), ResetToken: store.Set("rst")}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	for _, key := range []string{"app:u:" + u.ID, "app:e:a@x.com", "app:s:sess", "app:r:rst"} {
		if !mr.Exists(key) {
			t.Fatalf("expected key %q to exist; keys=%v", key, mr.Keys())
		}
	}

	if err := s.Update(ctx, u.ID, store.Update{SessionID: store.Clear(), ResetToken: store.Clear()}); err != nil {
		t.Fatalf("Update(clear) error: %v", err)
	}
	if mr.Exists("app:s:sess") || mr.Exists("app:r:rst") {
		t.Fatalf("expected token indexes removed; keys=%v", mr.Keys())
	}
}

func TestDefaultPrefix(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := New(rdb, "")

	if _, err := s.Create(context.Background(), "a@x.com", "h"); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !mr.Exists("ua:e:a@x.com") {
		t.Fatalf("expected default prefix; keys=%v", mr.Keys())
	}
}

func TestStaleIndexIsNotFound(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := New(rdb, "t")
	ctx := context.Background()

	u, err := s.Create(ctx, "a@x.com", "h")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	// index left behind by a writer that crashed mid-way
	if err := mr.Set("t:s:orphan", u.ID); err != nil {
		t.Fatalf("seed orphan index: %v", err)
	}

	if _, err := s.FindBy(ctx, store.BySessionID("orphan")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stale index, got %v", err)
	}
}

func TestCorruptRecord(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := New(rdb, "t")

	if err := mr.Set("t:u:bad", "\x01\x00"); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}

	_, err := s.FindBy(context.Background(), store.ByID("bad"))
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRedisDownIsUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := New(rdb, "t")
	ctx := context.Background()

	u, err := s.Create(ctx, "a@x.com", "h")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	mr.Close()

	if _, err := s.Create(ctx, "b@x.com", "h"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Create expected ErrUnavailable, got %v", err)
	}
	if _, err := s.FindBy(ctx, store.ByEmail("a@x.com")); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("FindBy expected ErrUnavailable, got %v", err)
	}
	if err := s.Update(ctx, u.ID, store.Update{SessionID: store.Set("x")}); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Update expected ErrUnavailable, got %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Ping expected ErrUnavailable, got %v", err)
	}
}

func TestCodecRoundTripKeepsTokens(t *testing.T) {
	in := &store.User{
		ID:             "id-1",
		Email:          "a@x.com",
		HashedPassword: "$2a$10$" + strings.Repeat("x", 53),
		SessionID:      "s",
	}
	data, err := encodeRecord(in)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	out, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.ID != in.ID || out.Email != in.Email || out.HashedPassword != in.HashedPassword || out.SessionID != "s" || out.ResetToken != "" {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if _, err := decodeRecord(append(data, 0)); !errors.Is(err, errCorruptRecord) {
		t.Fatalf("expected trailing bytes to be rejected, got %v", err)
	}
}
