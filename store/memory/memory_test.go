package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/userauth/store"
	"github.com/MrEthical07/userauth/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.UserStore {
		return New()
	})
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, "a@x.com", "h")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected no record, got %d", s.Len())
	}
}

func TestFindByReturnsCopy(t *testing.T) {
	s := New()
	u, err := s.Create(context.Background(), "a@x.com", "h")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	u.Email = "mutated@x.com"

	got, err := s.FindBy(context.Background(), store.ByID(u.ID))
	if err != nil {
		t.Fatalf("FindBy error: %v", err)
	}
	if got.Email != "a@x.com" {
		t.Fatalf("store shares memory with callers: %q", got.Email)
	}
}
