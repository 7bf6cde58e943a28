// Package storetest holds the behavioural suite every store.UserStore
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/MrEthical07/userauth/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.UserStore

// Run executes the contract suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CreateAssignsID", func(t *testing.T) { testCreateAssignsID(t, newStore(t)) })
	t.Run("CreateDuplicateEmail", func(t *testing.T) { testCreateDuplicateEmail(t, newStore(t)) })
	t.Run("FindByEveryField", func(t *testing.T) { testFindByEveryField(t, newStore(t)) })
	t.Run("FindByMissing", func(t *testing.T) { testFindByMissing(t, newStore(t)) })
	t.Run("FindByInvalidCriteria", func(t *testing.T) { testFindByInvalidCriteria(t, newStore(t)) })
	t.Run("UpdateUnknownID", func(t *testing.T) { testUpdateUnknownID(t, newStore(t)) })
	t.Run("UpdateReplacesAndClearsTokens", func(t *testing.T) { testUpdateReplacesAndClearsTokens(t, newStore(t)) })
	t.Run("UpdateRejectsForeignToken", func(t *testing.T) { testUpdateRejectsForeignToken(t, newStore(t)) })
	t.Run("GuardedUpdate", func(t *testing.T) { testGuardedUpdate(t, newStore(t)) })
	t.Run("ExpectedHashUpdate", func(t *testing.T) { testExpectedHashUpdate(t, newStore(t)) })
	t.Run("ConcurrentFieldUpdates", func(t *testing.T) { testConcurrentFieldUpdates(t, newStore(t)) })
}

func mustCreate(t *testing.T, s store.UserStore, email string) *store.User {
	t.Helper()
	u, err := s.Create(context.Background(), email, "hash:"+email)
	if err != nil {
		t.Fatalf("Create(%q) error: %v", email, err)
	}
	return u
}

func testCreateAssignsID(t *testing.T, s store.UserStore) {
	a := mustCreate(t, s, "a@x.com")
	b := mustCreate(t, s, "b@x.com")

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected store-assigned ids")
	}
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q twice", a.ID)
	}
	if a.Email != "a@x.com" || a.HashedPassword != "hash:a@x.com" {
		t.Fatalf("unexpected record: %+v", a)
	}
	if a.SessionID != "" || a.ResetToken != "" {
		t.Fatalf("expected no tokens on a new record: %+v", a)
	}
}

func testCreateDuplicateEmail(t *testing.T, s store.UserStore) {
	mustCreate(t, s, "a@x.com")

	_, err := s.Create(context.Background(), "a@x.com", "other")
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func testFindByEveryField(t *testing.T, s store.UserStore) {
	ctx := context.Background()
	u := mustCreate(t, s, "a@x.com")
	mustCreate(t, s, "b@x.com")

	if err := s.Update(ctx, u.ID, store.Update{
		SessionID:  store.Set("sess-a"),
		ResetToken: store.Set("reset-a"),
	}); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	for _, c := range []store.Criteria{
		store.ByID(u.ID),
		store.ByEmail("a@x.com"),
		store.BySessionID("sess-a"),
		store.ByResetToken("reset-a"),
	} {
		got, err := s.FindBy(ctx, c)
		if err != nil {
			t.Fatalf("FindBy(%s) error: %v", c.Field, err)
		}
		if got.ID != u.ID || got.Email != "a@x.com" {
			t.Fatalf("FindBy(%s) returned %+v", c.Field, got)
		}
		if got.SessionID != "sess-a" || got.ResetToken != "reset-a" {
			t.Fatalf("FindBy(%s) returned stale tokens: %+v", c.Field, got)
		}
	}
}

func testFindByMissing(t *testing.T, s store.UserStore) {
	ctx := context.Background()
	mustCreate(t, s, "a@x.com")

	for _, c := range []store.Criteria{
		store.ByID("no-such-id"),
		store.ByEmail("nobody@x.com"),
		store.BySessionID("no-session"),
		store.ByResetToken("no-reset"),
	} {
		if _, err := s.FindBy(ctx, c); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("FindBy(%s) expected ErrNotFound, got %v", c.Field, err)
		}
	}
}

func testFindByInvalidCriteria(t *testing.T, s store.UserStore) {
	ctx := context.Background()

	if _, err := s.FindBy(ctx, store.BySessionID("")); !errors.Is(err, store.ErrInvalidCriteria) {
		t.Fatalf("expected ErrInvalidCriteria for empty value, got %v", err)
	}
	if _, err := s.FindBy(ctx, store.Criteria{Value: "x"}); !errors.Is(err, store.ErrInvalidCriteria) {
		t.Fatalf("expected ErrInvalidCriteria for missing field, got %v", err)
	}
}

func testUpdateUnknownID(t *testing.T, s store.UserStore) {
	err := s.Update(context.Background(), "no-such-id", store.Update{SessionID: store.Clear()})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testUpdateReplacesAndClearsTokens(t *testing.T, s store.UserStore) {
	ctx := context.Background()
	u := mustCreate(t, s, "a@x.com")

	if err := s.Update(ctx, u.ID, store.Update{SessionID: store.Set("s1")}); err != nil {
		t.Fatalf("Update(s1) error: %v", err)
	}
	if err := s.Update(ctx, u.ID, store.Update{SessionID: store.Set("s2")}); err != nil {
		t.Fatalf("Update(s2) error: %v", err)
	}
	if _, err := s.FindBy(ctx, store.BySessionID("s1")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected replaced session to be gone, got %v", err)
	}

	if err := s.Update(ctx, u.ID, store.Update{
		SessionID:      store.Clear(),
		HashedPassword: store.Set("new-hash"),
	}); err != nil {
		t.Fatalf("Update(clear) error: %v", err)
	}
	if _, err := s.FindBy(ctx, store.BySessionID("s2")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cleared session to be gone, got %v", err)
	}

	got, err := s.FindBy(ctx, store.ByID(u.ID))
	if err != nil {
		t.Fatalf("FindBy error: %v", err)
	}
	if got.SessionID != "" || got.HashedPassword != "new-hash" {
		t.Fatalf("unexpected record after update: %+v", got)
	}
	if got.Email != "a@x.com" {
		t.Fatalf("email must not change, got %q", got.Email)
	}

	// clearing an already empty field is a no-op
	if err := s.Update(ctx, u.ID, store.Update{SessionID: store.Clear()}); err != nil {
		t.Fatalf("idempotent clear error: %v", err)
	}
}

func testUpdateRejectsForeignToken(t *testing.T, s store.UserStore) {
	ctx := context.Background()
	a := mustCreate(t, s, "a@x.com")
	b := mustCreate(t, s, "b@x.com")

	if err := s.Update(ctx, a.ID, store.Update{SessionID: store.Set("shared")}); err != nil {
		t.Fatalf("Update(a) error: %v", err)
	}
	err := s.Update(ctx, b.ID, store.Update{
		SessionID:      store.Set("shared"),
		HashedPassword: store.Set("must-not-commit"),
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := s.FindBy(ctx, store.ByID(b.ID))
	if err != nil {
		t.Fatalf("FindBy(b) error: %v", err)
	}
	if got.HashedPassword != "hash:b@x.com" || got.SessionID != "" {
		t.Fatalf("rejected update partially committed: %+v", got)
	}

	owner, err := s.FindBy(ctx, store.BySessionID("shared"))
	if err != nil || owner.ID != a.ID {
		t.Fatalf("expected token to stay with a, got %+v, %v", owner, err)
	}
}

func testGuardedUpdate(t *testing.T, s store.UserStore) {
	ctx := context.Background()
	u := mustCreate(t, s, "a@x.com")

	if err := s.Update(ctx, u.ID, store.Update{ResetToken: store.Set("r1")}); err != nil {
		t.Fatalf("Update(r1) error: %v", err)
	}

	guard := store.ByResetToken("r1")
	consume := store.Update{
		HashedPassword: store.Set("new-hash"),
		ResetToken:     store.Clear(),
		Guard:          &guard,
	}
	if err := s.Update(ctx, u.ID, consume); err != nil {
		t.Fatalf("guarded Update error: %v", err)
	}

	consume.HashedPassword = store.Set("replayed-hash")
	if err := s.Update(ctx, u.ID, consume); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict on replay, got %v", err)
	}

	got, err := s.FindBy(ctx, store.ByID(u.ID))
	if err != nil {
		t.Fatalf("FindBy error: %v", err)
	}
	if got.HashedPassword != "new-hash" || got.ResetToken != "" {
		t.Fatalf("unexpected record after guarded updates: %+v", got)
	}

	bad := store.Update{ResetToken: store.Clear(), Guard: &store.Criteria{Field: store.FieldResetToken}}
	if err := s.Update(ctx, u.ID, bad); !errors.Is(err, store.ErrInvalidCriteria) {
		t.Fatalf("expected ErrInvalidCriteria for empty guard, got %v", err)
	}
}

func testExpectedHashUpdate(t *testing.T, s store.UserStore) {
	ctx := context.Background()
	u := mustCreate(t, s, "a@x.com")
	original := u.HashedPassword

	if err := s.Update(ctx, u.ID, store.Update{HashedPassword: store.Set("reset-hash")}); err != nil {
		t.Fatalf("Update(reset-hash) error: %v", err)
	}

	stale := store.Update{
		HashedPassword:       store.Set("upgraded-old"),
		SessionID:            store.Set("sess-1"),
		ExpectHashedPassword: &original,
	}
	if err := s.Update(ctx, u.ID, stale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale hash, got %v", err)
	}

	got, err := s.FindBy(ctx, store.ByID(u.ID))
	if err != nil {
		t.Fatalf("FindBy error: %v", err)
	}
	if got.HashedPassword != "reset-hash" || got.SessionID != "" {
		t.Fatalf("stale update leaked into record: %+v", got)
	}
	if _, err := s.FindBy(ctx, store.BySessionID("sess-1")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no session index for rejected update, got %v", err)
	}

	current := store.Update{SessionID: store.Set("sess-2"), ExpectHashedPassword: store.Set("reset-hash")}
	if err := s.Update(ctx, u.ID, current); err != nil {
		t.Fatalf("Update with current hash error: %v", err)
	}
}

// Two writers touch different fields of the same record. Neither write may be
// lost; contention surfaces as ErrUnavailable and is retried here.
func testConcurrentFieldUpdates(t *testing.T, s store.UserStore) {
	ctx := context.Background()
	u := mustCreate(t, s, "a@x.com")

	const rounds = 25
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	write := func(field string, mk func(v string) store.Update) {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			up := mk(fmt.Sprintf("%s-%d", field, i))
			for {
				err := s.Update(ctx, u.ID, up)
				if err == nil {
					break
				}
				if errors.Is(err, store.ErrUnavailable) {
					continue
				}
				errs <- err
				return
			}
		}
	}

	wg.Add(2)
	go write("sess", func(v string) store.Update { return store.Update{SessionID: store.Set(v)} })
	go write("reset", func(v string) store.Update { return store.Update{ResetToken: store.Set(v)} })
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent Update error: %v", err)
	}

	got, err := s.FindBy(ctx, store.ByID(u.ID))
	if err != nil {
		t.Fatalf("FindBy error: %v", err)
	}
	wantSess := fmt.Sprintf("sess-%d", rounds-1)
	wantReset := fmt.Sprintf("reset-%d", rounds-1)
	if got.SessionID != wantSess || got.ResetToken != wantReset {
		t.Fatalf("lost update: got session=%q reset=%q", got.SessionID, got.ResetToken)
	}
	if _, err := s.FindBy(ctx, store.BySessionID(wantSess)); err != nil {
		t.Fatalf("session index out of step: %v", err)
	}
	if _, err := s.FindBy(ctx, store.ByResetToken(wantReset)); err != nil {
		t.Fatalf("reset index out of step: %v", err)
	}
}
