package userauth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/userauth/store"
	"github.com/MrEthical07/userauth/store/memory"
)

func TestPasswordResetScenario(t *testing.T) {
	storeBackends(t, func(t *testing.T, s store.UserStore) {
		ctx := context.Background()
		m := newTestManager(t, testConfig(), s)
		if _, err := m.Register(ctx, "a@x.com", "pw1"); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		r1, err := m.RequestPasswordReset(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("RequestPasswordReset failed: %v", err)
		}
		if r1 == "" {
			t.Fatal("expected reset token")
		}

		if err := m.ConfirmPasswordReset(ctx, r1, "pw2"); err != nil {
			t.Fatalf("ConfirmPasswordReset failed: %v", err)
		}
		if _, err := m.Login(ctx, "a@x.com", "pw1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected old password rejected, got %v", err)
		}
		if _, err := m.Login(ctx, "a@x.com", "pw2"); err != nil {
			t.Fatalf("Login with new password failed: %v", err)
		}

		if err := m.ConfirmPasswordReset(ctx, r1, "pw3"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected replay to fail with ErrInvalidToken, got %v", err)
		}
		if _, err := m.Login(ctx, "a@x.com", "pw2"); err != nil {
			t.Fatalf("replay must not change the password: %v", err)
		}
	})
}

func TestPasswordResetUnknownEmail(t *testing.T) {
	m := newTestManager(t, testConfig(), memory.New())

	for _, email := range []string{"nobody@x.com", ""} {
		tok, err := m.RequestPasswordReset(context.Background(), email)
		if !errors.Is(err, ErrNoSuchUser) {
			t.Fatalf("RequestPasswordReset(%q) expected ErrNoSuchUser, got %v", email, err)
		}
		if tok != "" {
			t.Fatalf("expected no token, got %q", tok)
		}
	}

	snap := m.MetricsSnapshot()
	if snap.Counters[MetricPasswordResetUnknownEmail] != 2 || snap.Counters[MetricPasswordResetRequest] != 2 {
		t.Fatalf("unexpected reset metrics: %+v", snap.Counters)
	}
}

func TestPasswordResetSecondRequestReplacesToken(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, testConfig(), memory.New())
	if _, err := m.Register(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	r1, err := m.RequestPasswordReset(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	r2, err := m.RequestPasswordReset(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if r1 == r2 {
		t.Fatal("expected a fresh reset token")
	}

	if err := m.ConfirmPasswordReset(ctx, r1, "pw2"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected superseded token rejected, got %v", err)
	}
	if err := m.ConfirmPasswordReset(ctx, r2, "pw2"); err != nil {
		t.Fatalf("ConfirmPasswordReset(r2) failed: %v", err)
	}
}

func TestPasswordResetConfirmInputValidation(t *testing.T) {
	s := &stubStore{}
	m := newTestManager(t, testConfig(), s)
	ctx := context.Background()

	if err := m.ConfirmPasswordReset(ctx, "", "pw"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
	if err := m.ConfirmPasswordReset(ctx, "tok", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty password, got %v", err)
	}
	if s.calls.Load() != 0 {
		t.Fatalf("expected no store calls, got %d", s.calls.Load())
	}

	if err := m.ConfirmPasswordReset(ctx, "unknown", "pw"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown token, got %v", err)
	}
}

func TestPasswordResetKeepsSessionByDefault(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, testConfig(), memory.New())
	if _, err := m.Register(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	sess, _ := m.Login(ctx, "a@x.com", "pw1")
	r1, _ := m.RequestPasswordReset(ctx, "a@x.com")

	if err := m.ConfirmPasswordReset(ctx, r1, "pw2"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}
	if _, err := m.ResolveSession(ctx, sess); err != nil {
		t.Fatalf("expected session to survive reset, got %v", err)
	}
}

func TestPasswordResetRevokesSessionWhenConfigured(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.PasswordReset.RevokeSession = true
	m := newTestManager(t, cfg, memory.New())
	if _, err := m.Register(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	sess, _ := m.Login(ctx, "a@x.com", "pw1")
	r1, _ := m.RequestPasswordReset(ctx, "a@x.com")

	if err := m.ConfirmPasswordReset(ctx, r1, "pw2"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}
	if _, err := m.ResolveSession(ctx, sess); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected session revoked, got %v", err)
	}
}

func TestPasswordResetReplayRaceSingleSuccess(t *testing.T) {
	storeBackends(t, func(t *testing.T, s store.UserStore) {
		ctx := context.Background()
		m := newTestManager(t, testConfig(), s)
		if _, err := m.Register(ctx, "a@x.com", "pw1"); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		challenge, err := m.RequestPasswordReset(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("RequestPasswordReset failed: %v", err)
		}

		const racers = 4
		start := make(chan struct{})
		results := make(chan error, racers)
		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				results <- m.ConfirmPasswordReset(ctx, challenge, "new-password-123")
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		success, invalid := 0, 0
		for err := range results {
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrInvalidToken):
				invalid++
			default:
				t.Fatalf("expected nil or ErrInvalidToken, got %v", err)
			}
		}
		if success != 1 || invalid != racers-1 {
			t.Fatalf("expected one success, got success=%d invalid=%d", success, invalid)
		}
	})
}

func TestPasswordResetConfirmFailsWhenStoreUnavailable(t *testing.T) {
	rec := &store.User{ID: "u1", Email: "a@x.com", ResetToken: "r1"}
	s := &stubStore{
		findFn: func(context.Context, store.Criteria) (*store.User, error) {
			cp := *rec
			return &cp, nil
		},
		updateFn: func(context.Context, string, store.Update) error {
			return store.ErrUnavailable
		},
	}
	m := newTestManager(t, testConfig(), s)

	err := m.ConfirmPasswordReset(context.Background(), "r1", "pw2")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
