package userauth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/MrEthical07/userauth/store"
	"github.com/MrEthical07/userauth/store/memory"
)

func TestSecurityInvariantLogsCarryNoSecrets(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s := memory.New()
	m, err := New().WithConfig(testConfig()).WithStore(s).WithLogger(logger).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	const pw1, pw2 = "first-secret-pw", "second-secret-pw"
	user, _ := m.Register(ctx, "a@x.com", pw1)
	sess, _ := m.Login(ctx, "a@x.com", pw1)
	_, _ = m.Login(ctx, "a@x.com", "wrong-secret-pw")
	reset, _ := m.RequestPasswordReset(ctx, "a@x.com")
	_ = m.ConfirmPasswordReset(ctx, reset, pw2)
	_ = m.Logout(ctx, user.ID)

	rec, _ := s.FindBy(ctx, store.ByID(user.ID))
	out := buf.String()
	if !strings.Contains(out, user.ID) {
		t.Fatal("expected logs to reference the user id")
	}
	for _, needle := range []string{pw1, pw2, "wrong-secret-pw", sess, reset, rec.HashedPassword} {
		if needle != "" && strings.Contains(out, needle) {
			t.Fatalf("secret %q leaked into logs", needle)
		}
	}
}

func TestSecurityInvariantStoredPasswordIsHashed(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	m := newTestManager(t, testConfig(), s)

	a, _ := m.Register(ctx, "a@x.com", "same-password")
	b, _ := m.Register(ctx, "b@x.com", "same-password")
	recA, _ := s.FindBy(ctx, store.ByID(a.ID))
	recB, _ := s.FindBy(ctx, store.ByID(b.ID))

	if strings.Contains(recA.HashedPassword, "same-password") {
		t.Fatal("plaintext stored")
	}
	if recA.HashedPassword == recB.HashedPassword {
		t.Fatal("expected salted hashes to differ for equal passwords")
	}
	if recA.SessionID != "" || recA.ResetToken != "" {
		t.Fatalf("new record must carry no tokens: %+v", recA)
	}
}

func TestSecurityInvariantTokensUniqueAcrossUsers(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, testConfig(), memory.New())

	const users = 16
	for i := 0; i < users; i++ {
		email := string(rune('a'+i)) + "@x.com"
		if _, err := m.Register(ctx, email, "pw"); err != nil {
			t.Fatalf("Register(%s) failed: %v", email, err)
		}
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			sess, err := m.Login(ctx, email, "pw")
			if err != nil {
				t.Errorf("Login(%s) failed: %v", email, err)
				return
			}
			reset, err := m.RequestPasswordReset(ctx, email)
			if err != nil {
				t.Errorf("RequestPasswordReset(%s) failed: %v", email, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, tok := range []string{sess, reset} {
				if seen[tok] {
					t.Errorf("duplicate token issued: %s", tok)
				}
				seen[tok] = true
			}
		}(string(rune('a'+i)) + "@x.com")
	}
	wg.Wait()

	for tok := range seen {
		if len(tok) < 32 {
			t.Fatalf("token %q carries fewer than 128 bits", tok)
		}
	}
}

func TestSecurityInvariantResetTokenIsNotASession(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, testConfig(), memory.New())
	if _, err := m.Register(ctx, "a@x.com", "pw"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	reset, _ := m.RequestPasswordReset(ctx, "a@x.com")

	if _, err := m.ResolveSession(ctx, reset); err == nil {
		t.Fatal("reset token must not resolve as a session")
	}
}

