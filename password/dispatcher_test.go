package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Argon2, *Bcrypt) {
	t.Helper()
	a, err := NewArgon2(Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	b, err := NewBcrypt(BcryptConfig{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	return NewDispatcher(a, b), a, b
}

func TestDispatcherVerifiesLegacyFormat(t *testing.T) {
	d, _, b := newTestDispatcher(t)

	legacy, err := b.Hash("pw1")
	if err != nil {
		t.Fatalf("bcrypt Hash error: %v", err)
	}

	ok, err := d.Verify("pw1", legacy)
	if err != nil || !ok {
		t.Fatalf("expected legacy hash to verify: ok=%v err=%v", ok, err)
	}

	up, err := d.NeedsUpgrade(legacy)
	if err != nil || !up {
		t.Fatalf("expected legacy hash to need upgrade: up=%v err=%v", up, err)
	}
}

func TestDispatcherHashesWithPrimary(t *testing.T) {
	d, a, _ := newTestDispatcher(t)

	hash, err := d.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !a.Recognizes(hash) {
		t.Fatalf("expected primary format, got %s", hash)
	}

	up, err := d.NeedsUpgrade(hash)
	if err != nil || up {
		t.Fatalf("expected current hash to be final: up=%v err=%v", up, err)
	}
}

func TestDispatcherUnknownFormat(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	if ok, err := d.Verify("pw", "plaintext?"); ok || !errors.Is(err, ErrUnrecognizedHash) {
		t.Fatalf("expected ErrUnrecognizedHash, got ok=%v err=%v", ok, err)
	}
	if _, err := d.NeedsUpgrade("plaintext?"); !errors.Is(err, ErrUnrecognizedHash) {
		t.Fatalf("expected ErrUnrecognizedHash, got %v", err)
	}
	if d.Recognizes("plaintext?") {
		t.Fatal("expected unknown format to be unrecognized")
	}
}
