package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testHasher(t *testing.T) *Bcrypt {
	t.Helper()
	h, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	hasher := testHasher(t)

	hash, err := hasher.Hash("LongEnoughPass123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Fatalf("unexpected bcrypt prefix: %s", hash)
	}
	if !hasher.Verify("LongEnoughPass123!", hash) {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher := testHasher(t)

	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if hasher.Verify("wrong-password", hash) {
		t.Fatal("expected verification to fail for wrong password")
	}
}

func TestHashIsSalted(t *testing.T) {
	hasher := testHasher(t)

	a, err := hasher.Hash("same-plaintext")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := hasher.Hash("same-plaintext")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct hashes for the same plaintext")
	}
}

func TestVerifyMalformedHashIsMismatch(t *testing.T) {
	hasher := testHasher(t)

	for _, hash := range []string{"", "not-a-hash", "$2a$04$short", "$argon2id$v=19$m=65536,t=3,p=2$abc$def"} {
		if hasher.Verify("anything", hash) {
			t.Fatalf("expected malformed hash %q to fail verification", hash)
		}
	}
}

func TestHashRejectsEmptyAndLongInput(t *testing.T) {
	hasher := testHasher(t)

	if _, err := hasher.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestNewBcryptCostBounds(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MinCost - 1); err == nil {
		t.Fatal("expected error for cost below minimum")
	}
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected error for cost above maximum")
	}
	h, err := NewBcrypt(0)
	if err != nil {
		t.Fatalf("NewBcrypt(0) error: %v", err)
	}
	if h.Cost() != bcrypt.DefaultCost {
		t.Fatalf("expected default cost %d, got %d", bcrypt.DefaultCost, h.Cost())
	}
}

func TestNeedsRehash(t *testing.T) {
	low := testHasher(t)
	hash, err := low.Hash("rehash-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if low.NeedsRehash(hash) {
		t.Fatal("same cost should not need rehash")
	}

	higher, err := NewBcrypt(bcrypt.MinCost + 1)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	if !higher.NeedsRehash(hash) {
		t.Fatal("different cost should need rehash")
	}
	if !higher.NeedsRehash("garbage") {
		t.Fatal("unparseable hash should need rehash")
	}
}
