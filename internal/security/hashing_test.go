package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(10)
	password := []byte("secret123")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(10)
	hash, _ := h.Hash([]byte("secret123"))
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Fatal("Compare with wrong password should fail")
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	h0 := NewHasher(0)
	if h0.Cost != 12 {
		t.Errorf("zero cost should default to 12, got %d", h0.Cost)
	}
	hLow := NewHasher(4)
	if hLow.Cost != MinPasswordCost {
		t.Errorf("low cost should be clamped to %d, got %d", MinPasswordCost, hLow.Cost)
	}
	hHigh := NewHasher(40)
	if hHigh.Cost != bcrypt.MaxCost {
		t.Errorf("high cost should be clamped to %d, got %d", bcrypt.MaxCost, hHigh.Cost)
	}
}

func TestHasher_HashRandom(t *testing.T) {
	h := NewHasher(10)
	a, err := h.HashRandom()
	if err != nil {
		t.Fatalf("HashRandom: %v", err)
	}
	b, err := h.HashRandom()
	if err != nil {
		t.Fatalf("HashRandom: %v", err)
	}
	if a == b {
		t.Error("HashRandom returned the same hash twice")
	}
	cost, err := bcrypt.Cost([]byte(a))
	if err != nil {
		t.Fatalf("bcrypt.Cost: %v", err)
	}
	if cost != 10 {
		t.Errorf("cost = %d, want 10", cost)
	}
	if err := h.Compare(a, []byte("")); err == nil {
		t.Error("random hash should not match the empty password")
	}
}

func TestHasher_CompareDummy(t *testing.T) {
	h := NewHasher(10)
	// Must not panic and must be repeatable.
	h.CompareDummy([]byte("anything"))
	h.CompareDummy([]byte("anything"))
	if len(h.dummyHash) == 0 {
		t.Error("dummy hash should be generated on first use")
	}
}
