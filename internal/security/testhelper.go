package security

import "time"

// testSecret signs tokens in unit tests only. Do not use in production.
const testSecret = "test-secret-0123456789abcdef0123"

// NewTestTokenProvider returns a TokenProvider using the embedded test secret.
// For unit tests only. Callers must not use in production.
func NewTestTokenProvider() *TokenProvider {
	return NewTokenProvider([]byte(testSecret), "test-issuer")
}

// NewTestTokenProviderAt is NewTestTokenProvider with a fixed clock, for expiry tests.
func NewTestTokenProviderAt(now func() time.Time) *TokenProvider {
	p := NewTestTokenProvider()
	p.now = now
	return p
}
