package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Opaque single-use tokens for the reset and confirmation flows. The raw
// value travels by email; only its SHA-256 is persisted.

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 of a raw token, the form stored on the
// user record.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// newOpaqueToken returns a fresh raw token and its stored hash.
func newOpaqueToken() (raw, hash string, err error) {
	raw, err = randomHex(20)
	if err != nil {
		return "", "", err
	}
	return raw, HashToken(raw), nil
}

// newConfirmToken returns the emailed confirmation token and the hash of
// its validated portion. The part after the dot is random padding for
// user-facing opacity; it is stripped and never checked.
func newConfirmToken() (combined, hash string, err error) {
	raw, hash, err := newOpaqueToken()
	if err != nil {
		return "", "", err
	}
	suffix, err := randomHex(100)
	if err != nil {
		return "", "", err
	}
	return raw + "." + suffix, hash, nil
}

// splitConfirmToken strips the opacity suffix from an emailed confirmation
// token.
func splitConfirmToken(combined string) string {
	raw, _, _ := strings.Cut(combined, ".")
	return raw
}
