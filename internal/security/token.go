package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const verificationTokenBytes = 32

// NewVerificationToken returns a random hex token and its storage hash.
// Only the hash may be persisted; the raw value goes out by mail.
func NewVerificationToken() (raw string, hash string, err error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate verification token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashToken(raw), nil
}

// HashToken is the unkeyed SHA-256 digest of a raw token, hex encoded.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
