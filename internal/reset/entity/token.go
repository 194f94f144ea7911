package entity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// tokenBytes is the entropy of a reset token (256 bits).
const tokenBytes = 32

// ResetToken is a row in `password_resets`. Only the SHA-256 of the opaque
// token is stored; Token is populated once, at issue time.
type ResetToken struct {
	ID         string    `db:"id" json:"id"`
	Identifier string    `db:"identifier" json:"identifier"`
	Token      string    `db:"-" json:"-"`
	TokenHash  string    `db:"token_hash" json:"token_hash"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Valid reports whether the token may still be used at now.
func (t *ResetToken) Valid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// GenerateToken returns 32 random bytes encoded as lowercase hex.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken is the lookup key stored in place of the token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
