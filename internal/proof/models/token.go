package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	dErrors "geoprivacy/pkg/domain-errors"
)

// TokenLength is the hex length of a SHA-256 digest.
const TokenLength = 64

// Token is the zero-knowledge token that identifies a proof record.
type Token string

// NewToken derives a token from 32 random bytes and the issue time.
// Uniqueness is enforced by the store; collisions are only ever a conflict.
func NewToken(now time.Time) (Token, error) {
	entropy := make([]byte, 32)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(hex.EncodeToString(entropy)))
	h.Write([]byte(strconv.FormatInt(now.UnixMilli(), 10)))
	return Token(hex.EncodeToString(h.Sum(nil))), nil
}

// ParseToken accepts exactly 64 lowercase hex characters.
func ParseToken(s string) (Token, error) {
	if len(s) != TokenLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "token must be a 64-character hex digest")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "token must be a 64-character hex digest")
		}
	}
	return Token(s), nil
}

func (t Token) String() string { return string(t) }

// Redacted returns a log-safe prefix.
func (t Token) Redacted() string {
	if len(t) < 8 {
		return "***"
	}
	return string(t[:8]) + "…"
}
