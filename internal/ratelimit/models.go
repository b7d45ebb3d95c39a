// Package ratelimit throttles callers with a sliding window per key. Keys are
// the authenticated user when there is one, otherwise the client IP.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Class groups routes that share a limit.
type Class string

const (
	// ClassProof covers the authenticated proof API.
	ClassProof Class = "proof"
	// ClassPublic covers unauthenticated zone verification.
	ClassPublic Class = "public"
)

// Policy is the number of requests allowed per window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Store counts requests per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// SanitizeKeySegment escapes the key delimiter so a crafted identifier cannot
// land in another caller's bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

func userKey(class Class, userID string) string {
	return string(class) + ":user:" + SanitizeKeySegment(userID)
}

func ipKey(class Class, ip string) string {
	return string(class) + ":ip:" + SanitizeKeySegment(ip)
}

func denied(limit int, resetAt, now time.Time) *Result {
	retry := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	return &Result{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retry,
	}
}
