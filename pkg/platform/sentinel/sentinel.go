package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores and clients.
// Services translate them into domain errors before they reach a handler.
//
//   - ErrNotFound: no proof record exists for the lookup key
//   - ErrConflict: a record with the same zero-knowledge token already exists
//   - ErrExpired: the record exists but its validity window has elapsed
//   - ErrInvalidState: the record has been invalidated
//   - ErrUnavailable: a backing service (database, cache, broker) is unreachable
//
// Bad input is never a sentinel; use pkg/domain-errors for that.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
