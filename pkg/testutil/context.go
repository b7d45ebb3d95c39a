package testutil

import (
	"net/http"
	"time"

	id "geoprivacy/pkg/domain"
	"geoprivacy/pkg/requestcontext"
)

// WithUserID marks the request as authenticated, the way RequireAuth would.
// Non-UUID values are ignored so tests can exercise the unauthenticated path.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
