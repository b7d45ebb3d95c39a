package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "geoprivacy/pkg/domain"
	"geoprivacy/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	userID := uuid.New()

	var seen id.UserID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name      string
		header    string
		validator stubValidator
		want      int
	}{
		{"missing header", "", stubValidator{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", stubValidator{}, http.StatusUnauthorized},
		{"invalid token", "Bearer x", stubValidator{err: errors.New("token has expired")}, http.StatusUnauthorized},
		{"non-uuid subject", "Bearer x", stubValidator{claims: &JWTClaims{UserID: "u1"}}, http.StatusUnauthorized},
		{"valid token", "Bearer x", stubValidator{claims: &JWTClaims{UserID: userID.String()}}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = id.UserID{}
			req := httptest.NewRequest(http.MethodGet, "/api/location-proof/user", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireAuth(tt.validator, logger)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, id.UserID(userID), seen)
			} else {
				assert.JSONEq(t, `{"error":"unauthorized","error_description":"`+descriptionFor(tt.name)+`"}`, rec.Body.String())
			}
		})
	}
}

func descriptionFor(name string) string {
	switch name {
	case "missing header", "wrong scheme", "empty bearer":
		return "Missing or invalid Authorization header"
	default:
		return "Invalid or expired token"
	}
}
