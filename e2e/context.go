package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultSigningKey = "dev-secret-key-change-in-production"
	defaultIssuer     = "geoprivacy"
	defaultAudience   = "geoprivacy-api"
)

// TestContext carries HTTP state between the steps of one scenario.
type TestContext struct {
	BaseURL    string
	AdminToken string
	client     *http.Client

	signingKey string
	issuer     string
	audience   string

	users       map[string]string
	currentUser string

	lastStatus int
	lastBody   []byte

	savedToken string
	savedProof string
}

// NewTestContext reads the target from the environment. The signing settings
// must match the server under test.
func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminToken: os.Getenv("ADMIN_API_TOKEN"),
		client:     &http.Client{Timeout: 10 * time.Second},
		signingKey: envOr("JWT_SIGNING_KEY", defaultSigningKey),
		issuer:     envOr("JWT_ISSUER", defaultIssuer),
		audience:   envOr("JWT_AUDIENCE", defaultAudience),
		users:      make(map[string]string),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.users = make(map[string]string)
	tc.currentUser = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.savedToken = ""
	tc.savedProof = ""
}

// AuthenticateAs switches the caller, minting a user ID on first use of name.
func (tc *TestContext) AuthenticateAs(name string) {
	if _, ok := tc.users[name]; !ok {
		tc.users[name] = uuid.NewString()
	}
	tc.currentUser = name
}

func (tc *TestContext) ClearAuthentication() {
	tc.currentUser = ""
}

func (tc *TestContext) UserID(name string) string {
	return tc.users[name]
}

func (tc *TestContext) bearer() (string, error) {
	if tc.currentUser == "" {
		return "", nil
	}
	userID := tc.users[tc.currentUser]
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"sub":     userID,
		"iss":     tc.issuer,
		"aud":     []string{tc.audience},
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
		"jti":     uuid.NewString(),
	})
	signed, err := token.SignedString([]byte(tc.signingKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return "Bearer " + signed, nil
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

// AdminPOST calls an operator route with the admin token.
func (tc *TestContext) AdminPOST(path string) error {
	return tc.do(http.MethodPost, path, nil, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) do(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth, err := tc.bearer()
	if err != nil {
		return err
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GetLastResponseStatus() int  { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

// GetResponseField resolves a dotted path such as "record.location_hash" or
// "statuses.0.valid" in the last JSON body.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var doc interface{}
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	current := doc
	for _, part := range strings.Split(field, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in response", field)
			}
			current = v
		case []interface{}:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, field)
			}
			current = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q", field)
		}
	}
	return current, nil
}

func (tc *TestContext) SavedToken() string         { return tc.savedToken }
func (tc *TestContext) SetSavedToken(token string) { tc.savedToken = token }
func (tc *TestContext) SavedProof() string         { return tc.savedProof }
func (tc *TestContext) SetSavedProof(proof string) { tc.savedProof = proof }
