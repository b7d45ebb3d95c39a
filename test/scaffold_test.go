package test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoprivacy/internal/audit"
	jwttoken "geoprivacy/internal/jwt_token"
	"geoprivacy/internal/platform/metrics"
	"geoprivacy/internal/proof/backend"
	proofhandler "geoprivacy/internal/proof/handler"
	proofservice "geoprivacy/internal/proof/service"
	"geoprivacy/internal/proof/store"
	"geoprivacy/internal/proof/store/revocation"
	httptransport "geoprivacy/internal/transport/http"
	"geoprivacy/internal/verification"
	id "geoprivacy/pkg/domain"
	"geoprivacy/pkg/platform/middleware/admin"
	"geoprivacy/pkg/testutil"
)

const adminToken = "scaffold-admin"

type app struct {
	router http.Handler
	jwt    *jwttoken.JWTService
	sink   *audit.MemorySink
}

// newApp wires the production router over in-memory backends.
func newApp(t *testing.T) *app {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())

	sink := audit.NewMemorySink()
	publisher := audit.NewPublisher(audit.WithLogger(log))
	worker := audit.NewWorker(sink, publisher.Inbox(), log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	proofStore := store.NewInMemoryStore()
	svc := proofservice.New(proofStore, backend.NewPlaintextBackend(),
		proofservice.WithLogger(log),
		proofservice.WithMetrics(m),
		proofservice.WithAuditPublisher(publisher),
		proofservice.WithRevocationList(revocation.NewInMemoryList()),
	)
	sweeper := proofservice.NewSweeper(proofStore, time.Hour,
		proofservice.WithSweeperLogger(log),
		proofservice.WithSweeperAudit(publisher),
	)

	jwtService := jwttoken.NewJWTService("scaffold-signing-key", "geoprivacy", "geoprivacy-api")
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Metrics:      m,
		Proofs:       proofhandler.New(svc, sweeper, log),
		Verification: verification.NewHandler(verification.NewVerifier(log, m), log),
		JWTValidator: jwttoken.NewJWTServiceAdapter(jwtService),
		AdminToken:   adminToken,
	})
	return &app{router: router, jwt: jwtService, sink: sink}
}

func (a *app) bearer(t *testing.T, userID id.UserID) string {
	t.Helper()
	token, err := a.jwt.GenerateAccessToken(userID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestProofLifecycleThroughRouter(t *testing.T) {
	a := newApp(t)
	owner := id.NewUserID()
	stranger := id.NewUserID()
	ownerAuth := a.bearer(t, owner)
	strangerAuth := a.bearer(t, stranger)
	base := httptransport.ProofBasePath

	testutil.Given(t, "an owner who generated a proof in Paris", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, base+"/generate", map[string]float64{
			"latitude":  48.8566,
			"longitude": 2.3522,
		})
		req.Header.Set("Authorization", ownerAuth)
		rr := testutil.DoRequest(a.router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		generated := testutil.UnmarshalResponse[proofhandler.GenerateResponse](t, rr)
		require.Len(t, generated.Token, 64)
		require.NotEmpty(t, generated.Proof)
		token := generated.Token

		testutil.When(t, "anyone authenticated looks the token up", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, base+"/"+token)
			req.Header.Set("Authorization", strangerAuth)
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "the proof is reported valid without revealing the owner or place", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				got := testutil.UnmarshalResponse[proofhandler.GetResponse](t, rr)
				assert.True(t, got.Valid)
				assert.Equal(t, generated.Record.LocationHash, got.Proof.LocationHash)
				assert.Empty(t, got.Proof.UserID)
				assert.Nil(t, got.Proof.CenterLat)
				assert.Empty(t, got.Proof.Proof)
			})
		})

		testutil.When(t, "searching 2 km around the Louvre", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, base+"/nearby", map[string]float64{
				"latitude":  48.8606,
				"longitude": 2.3376,
				"radius":    2000,
			})
			req.Header.Set("Authorization", strangerAuth)
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "the proof is found", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				got := testutil.UnmarshalResponse[proofhandler.ListResponse](t, rr)
				require.Len(t, got.Proofs, 1)
				assert.Equal(t, token, got.Proofs[0].Token)
			})
		})

		testutil.When(t, "the proof payload is verified", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, base+"/verify", map[string]string{"proof": generated.Proof})
			req.Header.Set("Authorization", strangerAuth)
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "it attests the owner and location hash without coordinates", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				got := testutil.UnmarshalResponse[proofhandler.VerifyResponse](t, rr)
				assert.True(t, got.Valid)
				assert.Equal(t, owner.String(), got.Statement.UserID)
				assert.Equal(t, generated.Record.LocationHash, got.Statement.LocationHash)
			})
		})

		testutil.When(t, "someone else tries to invalidate it", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, base+"/"+token+"/invalidate")
			req.Header.Set("Authorization", strangerAuth)
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "the request is forbidden", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
			})
		})

		testutil.When(t, "the owner invalidates it", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, base+"/"+token+"/invalidate")
			req.Header.Set("Authorization", ownerAuth)
			rr := testutil.DoRequest(a.router, req)
			testutil.AssertStatus(t, rr, http.StatusNoContent)

			testutil.Then(t, "the batch status reports it invalid", func(t *testing.T) {
				req := testutil.NewJSONRequest(t, http.MethodPost, base+"/status", map[string][]string{
					"tokens": {token, "0000000000000000000000000000000000000000000000000000000000000000"},
				})
				req.Header.Set("Authorization", strangerAuth)
				rr := testutil.DoRequest(a.router, req)
				testutil.AssertStatus(t, rr, http.StatusOK)
				got := testutil.UnmarshalResponse[proofhandler.StatusResponse](t, rr)
				require.Len(t, got.Statuses, 2)
				assert.True(t, got.Statuses[0].Found)
				assert.False(t, got.Statuses[0].Valid)
				assert.False(t, got.Statuses[1].Found)
			})

			testutil.And(t, "it no longer shows up nearby", func(t *testing.T) {
				req := testutil.NewJSONRequest(t, http.MethodPost, base+"/nearby", map[string]float64{
					"latitude":  48.8566,
					"longitude": 2.3522,
					"radius":    100,
				})
				req.Header.Set("Authorization", ownerAuth)
				rr := testutil.DoRequest(a.router, req)
				got := testutil.UnmarshalResponse[proofhandler.ListResponse](t, rr)
				assert.Empty(t, got.Proofs)
			})

			testutil.And(t, "the owner still sees it in their history", func(t *testing.T) {
				req := testutil.NewRequest(t, http.MethodGet, base+"/user")
				req.Header.Set("Authorization", ownerAuth)
				rr := testutil.DoRequest(a.router, req)
				got := testutil.UnmarshalResponse[proofhandler.ListResponse](t, rr)
				require.Len(t, got.Proofs, 1)
				assert.False(t, got.Proofs[0].IsValid)
			})
		})

		testutil.Then(t, "the generation and invalidation were audited", func(t *testing.T) {
			assert.Eventually(t, func() bool {
				var generatedSeen, invalidatedSeen bool
				for _, e := range a.sink.ListByUser(context.Background(), owner.String()) {
					switch e.Action {
					case audit.ActionProofGenerated:
						generatedSeen = true
					case audit.ActionProofInvalidated:
						invalidatedSeen = true
					}
				}
				return generatedSeen && invalidatedSeen
			}, 2*time.Second, 10*time.Millisecond)
		})
	})
}

func TestProofRoutesRejectAnonymousCallers(t *testing.T) {
	a := newApp(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, httptransport.ProofBasePath+"/generate", map[string]float64{
		"latitude":  48.8566,
		"longitude": 2.3522,
	})
	rr := testutil.DoRequest(a.router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestZoneVerificationIsPublic(t *testing.T) {
	a := newApp(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/verify-location", map[string]any{
		"userLat":   48.8600,
		"userLon":   2.3500,
		"centerLat": 48.8566,
		"centerLon": 2.3522,
		"maxRadius": 1000,
	})
	rr := testutil.DoRequest(a.router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "verified", true)
}

func TestManualCleanupRequiresAdminToken(t *testing.T) {
	a := newApp(t)

	rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodPost, "/admin/proofs/cleanup"))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	req := testutil.NewRequest(t, http.MethodPost, "/admin/proofs/cleanup")
	req.Header.Set(admin.HeaderAdminToken, adminToken)
	rr = testutil.DoRequest(a.router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "removed", float64(0))
}
