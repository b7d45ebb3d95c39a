// Package handler exposes the location-proof service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"geoprivacy/internal/proof/models"
	"geoprivacy/internal/proof/service"
	id "geoprivacy/pkg/domain"
	dErrors "geoprivacy/pkg/domain-errors"
	"geoprivacy/pkg/platform/httputil"
	"geoprivacy/pkg/requestcontext"
)

// Service is the proof lifecycle the handler drives.
type Service interface {
	Generate(ctx context.Context, userID id.UserID, lat, lon float64) (*models.Record, error)
	Create(ctx context.Context, userID id.UserID, in service.CreateInput) (*models.Record, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Record, error)
	Nearby(ctx context.Context, lat, lon, radiusMeters float64) ([]*models.Record, error)
	Get(ctx context.Context, token string) (*models.Record, bool, error)
	Invalidate(ctx context.Context, userID id.UserID, token string) error
	VerifyProof(ctx context.Context, payload string) (*service.Verification, error)
	Statuses(ctx context.Context, tokens []string) ([]service.TokenStatus, error)
}

// Sweeper runs one cleanup pass on demand.
type Sweeper interface {
	RunOnce(ctx context.Context) (int, error)
}

type Handler struct {
	service Service
	sweeper Sweeper
	logger  *slog.Logger
}

func New(svc Service, sweeper Sweeper, logger *slog.Logger) *Handler {
	return &Handler{service: svc, sweeper: sweeper, logger: logger}
}

// Register mounts the authenticated proof routes. The caller applies auth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/generate", h.HandleGenerate)
	r.Post("/create", h.HandleCreate)
	r.Get("/user", h.HandleListByUser)
	r.Post("/nearby", h.HandleNearby)
	r.Post("/verify", h.HandleVerify)
	r.Post("/status", h.HandleStatus)
	r.Get("/{token}", h.HandleGet)
	r.Post("/{token}/invalidate", h.HandleInvalidate)
}

// RegisterAdmin mounts operator routes. The caller applies the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/proofs/cleanup", h.HandleCleanup)
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		h.logger.ErrorContext(ctx, "user missing from context on an authenticated route",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

// HandleGenerate handles POST /api/location-proof/generate.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[GenerateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Generate(ctx, userID, *req.Latitude, *req.Longitude)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "location proof issued",
		"request_id", requestID,
		"user_id", userID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, GenerateResponse{
		Token:     record.Token.String(),
		Proof:     record.Proof,
		ExpiresAt: record.ExpirationDate,
		Record:    toRecordResponse(record, userID),
	})
}

// HandleCreate handles POST /api/location-proof/create.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Create(ctx, userID, service.CreateInput{
		Location:  req.Location,
		Timestamp: req.ParsedTimestamp(),
		Proof:     req.Proof,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "location proof rejected",
			"request_id", requestID,
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, CreateResponse{
		Message: "Location proof created successfully",
		Proof:   toRecordResponse(record, userID),
	})
}

// HandleListByUser handles GET /api/location-proof/user.
func (h *Handler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	records, err := h.service.ListByUser(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list location proofs",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Message: "Location proofs retrieved successfully",
		Proofs:  toRecordResponses(records, userID),
	})
}

// HandleNearby handles POST /api/location-proof/nearby.
func (h *Handler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[NearbyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	records, err := h.service.Nearby(ctx, *req.Latitude, *req.Longitude, *req.Radius)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{
		Message: "Nearby valid location proofs retrieved",
		Proofs:  toRecordResponses(records, requestcontext.UserID(ctx)),
	})
}

// HandleGet handles GET /api/location-proof/{token}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, valid, err := h.service.Get(ctx, chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, GetResponse{
		Proof: toRecordResponse(record, requestcontext.UserID(ctx)),
		Valid: valid,
	})
}

// HandleInvalidate handles POST /api/location-proof/{token}/invalidate.
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	if err := h.service.Invalidate(ctx, userID, chi.URLParam(r, "token")); err != nil {
		h.logger.WarnContext(ctx, "failed to invalidate location proof",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVerify handles POST /api/location-proof/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	v, err := h.service.VerifyProof(ctx, req.Proof)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerifyResponse(v))
}

// HandleStatus handles POST /api/location-proof/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	statuses, err := h.service.Statuses(ctx, req.Tokens)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(statuses))
}

// HandleCleanup handles POST /admin/proofs/cleanup.
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	removed, err := h.sweeper.RunOnce(ctx)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "cleanup failed"))
		return
	}
	h.logger.InfoContext(ctx, "manual cleanup completed",
		"request_id", requestcontext.RequestID(ctx),
		"removed", removed,
	)
	httputil.WriteJSON(w, http.StatusOK, CleanupResponse{Removed: removed})
}
