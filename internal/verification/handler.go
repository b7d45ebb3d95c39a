package verification

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"geoprivacy/pkg/platform/httputil"
	"geoprivacy/pkg/requestcontext"
)

// Handler serves the public verification routes.
type Handler struct {
	verifier *Verifier
	logger   *slog.Logger
}

func NewHandler(verifier *Verifier, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/verify-location", h.HandleVerifyLocation)
	r.Get("/zones", h.HandleZones)
}

// VerifyLocationRequest has no Validate: missing or bad numbers are a failed
// verification, not a client error.
type VerifyLocationRequest struct {
	UserLat   *float64 `json:"userLat"`
	UserLon   *float64 `json:"userLon"`
	CenterLat *float64 `json:"centerLat"`
	CenterLon *float64 `json:"centerLon"`
	MaxRadius *float64 `json:"maxRadius"`
}

func (r *VerifyLocationRequest) claim() (Claim, bool) {
	if r.UserLat == nil || r.UserLon == nil || r.CenterLat == nil || r.CenterLon == nil || r.MaxRadius == nil {
		return Claim{}, false
	}
	return Claim{
		UserLat:         *r.UserLat,
		UserLon:         *r.UserLon,
		CenterLat:       *r.CenterLat,
		CenterLon:       *r.CenterLon,
		MaxRadiusMeters: *r.MaxRadius,
	}, true
}

type VerifyLocationResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

type ZoneResponse struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius"`
}

// HandleVerifyLocation handles POST /verify-location. Radius is in meters.
func (h *Handler) HandleVerifyLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[VerifyLocationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	verified := false
	if claim, complete := req.claim(); complete {
		verified = h.verifier.Verify(claim)
	}

	resp := VerifyLocationResponse{Verified: verified, Message: "Location verification failed"}
	if verified {
		resp.Message = "Location successfully verified"
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleZones handles GET /zones.
func (h *Handler) HandleZones(w http.ResponseWriter, _ *http.Request) {
	zones := h.verifier.Zones()
	out := make(map[string]ZoneResponse, len(zones))
	for _, z := range zones {
		out[z.Name] = ZoneResponse{Lat: z.Lat, Lon: z.Lon, Radius: z.RadiusMeters}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
