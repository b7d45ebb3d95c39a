package handler

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"geoprivacy/internal/proof/models"
	"geoprivacy/internal/proof/service"
	id "geoprivacy/pkg/domain"
)

// RecordResponse is the wire form of a proof record. Owner, coordinates and
// payload are present only when the caller owns the record.
type RecordResponse struct {
	ID                 string            `json:"id"`
	Token              string            `json:"zero_knowledge_token"`
	VerificationRadius float64           `json:"verification_radius"`
	CenterLat          *float64          `json:"center_lat,omitempty"`
	CenterLon          *float64          `json:"center_lon,omitempty"`
	Center             *geojson.Geometry `json:"center,omitempty"`
	ProofTimestamp     time.Time         `json:"proof_timestamp"`
	ExpirationDate     time.Time         `json:"expiration_date"`
	IsValid            bool              `json:"is_valid"`
	UserID             string            `json:"user_id,omitempty"`
	Location           string            `json:"location,omitempty"`
	LocationHash       string            `json:"location_hash,omitempty"`
	Proof              string            `json:"proof,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func toRecordResponse(r *models.Record, viewer id.UserID) RecordResponse {
	resp := RecordResponse{
		ID:                 r.ID.String(),
		Token:              r.Token.String(),
		VerificationRadius: r.VerificationRadius,
		ProofTimestamp:     r.ProofTimestamp,
		ExpirationDate:     r.ExpirationDate,
		IsValid:            r.IsValid,
		LocationHash:       r.LocationHash,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if viewer.IsNil() || !r.OwnedBy(viewer) {
		return resp
	}

	lat, lon := r.CenterLat, r.CenterLon
	resp.CenterLat, resp.CenterLon = &lat, &lon
	resp.UserID = r.UserID.String()
	resp.Location = r.Location
	resp.Proof = r.Proof
	if center, err := r.Center(); err == nil {
		resp.Center = center.GeoJSON()
	}
	return resp
}

func toRecordResponses(records []*models.Record, viewer id.UserID) []RecordResponse {
	out := make([]RecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordResponse(r, viewer))
	}
	return out
}

type GenerateResponse struct {
	Token     string         `json:"token"`
	Proof     string         `json:"proof"`
	ExpiresAt time.Time      `json:"expires_at"`
	Record    RecordResponse `json:"record"`
}

type CreateResponse struct {
	Message string         `json:"message"`
	Proof   RecordResponse `json:"proof"`
}

type ListResponse struct {
	Message string           `json:"message"`
	Proofs  []RecordResponse `json:"proofs"`
}

type GetResponse struct {
	Proof RecordResponse `json:"proof"`
	Valid bool           `json:"valid"`
}

// VerifyResponse deliberately omits coordinates; the hash is enough to match
// a proof against a known location.
type VerifyResponse struct {
	Valid     bool              `json:"valid"`
	Statement StatementResponse `json:"statement"`
}

type StatementResponse struct {
	UserID       string    `json:"user_id"`
	LocationHash string    `json:"location_hash"`
	GeneratedAt  time.Time `json:"generated_at"`
}

func toVerifyResponse(v *service.Verification) VerifyResponse {
	return VerifyResponse{
		Valid: v.Fresh,
		Statement: StatementResponse{
			UserID:       v.Statement.UserID.String(),
			LocationHash: v.LocationHash,
			GeneratedAt:  v.Statement.GeneratedAt,
		},
	}
}

type StatusResponse struct {
	Statuses []TokenStatusResponse `json:"statuses"`
}

type TokenStatusResponse struct {
	Token     string     `json:"token"`
	Found     bool       `json:"found"`
	Valid     bool       `json:"valid"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func toStatusResponse(statuses []service.TokenStatus) StatusResponse {
	out := make([]TokenStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		item := TokenStatusResponse{Token: st.Token.String(), Found: st.Found, Valid: st.Valid}
		if st.Found {
			exp := st.ExpiresAt
			item.ExpiresAt = &exp
		}
		out = append(out, item)
	}
	return StatusResponse{Statuses: out}
}

type CleanupResponse struct {
	Removed int `json:"removed"`
}
