package audit

import "time"

// Action names the lifecycle step an event records.
type Action string

const (
	ActionProofGenerated   Action = "location_proof_generated"
	ActionProofCreated     Action = "location_proof_created"
	ActionProofInvalidated Action = "location_proof_invalidated"
	ActionProofsCleaned    Action = "location_proofs_cleaned"
)

// Event is emitted from domain logic to capture key actions. It never carries
// coordinates; the location hash is enough to correlate events.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Action       Action    `json:"action"`
	UserID       string    `json:"user_id,omitempty"`
	ProofToken   string    `json:"proof_token,omitempty"`
	LocationHash string    `json:"location_hash,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}
