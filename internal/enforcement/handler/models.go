package handler

import (
	"time"

	"tollgate/internal/enforcement"
	"tollgate/pkg/platform/validation"
)

// EnforceRequest is the JSON body of POST /v1/enforce, sent by the edge
// proxy for every inbound fetch.
type EnforceRequest struct {
	Method  string `json:"method"`
	Scheme  string `json:"scheme,omitempty"`
	Host    string `json:"host,omitempty"`
	Path    string `json:"path"`
	Intent  string `json:"intent"`
	License string `json:"license"`
	Proof   string `json:"proof"`
}

// Validate implements httputil.Validatable. Field checks are left to the
// engine so that bad input is reported as a malformed_input denial.
func (r *EnforceRequest) Validate() error {
	return nil
}

func (r *EnforceRequest) toDomain() enforcement.Request {
	return enforcement.Request{
		Method:       r.Method,
		Scheme:       r.Scheme,
		Host:         r.Host,
		Path:         r.Path,
		LicenseToken: r.License,
		ProofToken:   r.Proof,
		Intent:       r.Intent,
	}
}

// AllowResponse is returned with 200 for an admitted request.
type AllowResponse struct {
	Decision      string    `json:"decision"`
	ReservationID string    `json:"reservation_id"`
	LicenseID     string    `json:"license_id"`
	Intent        string    `json:"intent"`
	Cost          int64     `json:"cost"`
	Method        string    `json:"enforcement_method"`
	ToolRequired  bool      `json:"tool_required"`
	Degraded      bool      `json:"degraded,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// DenyResponse is returned with the status mapped from the reason.
type DenyResponse struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// CommitRequest is the JSON body of POST /v1/reservations/{id}/commit.
type CommitRequest struct {
	ToolInvoked    bool   `json:"tool_invoked"`
	ContentDigest  string `json:"content_digest,omitempty" validate:"max=200"`
	ContentType    string `json:"content_type,omitempty" validate:"max=32"`
	Preview        bool   `json:"preview"`
	TransformModel string `json:"transform_model,omitempty" validate:"max=256"`
}

// Validate implements httputil.Validatable.
func (r *CommitRequest) Validate() error {
	return validation.Struct(r)
}

// ReleaseRequest is the JSON body of POST /v1/reservations/{id}/release.
type ReleaseRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=failed abandoned"`
}

// Validate implements httputil.Validatable.
func (r *ReleaseRequest) Validate() error {
	return validation.Struct(r)
}

// CompletionResponse reports the settled reservation and any manifest.
type CompletionResponse struct {
	ReservationID string `json:"reservation_id"`
	State         string `json:"state"`
	Amount        int64  `json:"amount"`
	ManifestID    string `json:"manifest_id,omitempty"`
	Manifest      string `json:"manifest,omitempty"`
}

func completionResponse(c *enforcement.Completed) CompletionResponse {
	resp := CompletionResponse{
		ReservationID: c.Reservation.ID.String(),
		State:         string(c.Reservation.State),
		Amount:        c.Reservation.Amount,
	}
	if c.Manifest != nil {
		resp.Manifest = c.Manifest.Token
		if c.Manifest.Manifest != nil {
			resp.ManifestID = c.Manifest.Manifest.ID.String()
		}
	}
	return resp
}
