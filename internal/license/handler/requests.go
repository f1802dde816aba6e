package handler

import (
	"time"

	"tollgate/internal/keys"
	"tollgate/internal/license"
	strutil "tollgate/pkg/platform/strings"
	"tollgate/pkg/platform/validation"
)

// IssueRequest is the JSON body of POST /v1/licenses.
type IssueRequest struct {
	SubjectID   string            `json:"subject_id" validate:"required,max=128"`
	PublisherID string            `json:"publisher_id" validate:"required,max=128"`
	SchemeID    string            `json:"scheme_id" validate:"required,max=128"`
	Intents     []string          `json:"intents" validate:"required,min=1,dive,intent"`
	Budget      int64             `json:"budget" validate:"min=0"`
	Thumbprint  string            `json:"pop_thumbprint,omitempty" validate:"required_without=ConsumerKey"`
	ConsumerKey *keys.JWK         `json:"pop_jwk,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" validate:"max=32"`
	TTLSeconds  int64             `json:"ttl_seconds,omitempty" validate:"min=0"`
}

// Validate implements httputil.Validatable. Intents are compared
// case-insensitively, so they are normalized before validation.
func (r *IssueRequest) Validate() error {
	r.Intents = strutil.DedupeAndTrimLower(r.Intents)
	return validation.Struct(r)
}

func (r *IssueRequest) toDomain() license.IssueRequest {
	return license.IssueRequest{
		SubjectID:   r.SubjectID,
		PublisherID: r.PublisherID,
		SchemeID:    r.SchemeID,
		Intents:     r.Intents,
		Budget:      r.Budget,
		Thumbprint:  r.Thumbprint,
		ConsumerKey: r.ConsumerKey,
		Metadata:    r.Metadata,
		TTL:         time.Duration(r.TTLSeconds) * time.Second,
	}
}
