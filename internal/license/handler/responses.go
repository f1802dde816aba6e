package handler

import (
	"time"

	"tollgate/internal/license"
)

// IssueResponse is returned by POST /v1/licenses.
type IssueResponse struct {
	LicenseID     string            `json:"license_id"`
	Token         string            `json:"token"`
	IssuerID      string            `json:"issuer_id"`
	SubjectID     string            `json:"subject_id"`
	PublisherID   string            `json:"publisher_id"`
	SchemeID      string            `json:"scheme_id"`
	Intents       []string          `json:"intents"`
	Budget        int64             `json:"budget"`
	IssuedAt      time.Time         `json:"issued_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	PopThumbprint string            `json:"pop_thumbprint"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func fromIssued(issued *license.Issued) IssueResponse {
	l := issued.License
	intents := make([]string, len(l.Intents))
	for i, in := range l.Intents {
		intents[i] = in.String()
	}
	return IssueResponse{
		LicenseID:     l.ID.String(),
		Token:         issued.Token,
		IssuerID:      string(l.IssuerID),
		SubjectID:     string(l.SubjectID),
		PublisherID:   string(l.PublisherID),
		SchemeID:      string(l.SchemeID),
		Intents:       intents,
		Budget:        l.Budget,
		IssuedAt:      l.IssuedAt,
		ExpiresAt:     l.ExpiresAt,
		PopThumbprint: l.Thumbprint,
		Metadata:      l.Metadata,
	}
}
