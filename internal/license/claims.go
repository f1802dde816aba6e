package license

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tollgate/internal/keys"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
)

// confirmation binds the token to a key (RFC 7800 "cnf").
type confirmation struct {
	JKT string `json:"jkt"`
}

type claims struct {
	jwt.RegisteredClaims
	Publisher string            `json:"pub"`
	Scheme    string            `json:"scheme"`
	Intents   []string          `json:"intents"`
	Budget    int64             `json:"budget"`
	Cnf       confirmation      `json:"cnf"`
	Meta      map[string]string `json:"meta,omitempty"`
}

func claimsFor(l *License) claims {
	intents := make([]string, len(l.Intents))
	for i, in := range l.Intents {
		intents[i] = in.String()
	}
	return claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        l.ID.String(),
			Issuer:    string(l.IssuerID),
			Subject:   string(l.SubjectID),
			IssuedAt:  jwt.NewNumericDate(l.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(l.ExpiresAt),
		},
		Publisher: string(l.PublisherID),
		Scheme:    string(l.SchemeID),
		Intents:   intents,
		Budget:    l.Budget,
		Cnf:       confirmation{JKT: l.Thumbprint},
		Meta:      l.Metadata,
	}
}

// toLicense rebuilds a License from verified claims. Every field is
// re-validated: a trusted signature does not make the content well-formed.
func (c *claims) toLicense() (*License, error) {
	id, err := domain.ParseLicenseID(c.ID)
	if err != nil {
		return nil, malformed("license id")
	}
	issuer, err := domain.ParseIssuerID(c.Issuer)
	if err != nil {
		return nil, malformed("issuer")
	}
	subject, err := domain.ParseSubjectID(c.Subject)
	if err != nil {
		return nil, malformed("subject")
	}
	publisher, err := domain.ParsePublisherID(c.Publisher)
	if err != nil {
		return nil, malformed("publisher")
	}
	scheme, err := domain.ParseSchemeID(c.Scheme)
	if err != nil {
		return nil, malformed("scheme")
	}
	intents, err := domain.ParseIntents(c.Intents)
	if err != nil || len(intents) == 0 {
		return nil, malformed("intents")
	}
	if c.Budget < 0 {
		return nil, malformed("budget")
	}
	if c.IssuedAt == nil || c.ExpiresAt == nil || !c.ExpiresAt.After(c.IssuedAt.Time) {
		return nil, malformed("validity window")
	}
	if !keys.ValidThumbprint(c.Cnf.JKT) {
		return nil, malformed("key binding")
	}
	return &License{
		ID:          id,
		IssuerID:    issuer,
		SubjectID:   subject,
		PublisherID: publisher,
		SchemeID:    scheme,
		Intents:     intents,
		Budget:      c.Budget,
		IssuedAt:    c.IssuedAt.UTC(),
		ExpiresAt:   c.ExpiresAt.UTC(),
		Thumbprint:  c.Cnf.JKT,
		Metadata:    c.Meta,
	}, nil
}

func malformed(field string) error {
	return dErrors.Newf(dErrors.CodeMalformedInput, "license %s is malformed", field)
}

// truncate drops sub-second precision so the struct matches what the token
// carries.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
