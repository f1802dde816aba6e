package manifest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
)

type claims struct {
	jwt.RegisteredClaims
	Publisher   string `json:"pub"`
	License     string `json:"lic,omitempty"`
	ContentType string `json:"ctype"`
	Digest      string `json:"digest"`
	Preview     bool   `json:"preview"`
	Transform   string `json:"transform,omitempty"`
}

func claimsFor(m *Manifest) claims {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       m.ID.String(),
			Subject:  m.ResourceID,
			IssuedAt: jwt.NewNumericDate(m.IssuedAt),
		},
		Publisher:   string(m.PublisherID),
		ContentType: string(m.ContentType),
		Digest:      m.Digest,
		Preview:     m.Preview,
		Transform:   m.TransformModel,
	}
	if m.LicenseID != nil {
		c.License = m.LicenseID.String()
	}
	if m.ExpiresAt != nil {
		c.ExpiresAt = jwt.NewNumericDate(*m.ExpiresAt)
	}
	return c
}

func (c *claims) toManifest(kid string) (*Manifest, error) {
	id, err := domain.ParseManifestID(c.ID)
	if err != nil {
		return nil, malformed("id")
	}
	publisher, err := domain.ParsePublisherID(c.Publisher)
	if err != nil {
		return nil, malformed("publisher")
	}
	ctype, err := domain.ParseContentType(c.ContentType)
	if err != nil {
		return nil, malformed("content type")
	}
	if _, _, err := ParseDigest(c.Digest); err != nil {
		return nil, malformed("digest")
	}
	if c.Subject == "" || c.IssuedAt == nil {
		return nil, malformed("resource or issue time")
	}
	m := &Manifest{
		ID:             id,
		PublisherID:    publisher,
		ResourceID:     c.Subject,
		ContentType:    ctype,
		Digest:         c.Digest,
		Preview:        c.Preview,
		IssuedAt:       c.IssuedAt.UTC(),
		SignerKID:      kid,
		TransformModel: c.Transform,
	}
	if c.License != "" {
		lic, err := domain.ParseLicenseID(c.License)
		if err != nil {
			return nil, malformed("license")
		}
		m.LicenseID = &lic
	}
	if c.ExpiresAt != nil {
		exp := c.ExpiresAt.UTC()
		m.ExpiresAt = &exp
	}
	return m, nil
}

func malformed(field string) error {
	return dErrors.Newf(dErrors.CodeMalformedInput, "manifest %s is malformed", field)
}

func utcSeconds(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
