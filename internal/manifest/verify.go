package manifest

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	jwttoken "tollgate/internal/jwt_token"
	"tollgate/internal/keys"
	dErrors "tollgate/pkg/domain-errors"
)

// KeyResolver resolves trusted manifest keys by kid.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string, kind keys.Kind, now time.Time) (*keys.TrustedKey, error)
}

// Verify checks a signed manifest against the trust store and, when payload
// is non-nil, recomputes its digest.
func Verify(ctx context.Context, resolver KeyResolver, token string, payload []byte, now time.Time) (*Manifest, error) {
	header, err := jwttoken.PeekHeader(token, jwttoken.TypeManifest)
	if err != nil || header.KID == "" {
		return nil, dErrors.New(dErrors.CodeMalformedInput, "not a manifest+jwt with a kid")
	}
	key, err := resolver.Resolve(ctx, header.KID, keys.KindManifest, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIssuerUnknown, "manifest signed by an unknown key")
	}
	var c claims
	if err := jwttoken.Verify(token, &c, key.Public, key.Algorithm); err != nil {
		if errors.Is(err, jwttoken.ErrMalformed) {
			return nil, dErrors.Wrap(err, dErrors.CodeMalformedInput, "manifest could not be decoded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeSignatureInvalid, "manifest signature invalid")
	}
	m, err := c.toManifest(header.KID)
	if err != nil {
		return nil, err
	}
	if m.ExpiresAt != nil && !now.Before(*m.ExpiresAt) {
		return nil, dErrors.New(dErrors.CodeTokenExpired, "manifest expired")
	}
	if payload != nil {
		alg, _, _ := ParseDigest(m.Digest)
		got, err := Digest(alg, payload)
		if err != nil {
			return nil, err
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(m.Digest)) != 1 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "payload does not match manifest digest")
		}
	}
	return m, nil
}
