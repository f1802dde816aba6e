package license

import (
	"context"
	"errors"
	"time"

	jwttoken "tollgate/internal/jwt_token"
	"tollgate/internal/keys"
	dErrors "tollgate/pkg/domain-errors"
)

// KeyResolver resolves trusted public keys by kid.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string, kind keys.Kind, now time.Time) (*keys.TrustedKey, error)
}

// DefaultMaxTokenBytes bounds the encoded license accepted at the edge.
const DefaultMaxTokenBytes = 8192

// Verifier validates license tokens at the edge using only local key state.
type Verifier struct {
	keys     KeyResolver
	maxBytes int
}

// NewVerifier constructs a Verifier. maxBytes <= 0 selects the default.
func NewVerifier(resolver KeyResolver, maxBytes int) *Verifier {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTokenBytes
	}
	return &Verifier{keys: resolver, maxBytes: maxBytes}
}

// Verify checks the token and returns the license it carries. It succeeds
// iff the signature verifies under a trusted issuer key and now is in
// [iat, exp). Failures carry CodeMalformedInput, CodeIssuerUnknown,
// CodeSignatureInvalid or CodeTokenExpired.
func (v *Verifier) Verify(ctx context.Context, token string, now time.Time) (*License, error) {
	if token == "" || len(token) > v.maxBytes {
		return nil, dErrors.New(dErrors.CodeMalformedInput, "license token missing or oversized")
	}
	header, err := jwttoken.PeekHeader(token, jwttoken.TypeLicense)
	if err != nil || header.KID == "" {
		return nil, dErrors.New(dErrors.CodeMalformedInput, "license token is not a license+jwt with a kid")
	}

	key, err := v.keys.Resolve(ctx, header.KID, keys.KindIssuer, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIssuerUnknown, "license signed by an unknown or retired issuer key")
	}

	var c claims
	if err := jwttoken.Verify(token, &c, key.Public, key.Algorithm); err != nil {
		if errors.Is(err, jwttoken.ErrMalformed) {
			return nil, dErrors.Wrap(err, dErrors.CodeMalformedInput, "license token could not be decoded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeSignatureInvalid, "license signature invalid")
	}

	lic, err := c.toLicense()
	if err != nil {
		return nil, err
	}
	if string(lic.IssuerID) != key.Owner && key.Owner != "" {
		return nil, dErrors.New(dErrors.CodeIssuerUnknown, "license issuer does not own the signing key")
	}
	if !lic.ValidAt(now) {
		return nil, dErrors.New(dErrors.CodeTokenExpired, "license is outside its validity window")
	}
	return lic, nil
}
