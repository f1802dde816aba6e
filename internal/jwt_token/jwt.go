// Package jwttoken signs and verifies the compact JWS tokens the engine
// exchanges: licenses, proofs of possession and forensic manifests. Callers
// own claim semantics and time checks; this package only enforces header
// shape and the signature.
package jwttoken

import (
	"crypto"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"tollgate/internal/keys"
)

// Token types carried in the JOSE "typ" header.
const (
	TypeLicense  = "license+jwt"
	TypeProof    = "pop+jwt"
	TypeManifest = "manifest+jwt"
)

var (
	// ErrMalformed covers undecodable tokens and unexpected headers.
	ErrMalformed = errors.New("malformed token")
	// ErrSignature means the signature does not verify under the given key.
	ErrSignature = errors.New("invalid token signature")
)

// Header is the subset of the JOSE header the engine reads before verifying.
type Header struct {
	Alg string
	Typ string
	KID string
	JWK *keys.JWK
}

var unverifiedParser = jwt.NewParser(jwt.WithoutClaimsValidation())

// Sign serializes claims as a compact JWS of type typ signed with key.
func Sign(key *keys.SigningKey, typ string, claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(key.Method, claims)
	tok.Header["typ"] = typ
	tok.Header["kid"] = key.KID
	signed, err := tok.SignedString(key.Signer)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", typ, err)
	}
	return signed, nil
}

// PeekHeader decodes the header without verifying the signature and checks
// the token type.
func PeekHeader(token, typ string) (Header, error) {
	tok, _, err := unverifiedParser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	h := Header{Alg: stringHeader(tok, "alg"), Typ: stringHeader(tok, "typ"), KID: stringHeader(tok, "kid")}
	if h.Typ != typ {
		return Header{}, fmt.Errorf("%w: typ %q, want %q", ErrMalformed, h.Typ, typ)
	}
	if raw, ok := tok.Header["jwk"].(map[string]any); ok {
		j := keys.JWK{}
		j.Kty, _ = raw["kty"].(string)
		j.Crv, _ = raw["crv"].(string)
		j.X, _ = raw["x"].(string)
		j.Y, _ = raw["y"].(string)
		h.JWK = &j
	}
	return h, nil
}

func stringHeader(tok *jwt.Token, name string) string {
	v, _ := tok.Header[name].(string)
	return v
}

// Verify checks the signature of token under pub, restricted to alg, and
// decodes claims. Registered-claim time checks are left to the caller so
// they run against the request's clock.
func Verify(token string, claims jwt.Claims, pub crypto.PublicKey, alg keys.Algorithm) error {
	method := keys.MethodFor(alg)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return pub, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		// Wrong algorithm, bad signature or unusable key.
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
}
