// Package keys is the edge node's trust store: the public keys it accepts for
// license signatures, consumer proofs and manifest signatures, plus the
// private keys a node signs with.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"
	"time"
)

// Kind scopes what a key may be used for.
type Kind string

const (
	KindIssuer   Kind = "issuer"
	KindConsumer Kind = "consumer"
	KindManifest Kind = "manifest"
)

// ParseKind validates a key kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindIssuer, KindConsumer, KindManifest:
		return k, nil
	default:
		return "", fmt.Errorf("unsupported key kind %q", s)
	}
}

// Algorithm is the JWS algorithm a key signs with.
type Algorithm string

const (
	AlgEdDSA Algorithm = "EdDSA"
	AlgES256 Algorithm = "ES256"
)

// AlgorithmOf derives the JWS algorithm from a public key.
func AlgorithmOf(pub crypto.PublicKey) (Algorithm, error) {
	switch k := pub.(type) {
	case ed25519.PublicKey:
		if len(k) != ed25519.PublicKeySize {
			return "", fmt.Errorf("ed25519 key has %d bytes", len(k))
		}
		return AlgEdDSA, nil
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return "", fmt.Errorf("unsupported ecdsa curve %s", k.Curve.Params().Name)
		}
		return AlgES256, nil
	default:
		return "", fmt.Errorf("unsupported public key type %T", pub)
	}
}

// TrustedKey is a public key the node accepts signatures from.
type TrustedKey struct {
	KID        string
	Kind       Kind
	Owner      string
	Algorithm  Algorithm
	Public     crypto.PublicKey
	Thumbprint string
	// NotAfter is zero for keys without an expiry.
	NotAfter time.Time
	Revoked  bool
}

// NewTrustedKey derives the algorithm and thumbprint from pub. An empty kid
// defaults to the thumbprint, which is how consumer keys are addressed.
func NewTrustedKey(kid string, kind Kind, owner string, pub crypto.PublicKey, notAfter time.Time) (*TrustedKey, error) {
	alg, err := AlgorithmOf(pub)
	if err != nil {
		return nil, err
	}
	tp, err := ThumbprintOf(pub)
	if err != nil {
		return nil, err
	}
	if kid == "" {
		kid = tp
	}
	return &TrustedKey{
		KID:        kid,
		Kind:       kind,
		Owner:      owner,
		Algorithm:  alg,
		Public:     pub,
		Thumbprint: tp,
		NotAfter:   notAfter,
	}, nil
}

// ActiveAt reports whether the key may verify signatures at now.
func (k *TrustedKey) ActiveAt(now time.Time) bool {
	if k.Revoked {
		return false
	}
	return k.NotAfter.IsZero() || now.Before(k.NotAfter)
}
