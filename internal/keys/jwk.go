package keys

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

var b64 = base64.RawURLEncoding

// ErrUnsupportedKey is returned for key types outside EdDSA/ES256.
var ErrUnsupportedKey = errors.New("unsupported key")

// JWK is the public subset of a JSON Web Key needed for EdDSA and ES256.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y,omitempty"`
}

// JWKFromPublicKey encodes pub as a JWK.
func JWKFromPublicKey(pub crypto.PublicKey) (JWK, error) {
	switch k := pub.(type) {
	case ed25519.PublicKey:
		if len(k) != ed25519.PublicKeySize {
			return JWK{}, fmt.Errorf("%w: ed25519 key has %d bytes", ErrUnsupportedKey, len(k))
		}
		return JWK{Kty: "OKP", Crv: "Ed25519", X: b64.EncodeToString(k)}, nil
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return JWK{}, fmt.Errorf("%w: curve %s", ErrUnsupportedKey, k.Curve.Params().Name)
		}
		ek, err := k.ECDH()
		if err != nil {
			return JWK{}, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
		}
		raw := ek.Bytes() // 0x04 || X || Y
		return JWK{
			Kty: "EC",
			Crv: "P-256",
			X:   b64.EncodeToString(raw[1:33]),
			Y:   b64.EncodeToString(raw[33:65]),
		}, nil
	default:
		return JWK{}, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
}

// PublicKey decodes the JWK, rejecting points not on the curve.
func (j JWK) PublicKey() (crypto.PublicKey, error) {
	switch {
	case j.Kty == "OKP" && j.Crv == "Ed25519":
		x, err := b64.DecodeString(j.X)
		if err != nil || len(x) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: bad Ed25519 x", ErrUnsupportedKey)
		}
		return ed25519.PublicKey(x), nil
	case j.Kty == "EC" && j.Crv == "P-256":
		x, errX := b64.DecodeString(j.X)
		y, errY := b64.DecodeString(j.Y)
		if errX != nil || errY != nil || len(x) != 32 || len(y) != 32 {
			return nil, fmt.Errorf("%w: bad P-256 coordinates", ErrUnsupportedKey)
		}
		point := append([]byte{4}, append(x, y...)...)
		if _, err := ecdh.P256().NewPublicKey(point); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}, nil
	default:
		return nil, fmt.Errorf("%w: kty=%q crv=%q", ErrUnsupportedKey, j.Kty, j.Crv)
	}
}

// Thumbprint is the RFC 7638 SHA-256 thumbprint, base64url without padding.
// Required members are serialized in lexicographic order with no whitespace.
func (j JWK) Thumbprint() string {
	var canonical string
	if j.Kty == "EC" {
		canonical = fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q,"y":%q}`, j.Crv, j.Kty, j.X, j.Y)
	} else {
		canonical = fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q}`, j.Crv, j.Kty, j.X)
	}
	sum := sha256.Sum256([]byte(canonical))
	return b64.EncodeToString(sum[:])
}

// ThumbprintOf computes the RFC 7638 thumbprint of pub.
func ThumbprintOf(pub crypto.PublicKey) (string, error) {
	j, err := JWKFromPublicKey(pub)
	if err != nil {
		return "", err
	}
	return j.Thumbprint(), nil
}

// ValidThumbprint reports whether s looks like a SHA-256 thumbprint.
func ValidThumbprint(s string) bool {
	if len(s) != 43 {
		return false
	}
	raw, err := b64.DecodeString(s)
	return err == nil && len(raw) == sha256.Size
}
