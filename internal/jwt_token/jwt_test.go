package jwttoken

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/internal/keys"
)

func edKey(t *testing.T, kid string) *keys.SigningKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sk, err := keys.NewSigningKey(kid, priv)
	require.NoError(t, err)
	return sk
}

func Test_SignAndVerify(t *testing.T) {
	for _, tc := range []struct {
		name string
		key  func(t *testing.T) *keys.SigningKey
		alg  keys.Algorithm
	}{
		{"EdDSA", func(t *testing.T) *keys.SigningKey { return edKey(t, "k1") }, keys.AlgEdDSA},
		{"ES256", func(t *testing.T) *keys.SigningKey {
			priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
			require.NoError(t, err)
			sk, err := keys.NewSigningKey("k1", priv)
			require.NoError(t, err)
			return sk
		}, keys.AlgES256},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sk := tc.key(t)
			token, err := Sign(sk, TypeLicense, jwt.RegisteredClaims{Subject: "crawler-7"})
			require.NoError(t, err)

			h, err := PeekHeader(token, TypeLicense)
			require.NoError(t, err)
			assert.Equal(t, "k1", h.KID)
			assert.Equal(t, string(tc.alg), h.Alg)

			var claims jwt.RegisteredClaims
			require.NoError(t, Verify(token, &claims, sk.Signer.Public(), tc.alg))
			assert.Equal(t, "crawler-7", claims.Subject)
		})
	}
}

func Test_VerifyExpiredClaimsLeftToCaller(t *testing.T) {
	sk := edKey(t, "k1")
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token, err := Sign(sk, TypeProof, jwt.RegisteredClaims{ExpiresAt: past})
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	assert.NoError(t, Verify(token, &claims, sk.Signer.Public(), keys.AlgEdDSA))
}

func Test_PeekHeader(t *testing.T) {
	sk := edKey(t, "k1")
	token, err := Sign(sk, TypeManifest, jwt.RegisteredClaims{})
	require.NoError(t, err)

	t.Run("wrong type", func(t *testing.T) {
		_, err := PeekHeader(token, TypeLicense)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := PeekHeader("not.a.token", TypeManifest)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("embedded jwk", func(t *testing.T) {
		j, err := keys.JWKFromPublicKey(sk.Signer.Public())
		require.NoError(t, err)
		tok := jwt.NewWithClaims(sk.Method, jwt.RegisteredClaims{})
		tok.Header["typ"] = TypeProof
		tok.Header["jwk"] = j
		signed, err := tok.SignedString(sk.Signer)
		require.NoError(t, err)

		h, err := PeekHeader(signed, TypeProof)
		require.NoError(t, err)
		require.NotNil(t, h.JWK)
		assert.Equal(t, j, *h.JWK)
	})
}

func Test_VerifyRejects(t *testing.T) {
	sk := edKey(t, "k1")
	other := edKey(t, "k2")
	token, err := Sign(sk, TypeLicense, jwt.RegisteredClaims{Subject: "s"})
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		err := Verify(token, &jwt.RegisteredClaims{}, other.Signer.Public(), keys.AlgEdDSA)
		assert.ErrorIs(t, err, ErrSignature)
	})

	t.Run("algorithm not allowed for key", func(t *testing.T) {
		err := Verify(token, &jwt.RegisteredClaims{}, sk.Signer.Public(), keys.AlgES256)
		assert.ErrorIs(t, err, ErrSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		parts[1] = parts[1][:len(parts[1])-2] + "xx"
		err := Verify(strings.Join(parts, "."), &jwt.RegisteredClaims{}, sk.Signer.Public(), keys.AlgEdDSA)
		assert.Error(t, err)
	})

	t.Run("not a jws", func(t *testing.T) {
		err := Verify("abc", &jwt.RegisteredClaims{}, sk.Signer.Public(), keys.AlgEdDSA)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}
