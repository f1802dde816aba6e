package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThumbprint(t *testing.T) {
	t.Run("RFC 8037 Ed25519 vector", func(t *testing.T) {
		j := JWK{Kty: "OKP", Crv: "Ed25519", X: "11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo"}
		assert.Equal(t, "kPrK_qmxVWaYVA9wwBF6Iuo3vVzz7TxHCTwXBygrS4k", j.Thumbprint())
	})

	t.Run("thumbprint of decoded key matches", func(t *testing.T) {
		j := JWK{Kty: "OKP", Crv: "Ed25519", X: "11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo"}
		pub, err := j.PublicKey()
		require.NoError(t, err)
		tp, err := ThumbprintOf(pub)
		require.NoError(t, err)
		assert.Equal(t, j.Thumbprint(), tp)
		assert.True(t, ValidThumbprint(tp))
	})

	t.Run("P-256 round trip", func(t *testing.T) {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		j, err := JWKFromPublicKey(&priv.PublicKey)
		require.NoError(t, err)

		back, err := j.PublicKey()
		require.NoError(t, err)
		assert.True(t, priv.PublicKey.Equal(back))

		tp, err := ThumbprintOf(back)
		require.NoError(t, err)
		assert.Equal(t, j.Thumbprint(), tp)
	})

	t.Run("distinct keys have distinct thumbprints", func(t *testing.T) {
		a, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		b, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		ta, _ := ThumbprintOf(a)
		tb, _ := ThumbprintOf(b)
		assert.NotEqual(t, ta, tb)
	})
}

func TestJWKPublicKeyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		jwk  JWK
	}{
		{"unknown kty", JWK{Kty: "RSA", Crv: "", X: "AQAB"}},
		{"short ed25519", JWK{Kty: "OKP", Crv: "Ed25519", X: "AAAA"}},
		{"point off curve", JWK{Kty: "EC", Crv: "P-256", X: b64.EncodeToString(make([]byte, 32)), Y: b64.EncodeToString(make([]byte, 32))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.jwk.PublicKey()
			assert.ErrorIs(t, err, ErrUnsupportedKey)
		})
	}
}

func TestJWKJSONShape(t *testing.T) {
	raw := []byte(`{"kty":"OKP","crv":"Ed25519","x":"11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo"}`)
	var j JWK
	require.NoError(t, json.Unmarshal(raw, &j))
	assert.Equal(t, "kPrK_qmxVWaYVA9wwBF6Iuo3vVzz7TxHCTwXBygrS4k", j.Thumbprint())
}

func TestValidThumbprint(t *testing.T) {
	assert.False(t, ValidThumbprint(""))
	assert.False(t, ValidThumbprint("not-a-thumbprint"))
	assert.False(t, ValidThumbprint("kPrK_qmxVWaYVA9wwBF6Iuo3vVzz7TxHCTwXBygrS4="))
	assert.True(t, ValidThumbprint("kPrK_qmxVWaYVA9wwBF6Iuo3vVzz7TxHCTwXBygrS4k"))
}
