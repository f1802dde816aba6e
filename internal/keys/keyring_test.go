package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyring(t *testing.T) {
	store := NewStore()
	ring := NewKeyring(store, "tollgate-issuer")

	_, err := ring.Active(KindManifest)
	require.ErrorIs(t, err, ErrNoActiveKey)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sk, err := NewSigningKey("issuer-1", priv)
	require.NoError(t, err)
	assert.Equal(t, jwt.SigningMethodEdDSA, sk.Method)
	require.NoError(t, ring.Activate(KindIssuer, sk))

	got, err := ring.Active(KindIssuer)
	require.NoError(t, err)
	assert.Equal(t, "issuer-1", got.KID)

	trusted, err := store.Resolve(context.Background(), "issuer-1", KindIssuer, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "tollgate-issuer", trusted.Owner)

	store.Replace(nil)
	_, err = store.Resolve(context.Background(), "issuer-1", KindIssuer, time.Now())
	assert.NoError(t, err, "activated keys are pinned")
}

func TestNewSigningKeyES256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	sk, err := NewSigningKey("", priv)
	require.NoError(t, err)
	assert.Equal(t, jwt.SigningMethodES256, sk.Method)

	tp, err := ThumbprintOf(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, tp, sk.KID)

	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	_, err = NewSigningKey("x", p384)
	assert.Error(t, err)
}
