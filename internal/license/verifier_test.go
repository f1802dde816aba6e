package license

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "tollgate/internal/jwt_token"
	"tollgate/internal/keys"
	"tollgate/pkg/domain"
	dErrors "tollgate/pkg/domain-errors"
)

type verifierFixture struct {
	store    *keys.Store
	signer   *keys.SigningKey
	verifier *Verifier
	license  *License
}

func newVerifierFixture(t *testing.T) *verifierFixture {
	t.Helper()
	store := keys.NewStore()
	ring := keys.NewKeyring(store, "tollgate-issuer")
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sk, err := keys.NewSigningKey("issuer-1", priv)
	require.NoError(t, err)
	require.NoError(t, ring.Activate(keys.KindIssuer, sk))

	id, err := domain.NewLicenseID()
	require.NoError(t, err)
	iat := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &verifierFixture{
		store:    store,
		signer:   sk,
		verifier: NewVerifier(store, 0),
		license: &License{
			ID:          id,
			IssuerID:    "tollgate-issuer",
			SubjectID:   "crawler-7",
			PublisherID: "pub-news",
			SchemeID:    "news-standard",
			Intents:     []domain.Intent{domain.IntentView},
			Budget:      100,
			IssuedAt:    iat,
			ExpiresAt:   iat.Add(time.Hour),
			Thumbprint:  "kPrK_qmxVWaYVA9wwBF6Iuo3vVzz7TxHCTwXBygrS4k",
		},
	}
}

func (f *verifierFixture) sign(t *testing.T, c jwt.Claims) string {
	t.Helper()
	tok, err := jwttoken.Sign(f.signer, jwttoken.TypeLicense, c)
	require.NoError(t, err)
	return tok
}

func TestVerifyValidityWindow(t *testing.T) {
	f := newVerifierFixture(t)
	token := f.sign(t, claimsFor(f.license))
	ctx := context.Background()

	tests := []struct {
		name string
		now  time.Time
		ok   bool
	}{
		{"one second before iat", f.license.IssuedAt.Add(-time.Second), false},
		{"exactly iat", f.license.IssuedAt, true},
		{"mid window", f.license.IssuedAt.Add(30 * time.Minute), true},
		{"just before exp", f.license.ExpiresAt.Add(-time.Nanosecond), true},
		{"exactly exp", f.license.ExpiresAt, false},
		{"after exp", f.license.ExpiresAt.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.verifier.Verify(ctx, token, tt.now)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeTokenExpired), "got %v", err)
		})
	}
}

func TestVerifyFailureCodes(t *testing.T) {
	f := newVerifierFixture(t)
	ctx := context.Background()
	now := f.license.IssuedAt.Add(time.Minute)
	valid := f.sign(t, claimsFor(f.license))

	_, rogue, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	rogueKey, err := keys.NewSigningKey("issuer-1", rogue)
	require.NoError(t, err)
	forged, err := jwttoken.Sign(rogueKey, jwttoken.TypeLicense, claimsFor(f.license))
	require.NoError(t, err)

	unknownKey, err := keys.NewSigningKey("issuer-9", rogue)
	require.NoError(t, err)
	unknown, err := jwttoken.Sign(unknownKey, jwttoken.TypeLicense, claimsFor(f.license))
	require.NoError(t, err)

	wrongType, err := jwttoken.Sign(f.signer, jwttoken.TypeProof, claimsFor(f.license))
	require.NoError(t, err)

	badIntents := claimsFor(f.license)
	badIntents.Intents = []string{"scrape"}

	tests := []struct {
		name  string
		token string
		code  dErrors.Code
	}{
		{"empty", "", dErrors.CodeMalformedInput},
		{"oversized", strings.Repeat("a", DefaultMaxTokenBytes+1), dErrors.CodeMalformedInput},
		{"garbage", "a.b.c", dErrors.CodeMalformedInput},
		{"wrong typ", wrongType, dErrors.CodeMalformedInput},
		{"forged signature", forged, dErrors.CodeSignatureInvalid},
		{"unknown kid", unknown, dErrors.CodeIssuerUnknown},
		{"signed but malformed claims", f.sign(t, badIntents), dErrors.CodeMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.verifier.Verify(ctx, tt.token, now)
			require.Error(t, err)
			assert.Equal(t, tt.code, dErrors.CodeOf(err), "got %v", err)
		})
	}

	t.Run("valid", func(t *testing.T) {
		_, err := f.verifier.Verify(ctx, valid, now)
		assert.NoError(t, err)
	})
}

func TestVerifyRevokedIssuerKey(t *testing.T) {
	f := newVerifierFixture(t)
	token := f.sign(t, claimsFor(f.license))

	retired, err := keys.NewTrustedKey("issuer-1", keys.KindIssuer, "tollgate-issuer", f.signer.Signer.Public(), f.license.IssuedAt)
	require.NoError(t, err)
	store := keys.NewStore()
	store.Replace([]*keys.TrustedKey{retired})

	_, err = NewVerifier(store, 0).Verify(context.Background(), token, f.license.IssuedAt.Add(time.Minute))
	assert.Equal(t, dErrors.CodeIssuerUnknown, dErrors.CodeOf(err))
}
