package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tollgate/pkg/platform/sentinel"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	now   time.Time
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = NewStore()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = context.Background()
}

func (s *StoreSuite) newKey(kid string, kind Kind) *TrustedKey {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	k, err := NewTrustedKey(kid, kind, "owner", pub, time.Time{})
	s.Require().NoError(err)
	return k
}

func (s *StoreSuite) TestResolve() {
	issuer := s.newKey("issuer-1", KindIssuer)
	s.store.Replace([]*TrustedKey{issuer})

	s.Run("known kid and kind", func() {
		got, err := s.store.Resolve(s.ctx, "issuer-1", KindIssuer, s.now)
		s.Require().NoError(err)
		s.Equal(issuer, got)
	})

	s.Run("wrong kind is not found", func() {
		_, err := s.store.Resolve(s.ctx, "issuer-1", KindManifest, s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown kid", func() {
		_, err := s.store.Resolve(s.ctx, "nope", KindIssuer, s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StoreSuite) TestResolveExpiredAndRevoked() {
	expired := s.newKey("old", KindIssuer)
	expired.NotAfter = s.now
	revoked := s.newKey("revoked", KindIssuer)
	revoked.Revoked = true
	s.store.Replace([]*TrustedKey{expired, revoked})

	_, err := s.store.Resolve(s.ctx, "old", KindIssuer, s.now)
	s.ErrorIs(err, sentinel.ErrExpired)
	_, err = s.store.Resolve(s.ctx, "old", KindIssuer, s.now.Add(-time.Second))
	s.NoError(err)

	_, err = s.store.Resolve(s.ctx, "revoked", KindIssuer, s.now)
	s.ErrorIs(err, sentinel.ErrExpired)
}

func (s *StoreSuite) TestConsumerKeysByThumbprint() {
	consumer := s.newKey("", KindConsumer)
	s.Equal(consumer.Thumbprint, consumer.KID)
	s.store.Replace([]*TrustedKey{consumer})

	got, err := s.store.ResolveThumbprint(s.ctx, consumer.Thumbprint, s.now)
	s.Require().NoError(err)
	s.Equal(consumer, got)

	issuer := s.newKey("issuer-1", KindIssuer)
	s.store.Replace([]*TrustedKey{issuer})
	_, err = s.store.ResolveThumbprint(s.ctx, issuer.Thumbprint, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound, "only consumer keys are addressable by thumbprint")
}

func (s *StoreSuite) TestPinnedKeysSurviveReplace() {
	pinned := s.newKey("local", KindManifest)
	s.store.Pin(pinned)
	s.store.Replace(nil)

	got, err := s.store.Resolve(s.ctx, "local", KindManifest, s.now)
	s.Require().NoError(err)
	s.Equal(pinned, got)
	s.Equal(1, s.store.Len())
}

func (s *StoreSuite) TestRegisteredKeysExpireOnSync() {
	s.store.now = func() time.Time { return s.now }
	for i := range 1000 {
		k := s.newKey("", KindConsumer)
		k.NotAfter = s.now.Add(time.Duration(i%2) * time.Hour)
		s.Require().NoError(s.store.Register(s.ctx, k))
	}
	s.Equal(1000, s.store.Len())

	s.Require().NoError(s.store.Sync(s.ctx))
	s.Equal(500, s.store.Len(), "keys whose license expired are dropped")

	s.store.Prune(s.now.Add(time.Hour))
	s.Zero(s.store.Len())
}

func (s *StoreSuite) TestRefreshedKeyOverridesRegistered() {
	s.store.now = func() time.Time { return s.now }
	local := s.newKey("", KindConsumer)
	s.Require().NoError(s.store.Register(s.ctx, local))
	_, err := s.store.ResolveThumbprint(s.ctx, local.Thumbprint, s.now)
	s.Require().NoError(err)

	revoked := *local
	revoked.Revoked = true
	s.Require().NoError(s.store.Sync(s.ctx, stubSource{keys: []*TrustedKey{&revoked}}))

	_, err = s.store.ResolveThumbprint(s.ctx, local.Thumbprint, s.now)
	s.ErrorIs(err, sentinel.ErrExpired, "upstream revocation reaches the issuing node")

	// Once upstream carries the key, it no longer survives on its own.
	s.Require().NoError(s.store.Sync(s.ctx, stubSource{}))
	_, err = s.store.ResolveThumbprint(s.ctx, local.Thumbprint, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestRegisteredKeySurvivesSyncUntilUpstreamHasIt() {
	s.store.now = func() time.Time { return s.now }
	local := s.newKey("", KindConsumer)
	local.NotAfter = s.now.Add(time.Hour)
	s.Require().NoError(s.store.Register(s.ctx, local))

	s.Require().NoError(s.store.Sync(s.ctx, stubSource{keys: []*TrustedKey{s.newKey("issuer-1", KindIssuer)}}))
	got, err := s.store.ResolveThumbprint(s.ctx, local.Thumbprint, s.now)
	s.Require().NoError(err)
	s.Equal(local, got)
}

type stubSource struct {
	keys []*TrustedKey
	err  error
}

func (s stubSource) Load(context.Context) ([]*TrustedKey, error) { return s.keys, s.err }

func (s *StoreSuite) TestSyncKeepsPreviousSetOnFailure() {
	a := s.newKey("a", KindIssuer)
	s.Require().NoError(s.store.Sync(s.ctx, stubSource{keys: []*TrustedKey{a}}))

	err := s.store.Sync(s.ctx, stubSource{keys: []*TrustedKey{s.newKey("b", KindIssuer)}}, stubSource{err: errors.New("db down")})
	s.Error(err)

	_, err = s.store.Resolve(s.ctx, "a", KindIssuer, s.now)
	s.NoError(err)
	_, err = s.store.Resolve(s.ctx, "b", KindIssuer, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pemData, err := EncodePublicKeyPEM(pub)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "issuer.pem"), pemData, 0o600))

	doc := `keys:
  - kid: issuer-2026-01
    kind: issuer
    owner: tollgate-issuer
    pem_file: issuer.pem
    not_after: 2027-01-01T00:00:00Z
  - kind: consumer
    owner: crawler-7
    revoked: true
    pem: |
` + indent(string(pemData), "      ")
	path := filepath.Join(dir, "keys.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	loaded, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "issuer-2026-01", loaded[0].KID)
	assert.Equal(t, KindIssuer, loaded[0].Kind)
	assert.Equal(t, AlgEdDSA, loaded[0].Algorithm)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), loaded[0].NotAfter)

	assert.Equal(t, loaded[1].Thumbprint, loaded[1].KID)
	assert.True(t, loaded[1].Revoked)

	t.Run("unknown kind fails the whole load", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("keys:\n  - kind: root\n    pem_file: issuer.pem\n"), 0o600))
		_, err := FileSource{Path: bad}.Load(context.Background())
		assert.Error(t, err)
	})
}

func indent(s, prefix string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		b.WriteString(prefix + line + "\n")
	}
	return b.String()
}
