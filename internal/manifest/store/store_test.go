package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/internal/manifest"
	"tollgate/pkg/domain"
	"tollgate/pkg/platform/sentinel"
)

func newSigned(t *testing.T) *manifest.Signed {
	t.Helper()
	id, err := domain.NewManifestID()
	require.NoError(t, err)
	return &manifest.Signed{
		Token: "h.p.s",
		Manifest: &manifest.Manifest{
			ID:          id,
			PublisherID: "pub-news",
			ResourceID:  "/article/1",
			ContentType: domain.ContentArticle,
			Digest:      "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
			Preview:     true,
			IssuedAt:    time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	st := NewInMemory()
	m := newSigned(t)

	require.NoError(t, st.Save(ctx, m))
	assert.ErrorIs(t, st.Save(ctx, m), sentinel.ErrConflict)

	got, err := st.FindByID(ctx, m.Manifest.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	other, err := domain.NewManifestID()
	require.NoError(t, err)
	_, err = st.FindByID(ctx, other)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
