package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Mark(ctx, "pub-news", "/article/1"))

	ok, err := m.Contains(ctx, "pub-news", "/article/./1")
	require.NoError(t, err)
	assert.True(t, ok, "paths are cleaned")

	ok, _ = m.Contains(ctx, "pub-images", "/article/1")
	assert.False(t, ok, "scoped per publisher")
	ok, _ = m.Contains(ctx, "pub-news", "/article/2")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, _ = m.Contains(ctx, "pub-news", "/article/1")
	assert.False(t, ok, "expired")
}
