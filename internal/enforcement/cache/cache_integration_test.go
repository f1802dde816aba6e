//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tollgate/pkg/testutil/containers"
)

func TestRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	c := NewRedis(rc.Client, time.Minute)
	ctx := context.Background()

	ok, err := c.Contains(ctx, "pub-news", "/article/1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Mark(ctx, "pub-news", "/article/1"))
	ok, err = c.Contains(ctx, "pub-news", "/article/1")
	require.NoError(t, err)
	assert.True(t, ok)
}
