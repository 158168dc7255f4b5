package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/chizen/internal/domain"
)

var (
	_ domain.Cache = Noop{}
	_ domain.Cache = (*RedisCache)(nil)
)

func TestNoopAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c Noop
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, val)
	require.NoError(t, c.Delete(ctx, "k"))
}

func TestDialRejectsMalformedURL(t *testing.T) {
	_, err := Dial(context.Background(), "not a url", "chizen:")
	require.Error(t, err)
}
