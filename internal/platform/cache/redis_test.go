package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("hunter2")

	client, err := New(context.Background(), Options{Addr: mr.Addr(), Password: "hunter2"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
}

func TestNewFailsOnBadPassword(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("hunter2")

	_, err := New(context.Background(), Options{Addr: mr.Addr(), Password: "wrong"})
	assert.Error(t, err)
}
