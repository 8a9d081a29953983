package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig(PoolOptions{
		DSN:             "postgres://u:p@localhost:5432/storefront?sslmode=disable",
		MaxConns:        7,
		MaxConnLifetime: 20 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(7), cfg.MaxConns)
	assert.Equal(t, 20*time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "storefront", cfg.ConnConfig.Database)
}

func TestPoolConfigKeepsDefaults(t *testing.T) {
	cfg, err := poolConfig(PoolOptions{DSN: "postgres://u:p@localhost:5432/storefront?pool_max_conns=3"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), cfg.MaxConns)
}

func TestPoolConfigRejectsBadDSN(t *testing.T) {
	_, err := poolConfig(PoolOptions{DSN: "postgres://%zz"})
	assert.Error(t, err)
}
