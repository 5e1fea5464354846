package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := DefaultConfig()
	cfg.URL = "redis://" + mr.Addr()

	client, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestConnectFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://127.0.0.1:1"
	cfg.MaxRetries = 1
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := Connect(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestOptions(t *testing.T) {
	cfg := Config{URL: "redis://:urlpass@cache:6380/2", DB: -1}
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "urlpass", opts.Password)

	cfg = Config{URL: "redis://cache:6379/2", DB: 5, Password: "override", PoolSize: 7}
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, 5, opts.DB)
	assert.Equal(t, "override", opts.Password)
	assert.Equal(t, 7, opts.PoolSize)

	_, err = Config{URL: "http://nope"}.Options()
	assert.Error(t, err)
}
