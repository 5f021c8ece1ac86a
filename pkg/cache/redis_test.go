package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/config"
)

func TestNewRedisDisabled(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedisConnects(t *testing.T) {
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)

	client, err := NewRedis(context.Background(), config.RedisConfig{
		Enabled:  true,
		Host:     srv.Host(),
		Port:     port,
		PoolSize: 4,
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, 4, client.Options().PoolSize)
	assert.Equal(t, time.Second, client.Options().ReadTimeout)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	srv.CheckGet(t, "k", "v")
}

func TestNewRedisPingFailure(t *testing.T) {
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	require.NoError(t, err)
	host := srv.Host()
	srv.Close()

	client, err := NewRedis(context.Background(), config.RedisConfig{Enabled: true, Host: host, Port: port, Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "ping redis")
}
