package database

import (
	"context"
	"net"
	"testing"

	"shop-assistant-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClientUnreachable(t *testing.T) {
	// 占用一个端口后立即释放，保证没有服务在监听
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr})
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestCloseRedisWithoutClient(t *testing.T) {
	RDB = nil
	assert.NotPanics(t, CloseRedis)
}
