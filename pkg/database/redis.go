package database

import (
	"context"
	"fmt"
	"shop-assistant-go/internal/config"
	"shop-assistant-go/pkg/log"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisPingTimeout = 3 * time.Second

// RDB 承载跨实例的停止信号（chat:stop:<id>）与审计消费者的失败计数。
var RDB *redis.Client

// NewRedisClient 创建客户端并探活，连接失败时关闭客户端并返回错误。
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis %s 失败: %w", cfg.Addr, err)
	}
	return client, nil
}

// InitRedis 初始化全局 Redis 客户端。
func InitRedis(ctx context.Context, cfg config.RedisConfig) {
	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	RDB = client
	log.Infof("Redis 已连接: %s (db=%d)", cfg.Addr, cfg.DB)
}

// CloseRedis 关闭全局客户端。
func CloseRedis() {
	if RDB == nil {
		return
	}
	if err := RDB.Close(); err != nil {
		log.Errorf("关闭 Redis 客户端失败: %v", err)
	}
}
