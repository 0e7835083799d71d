package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// StopSignalRepository 通过 Redis Pub/Sub 在多实例间传递“停止生成”信号。
type StopSignalRepository interface {
	PublishStop(ctx context.Context, sessionID string) (int64, error)
	// WatchStop 订阅会话的停止信号，收到后调用 onStop。返回的函数用于取消订阅。
	WatchStop(ctx context.Context, sessionID string, onStop func()) (func(), error)
}

type redisStopSignalRepository struct {
	redisClient *redis.Client
}

// NewStopSignalRepository 创建一个新的 StopSignalRepository 实例。
func NewStopSignalRepository(redisClient *redis.Client) StopSignalRepository {
	return &redisStopSignalRepository{redisClient: redisClient}
}

func stopChannel(sessionID string) string {
	return fmt.Sprintf("chat:stop:%s", sessionID)
}

// PublishStop 发布停止信号，返回收到信号的订阅者数量。
func (r *redisStopSignalRepository) PublishStop(ctx context.Context, sessionID string) (int64, error) {
	n, err := r.redisClient.Publish(ctx, stopChannel(sessionID), "stop").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish stop signal: %w", err)
	}
	return n, nil
}

func (r *redisStopSignalRepository) WatchStop(ctx context.Context, sessionID string, onStop func()) (func(), error) {
	sub := r.redisClient.Subscribe(ctx, stopChannel(sessionID))
	// 等待订阅确认，确保之后发布的信号不会丢失
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe stop channel: %w", err)
	}

	done := make(chan struct{})
	go func() {
		ch := sub.Channel()
		select {
		case _, ok := <-ch:
			if ok {
				onStop()
			}
		case <-ctx.Done():
		case <-done:
		}
	}()

	return func() {
		close(done)
		_ = sub.Close()
	}, nil
}
