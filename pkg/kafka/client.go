// Package kafka 提供了与 Kafka 消息队列交互的功能，用于投递和消费查询审计记录。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"shop-assistant-go/internal/config"
	"shop-assistant-go/internal/model"
	"shop-assistant-go/pkg/log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// MaxAuditAttempts 单条审计消息最多处理次数，超过后提交 offset 放弃。
const MaxAuditAttempts = 3

// AuditProcessor 处理一条审计记录，例如写入 Elasticsearch。
type AuditProcessor interface {
	Process(ctx context.Context, audit model.QueryAudit) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:                  cfg.AuditTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 关闭生产者，刷新未发送的消息。
func CloseProducer() error {
	if producer == nil {
		return nil
	}
	return producer.Close()
}

// PublishAudit 发送一条审计记录。以会话 ID 作为 key，同一会话的记录落在同一分区。
func PublishAudit(ctx context.Context, audit model.QueryAudit) error {
	if producer == nil {
		return errors.New("kafka producer not initialized")
	}
	value, err := json.Marshal(audit)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(audit.SessionID),
		Value: value,
	})
}

// AuditPublisher 把 PublishAudit 暴露为对话引擎需要的接口。
type AuditPublisher struct{}

func (AuditPublisher) Publish(ctx context.Context, audit model.QueryAudit) error {
	return PublishAudit(ctx, audit)
}

// AttemptCounter 记录消息的失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string)
}

type redisAttemptCounter struct {
	rdb *redis.Client
}

// NewRedisAttemptCounter 使用 Redis 计数，计数 24 小时后过期。
func NewRedisAttemptCounter(rdb *redis.Client) AttemptCounter {
	return &redisAttemptCounter{rdb: rdb}
}

func (c *redisAttemptCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (c *redisAttemptCounter) Reset(ctx context.Context, key string) {
	_ = c.rdb.Del(ctx, key).Err()
}

func attemptsKey(audit model.QueryAudit) string {
	return fmt.Sprintf("kafka:attempts:%s-%d", audit.SessionID, audit.CreatedAt.UnixNano())
}

// StartConsumer 消费审计主题直到 ctx 结束。ctx 结束时返回 nil。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor AuditProcessor, counter AttemptCounter) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(cfg.Brokers, ","),
		Topic:    cfg.AuditTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.AuditTopic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("从 Kafka 读取消息失败", err)
			return err
		}

		if handleMessage(ctx, m.Value, processor, counter) {
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}
}

// handleMessage 处理一条消息，返回是否应提交 offset。
// 失败未达上限时不提交，由 Kafka 重新投递；Redis 不可用时同样不提交。
func handleMessage(ctx context.Context, value []byte, processor AuditProcessor, counter AttemptCounter) bool {
	var audit model.QueryAudit
	if err := json.Unmarshal(value, &audit); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		// 格式错误的消息直接提交，避免阻塞队列
		return true
	}

	key := attemptsKey(audit)
	if err := processor.Process(ctx, audit); err != nil {
		log.Errorf("处理审计记录失败: session=%s, Error: %v", audit.SessionID, err)
		attempts, incErr := counter.Incr(ctx, key)
		if incErr != nil {
			return false
		}
		if attempts >= MaxAuditAttempts {
			log.Errorf("审计记录多次失败(>=%d)，提交 offset 终止重试: session=%s", MaxAuditAttempts, audit.SessionID)
			return true
		}
		return false
	}

	counter.Reset(ctx, key)
	return true
}
