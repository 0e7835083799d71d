// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"shop-assistant-go/internal/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrSessionNotFound 会话不存在。
var ErrSessionNotFound = errors.New("chat session not found")

// ChatRepository 定义了会话与消息的持久化操作。
type ChatRepository interface {
	CreateSession(ctx context.Context, firstPrompt string) (*model.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error)
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	ListSessions(ctx context.Context) ([]model.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// CreateSession 以首条提问创建会话，标题截断到 255 个字符。
func (r *chatRepository) CreateSession(ctx context.Context, firstPrompt string) (*model.ChatSession, error) {
	session := &model.ChatSession{
		SessionID: uuid.NewString(),
		Title:     model.ClipTitle(firstPrompt),
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return session, nil
}

func (r *chatRepository) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &session, nil
}

// AppendMessage 追加一条消息。
func (r *chatRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// ListMessages 按时间顺序返回会话的全部消息，同一毫秒内按自增 ID 保序。
func (r *chatRepository) ListMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Order("message_id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return messages, nil
}

// ListSessions 按创建时间倒序返回所有会话。
func (r *chatRepository) ListSessions(ctx context.Context) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession 在一个事务中删除会话及其消息。
func (r *chatRepository) DeleteSession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("failed to delete chat messages: %w", err)
		}
		res := tx.Where("session_id = ?", sessionID).Delete(&model.ChatSession{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete chat session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil
	})
}

// DeleteSessionsBefore 删除 cutoff 之前创建的会话，返回删除的会话数。
func (r *chatRepository) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&model.ChatSession{}).Select("session_id").Where("created_at < ?", cutoff)
		if err := tx.Where("session_id IN (?)", expired).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("failed to purge chat messages: %w", err)
		}
		res := tx.Where("created_at < ?", cutoff).Delete(&model.ChatSession{})
		if res.Error != nil {
			return fmt.Errorf("failed to purge chat sessions: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
