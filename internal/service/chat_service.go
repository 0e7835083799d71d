// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"shop-assistant-go/internal/assistant"
	"shop-assistant-go/internal/model"
	"shop-assistant-go/internal/repository"
	"shop-assistant-go/pkg/log"
	"sync"
	"time"
)

// ChatEngine 是对话查询引擎对外暴露的能力。
type ChatEngine interface {
	Stream(ctx context.Context, prompt, sessionID string, emit func(assistant.Event) error) error
}

// ChatService 定义了对话与会话管理的接口。
type ChatService interface {
	// StreamChat 处理一轮对话，事件按顺序交给 emit。
	StreamChat(ctx context.Context, prompt, sessionID string, emit func(assistant.Event) error) error
	ListSessions(ctx context.Context) ([]model.SessionDTO, error)
	GetSession(ctx context.Context, sessionID string) (*model.SessionDTO, error)
	GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	DeleteSession(ctx context.Context, sessionID string) error
	// StopSession 通知所有实例上该会话正在进行的生成停止，返回收到信号的订阅者数量。
	StopSession(ctx context.Context, sessionID string) (int64, error)
	PurgeSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type chatService struct {
	engine   ChatEngine
	chatRepo repository.ChatRepository
	stopRepo repository.StopSignalRepository
}

// NewChatService 创建一个新的 ChatService 实例。stopRepo 可以为 nil，此时只能通过断开连接停止生成。
func NewChatService(engine ChatEngine, chatRepo repository.ChatRepository, stopRepo repository.StopSignalRepository) ChatService {
	return &chatService{
		engine:   engine,
		chatRepo: chatRepo,
		stopRepo: stopRepo,
	}
}

// StreamChat 在拿到会话 ID 后订阅停止信号，收到信号即取消本轮生成。
func (s *chatService) StreamChat(ctx context.Context, prompt, sessionID string, emit func(assistant.Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		unwatch func()
	)
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if unwatch != nil {
			unwatch()
		}
	}()

	return s.engine.Stream(ctx, prompt, sessionID, func(ev assistant.Event) error {
		if ev.Type == assistant.EventSessionInfo && s.stopRepo != nil {
			u, err := s.stopRepo.WatchStop(ctx, ev.SessionID, func() {
				log.Infow("stop signal received", "session_id", ev.SessionID)
				cancel()
			})
			if err != nil {
				// 订阅失败不影响本轮对话，只是无法跨实例停止
				log.Warnw("subscribe stop signal failed", "session_id", ev.SessionID, "error", err)
			} else {
				mu.Lock()
				unwatch = u
				mu.Unlock()
			}
		}
		return emit(ev)
	})
}

func (s *chatService) ListSessions(ctx context.Context) ([]model.SessionDTO, error) {
	sessions, err := s.chatRepo.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]model.SessionDTO, 0, len(sessions))
	for _, session := range sessions {
		dtos = append(dtos, session.ToDTO())
	}
	return dtos, nil
}

func (s *chatService) GetSession(ctx context.Context, sessionID string) (*model.SessionDTO, error) {
	session, err := s.chatRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dto := session.ToDTO()
	return &dto, nil
}

// GetMessages 返回会话的全部消息，会话不存在时返回 ErrSessionNotFound。
func (s *chatService) GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if _, err := s.chatRepo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.chatRepo.ListMessages(ctx, sessionID)
}

func (s *chatService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.chatRepo.DeleteSession(ctx, sessionID)
}

func (s *chatService) StopSession(ctx context.Context, sessionID string) (int64, error) {
	if s.stopRepo == nil {
		return 0, fmt.Errorf("stop signal is not configured")
	}
	if _, err := s.chatRepo.GetSession(ctx, sessionID); err != nil {
		return 0, err
	}
	return s.stopRepo.PublishStop(ctx, sessionID)
}

// PurgeSessionsBefore 删除 cutoff 之前创建的会话及其消息。
func (s *chatService) PurgeSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.chatRepo.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Infof("已清理 %d 个过期会话 (cutoff=%s)", n, cutoff.Format(time.RFC3339))
	return n, nil
}
