package service

import (
	"context"
	"encoding/json"
	"fmt"
	"shop-assistant-go/internal/model"
	"shop-assistant-go/internal/repository"
	"shop-assistant-go/pkg/storage"
	"shop-assistant-go/pkg/token"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 导出格式
const (
	ExportFormatJSON = "json"
	ExportFormatYAML = "yaml"
)

const exportURLExpiry = time.Hour

// Transcript 会话导出文件的内容。
type Transcript struct {
	Session    model.SessionDTO    `json:"session" yaml:"session"`
	ExportedAt time.Time           `json:"exportedAt" yaml:"exportedAt"`
	Messages   []TranscriptMessage `json:"messages" yaml:"messages"`
}

// TranscriptMessage 导出文件中的一条消息。
type TranscriptMessage struct {
	Role            string    `json:"role" yaml:"role"`
	Content         string    `json:"content" yaml:"content"`
	IsDatabaseQuery bool      `json:"isDatabaseQuery" yaml:"isDatabaseQuery"`
	SQL             string    `json:"sql,omitempty" yaml:"sql,omitempty"`
	ChartType       string    `json:"chartType,omitempty" yaml:"chartType,omitempty"`
	CreatedAt       time.Time `json:"createdAt" yaml:"createdAt"`
}

// ExportResult 导出完成后返回给调用方的信息。
type ExportResult struct {
	ObjectName string `json:"objectName"`
	URL        string `json:"url"`
	ExpiresAt  string `json:"expiresAt"`
}

// ExportService 将会话导出到对象存储。
type ExportService interface {
	Export(ctx context.Context, sessionID, format string) (*ExportResult, error)
}

type exportService struct {
	chatRepo repository.ChatRepository
	store    storage.ObjectStore
	now      func() time.Time
}

// NewExportService 创建一个新的 ExportService 实例。
func NewExportService(chatRepo repository.ChatRepository, store storage.ObjectStore) ExportService {
	return &exportService{chatRepo: chatRepo, store: store, now: time.Now}
}

// Export 生成会话记录文件并上传，返回一个一小时内有效的下载链接。
func (s *exportService) Export(ctx context.Context, sessionID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatJSON
	}
	if format != ExportFormatJSON && format != ExportFormatYAML {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}

	session, err := s.chatRepo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	messages, err := s.chatRepo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	transcript := BuildTranscript(*session, messages, now)
	data, contentType, err := EncodeTranscript(transcript, format)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("sessions/%s/%s-%s.%s", sessionID, now.Format("20060102T150405"), token.GenerateRandomString(4), format)
	if err := s.store.Put(ctx, objectName, data, contentType); err != nil {
		return nil, err
	}
	url, err := s.store.PresignedURL(ctx, objectName, exportURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign %s: %w", objectName, err)
	}
	return &ExportResult{
		ObjectName: objectName,
		URL:        url,
		ExpiresAt:  now.Add(exportURLExpiry).Format(time.RFC3339),
	}, nil
}

// BuildTranscript 组装导出内容。
func BuildTranscript(session model.ChatSession, messages []model.ChatMessage, exportedAt time.Time) Transcript {
	t := Transcript{
		Session:    session.ToDTO(),
		ExportedAt: exportedAt,
		Messages:   make([]TranscriptMessage, 0, len(messages)),
	}
	for _, m := range messages {
		tm := TranscriptMessage{
			Role:            m.Role,
			Content:         m.Content,
			IsDatabaseQuery: m.IsDatabaseQuery,
			CreatedAt:       m.CreatedAt,
		}
		if m.RelatedSQL != nil {
			tm.SQL = *m.RelatedSQL
		}
		if m.ChartType != nil {
			tm.ChartType = *m.ChartType
		}
		t.Messages = append(t.Messages, tm)
	}
	return t
}

// EncodeTranscript 按格式编码，返回内容和 Content-Type。
func EncodeTranscript(t Transcript, format string) ([]byte, string, error) {
	switch format {
	case ExportFormatYAML:
		data, err := yaml.Marshal(t)
		if err != nil {
			return nil, "", fmt.Errorf("encode yaml transcript: %w", err)
		}
		return data, "application/yaml", nil
	default:
		data, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("encode json transcript: %w", err)
		}
		return data, "application/json", nil
	}
}
