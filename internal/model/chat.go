// Package model 包含了应用的数据模型定义。
package model

import "time"

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxSessionTitleLength 会话标题的最大字符数，与 chat_sessions.title 列宽一致。
const MaxSessionTitleLength = 255

// ChatSession 代表一次持久化的对话线程。
type ChatSession struct {
	SessionID string    `gorm:"primaryKey;type:varchar(36)" json:"sessionId"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	CreatedAt time.Time `gorm:"type:datetime(3);index;not null" json:"createdAt"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 代表会话中的单条消息，只追加不修改。
// 数据查询产生的 assistant 消息，Content 中保存的是完整的事件信封 JSON。
type ChatMessage struct {
	MessageID       uint      `gorm:"primaryKey;autoIncrement" json:"messageId"`
	SessionID       string    `gorm:"type:varchar(36);index:idx_session_created,priority:1;not null" json:"sessionId"`
	Role            string    `gorm:"type:varchar(16);not null" json:"role"`
	Content         string    `gorm:"type:longtext;not null" json:"content"`
	IsDatabaseQuery bool      `gorm:"not null;default:false" json:"isDatabaseQuery"`
	RelatedSQL      *string   `gorm:"column:related_sql;type:text" json:"relatedSql"`
	ChartType       *string   `gorm:"type:varchar(32)" json:"chartType"`
	AdditionalData  *string   `gorm:"type:longtext" json:"-"`
	CreatedAt       time.Time `gorm:"type:datetime(3);index:idx_session_created,priority:2;not null" json:"createdAt"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// SessionDTO 是会话列表接口返回的结构。
type SessionDTO struct {
	SessionID string    `json:"sessionId" yaml:"sessionId"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt LocalTime `json:"createdAt" yaml:"createdAt"`
}

// ToDTO 将会话实体转换为对外输出的结构。
func (s ChatSession) ToDTO() SessionDTO {
	return SessionDTO{SessionID: s.SessionID, Title: s.Title, CreatedAt: LocalTime(s.CreatedAt)}
}

// ClipTitle 按字符截断首条提问作为会话标题。
func ClipTitle(prompt string) string {
	r := []rune(prompt)
	if len(r) <= MaxSessionTitleLength {
		return prompt
	}
	return string(r[:MaxSessionTitleLength])
}

// StringPtr 返回字符串指针，空串返回 nil。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
