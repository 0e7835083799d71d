package model

import "time"

// QueryAudit 记录一次数据查询轮次的结果，经 Kafka 投递后写入 Elasticsearch。
type QueryAudit struct {
	SessionID  string    `json:"session_id"`
	Prompt     string    `json:"prompt"`
	SQL        string    `json:"sql"`
	Attempts   int       `json:"attempts"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	RenderKind string    `json:"render_kind,omitempty"`
	RowCount   int       `json:"row_count"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditQuery 审计检索条件。
type AuditQuery struct {
	Text      string
	SessionID string
	Success   *bool
	Size      int
}

// AuditSearchResult 审计检索结果。
type AuditSearchResult struct {
	Total int64        `json:"total"`
	Items []QueryAudit `json:"items"`
}
