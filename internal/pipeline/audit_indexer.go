// Package pipeline 定义了查询审计记录从 Kafka 落到 Elasticsearch 的处理流程。
package pipeline

import (
	"context"
	"fmt"
	"shop-assistant-go/internal/model"
	"shop-assistant-go/pkg/es"
	"shop-assistant-go/pkg/log"
	"shop-assistant-go/pkg/metrics"

	"github.com/elastic/go-elasticsearch/v8"
)

// AuditIndexer 封装了写入审计索引所需的依赖。
type AuditIndexer struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewAuditIndexer 创建一个新的 AuditIndexer 实例。
func NewAuditIndexer(esClient *elasticsearch.Client, indexName string) *AuditIndexer {
	return &AuditIndexer{esClient: esClient, indexName: indexName}
}

// Process 将一条审计记录写入 Elasticsearch，满足 kafka.AuditProcessor。
func (p *AuditIndexer) Process(ctx context.Context, audit model.QueryAudit) error {
	if audit.SessionID == "" {
		return fmt.Errorf("audit record without session id")
	}
	if audit.CreatedAt.IsZero() {
		return fmt.Errorf("audit record without timestamp: session=%s", audit.SessionID)
	}

	err := es.IndexAudit(ctx, p.esClient, p.indexName, audit)
	metrics.ObserveAuditIndexed(err == nil)
	if err != nil {
		return fmt.Errorf("写入审计索引失败: %w", err)
	}
	log.Infow("query audit indexed", "session_id", audit.SessionID, "success", audit.Success, "attempts", audit.Attempts)
	return nil
}
