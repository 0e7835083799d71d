package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"shop-assistant-go/internal/model"
	"shop-assistant-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

const (
	defaultAuditSize = 20
	maxAuditSize     = 200
)

// AuditService 检索查询审计记录。
type AuditService interface {
	Search(ctx context.Context, q model.AuditQuery) (*model.AuditSearchResult, error)
}

type auditService struct {
	esClient  *elasticsearch.Client
	indexName string
}

// NewAuditService 创建一个新的 AuditService 实例。
func NewAuditService(esClient *elasticsearch.Client, indexName string) AuditService {
	return &auditService{esClient: esClient, indexName: indexName}
}

// BuildAuditQuery 构建 Elasticsearch 查询：文本匹配 prompt/sql，按会话和成功与否过滤，按时间倒序。
func BuildAuditQuery(q model.AuditQuery) map[string]interface{} {
	size := q.Size
	if size <= 0 {
		size = defaultAuditSize
	}
	if size > maxAuditSize {
		size = maxAuditSize
	}

	var must []map[string]interface{}
	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"prompt", "sql"},
			},
		})
	}
	var filter []map[string]interface{}
	if q.SessionID != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"session_id": q.SessionID}})
	}
	if q.Success != nil {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"success": *q.Success}})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	} else {
		boolQuery["must"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []map[string]interface{}{
			{"created_at": map[string]interface{}{"order": "desc"}},
		},
		"size": size,
	}
}

func (s *auditService) Search(ctx context.Context, q model.AuditQuery) (*model.AuditSearchResult, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(BuildAuditQuery(q)); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(ctx),
		s.esClient.Search.WithIndex(s.indexName),
		s.esClient.Search.WithBody(&buf),
		s.esClient.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		log.Errorf("[AuditService] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[AuditService] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(body))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source model.QueryAudit `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	result := &model.AuditSearchResult{
		Total: esResponse.Hits.Total.Value,
		Items: make([]model.QueryAudit, 0, len(esResponse.Hits.Hits)),
	}
	for _, hit := range esResponse.Hits.Hits {
		result.Items = append(result.Items, hit.Source)
	}
	return result, nil
}
