// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"shop-assistant-go/internal/config"
	"shop-assistant-go/internal/model"
	"shop-assistant-go/pkg/log"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// auditMapping 查询审计索引的字段映射。prompt 与 sql 用于全文检索，其余字段用于过滤和排序。
const auditMapping = `{
	"mappings": {
		"properties": {
			"session_id": { "type": "keyword" },
			"prompt": { "type": "text" },
			"sql": { "type": "text" },
			"attempts": { "type": "integer" },
			"success": { "type": "boolean" },
			"error": { "type": "text" },
			"render_kind": { "type": "keyword" },
			"row_count": { "type": "integer" },
			"duration_ms": { "type": "long" },
			"created_at": { "type": "date" }
		}
	}
}`

// NewClient 根据配置创建客户端，但不做任何网络请求。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	return elasticsearch.NewClient(cfg)
}

// InitES 初始化全局 Elasticsearch 客户端，并确保审计索引存在。
func InitES(esCfg config.ElasticsearchConfig) error {
	client, err := NewClient(esCfg)
	if err != nil {
		return err
	}
	ESClient = client
	return EnsureIndex(context.Background(), client, esCfg.AuditIndex, auditMapping)
}

// EnsureIndex 检查索引是否存在，不存在则按 mapping 创建。
func EnsureIndex(ctx context.Context, client *elasticsearch.Client, indexName, mapping string) error {
	res, err := client.Indices.Exists([]string{indexName}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
	}

	res, err = client.Indices.Create(
		indexName,
		client.Indices.Create.WithContext(ctx),
		client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// AuditDocumentID 审计文档 ID：<会话ID>-<纳秒时间戳>，重复投递时写入同一文档。
func AuditDocumentID(audit model.QueryAudit) string {
	return fmt.Sprintf("%s-%d", audit.SessionID, audit.CreatedAt.UnixNano())
}

// IndexAudit 将一条查询审计写入索引。
func IndexAudit(ctx context.Context, client *elasticsearch.Client, indexName string, audit model.QueryAudit) error {
	body, err := json.Marshal(audit)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: AuditDocumentID(audit),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("写入审计文档到 Elasticsearch 出错: %s", res.String())
		return fmt.Errorf("failed to index audit document: %s", res.Status())
	}
	return nil
}
