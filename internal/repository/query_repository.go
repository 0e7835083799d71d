package repository

import (
	"context"
	"database/sql"
	"fmt"
	"shop-assistant-go/internal/model"
	"strconv"
	"strings"
	"time"
)

// QueryRepository 在业务库上执行模型生成的 SQL，结果按列顺序返回。
type QueryRepository struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
}

// NewQueryRepository 创建查询执行器。maxRows <= 0 表示不限制行数。
func NewQueryRepository(db *sql.DB, maxRows int, timeout time.Duration) *QueryRepository {
	return &QueryRepository{db: db, maxRows: maxRows, timeout: timeout}
}

// Execute 执行一条查询。失败时返回的 error 文本会回传给模型用于修正。
func (r *QueryRepository) Execute(ctx context.Context, query string) ([]model.Row, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	numeric := make([]bool, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			numeric[i] = isNumericType(ct.DatabaseTypeName())
		}
	}

	result := make([]model.Row, 0)
	for rows.Next() {
		if r.maxRows > 0 && len(result) >= r.maxRows {
			break
		}
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, normalizeRow(columns, values, numeric))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// normalizeRow 将驱动值转为 model.Row；MySQL 文本协议下 DECIMAL 等数值列以 []byte 返回，需按列类型解析。
func normalizeRow(columns []string, values []any, numeric []bool) model.Row {
	row := make(model.Row, 0, len(columns))
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok && numeric[i] {
			if f, err := strconv.ParseFloat(string(b), 64); err == nil {
				row = append(row, model.Field{Key: col, Value: model.Number(f)})
				continue
			}
		}
		row = append(row, model.Field{Key: col, Value: model.FromAny(v)})
	}
	return row
}

func isNumericType(name string) bool {
	switch strings.ToUpper(name) {
	case "DECIMAL", "NUMERIC", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "REAL",
		"INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT",
		"UNSIGNED INT", "UNSIGNED BIGINT", "UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT",
		"INT2", "INT4", "INT8", "MONEY":
		return true
	}
	return false
}
