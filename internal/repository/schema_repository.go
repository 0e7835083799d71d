package repository

import (
	"context"
	"database/sql"
	"fmt"
	"shop-assistant-go/internal/model"
)

// 方言
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

type schemaQueries struct {
	tables      string
	columns     string
	foreignKeys string
}

var dialectQueries = map[string]schemaQueries{
	DialectMySQL: {
		tables: `SELECT TABLE_NAME, TABLE_COMMENT FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`,
		columns: `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_COMMENT FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME, ORDINAL_POSITION`,
		foreignKeys: `SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL ORDER BY TABLE_NAME, COLUMN_NAME`,
	},
	DialectPostgres: {
		tables: `SELECT c.relname, COALESCE(obj_description(c.oid, 'pg_class'), '') FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = current_schema() AND c.relkind = 'r' ORDER BY c.relname`,
		columns: `SELECT c.table_name, c.column_name, c.data_type, c.is_nullable,
COALESCE(col_description((quote_ident(c.table_schema) || '.' || quote_ident(c.table_name))::regclass, c.ordinal_position), '')
FROM information_schema.columns c WHERE c.table_schema = current_schema() ORDER BY c.table_name, c.ordinal_position`,
		foreignKeys: `SELECT tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema() ORDER BY 1, 2`,
	},
}

// SchemaRepository 从 information_schema 读取业务库结构。
type SchemaRepository struct {
	db      *sql.DB
	dialect string
	exclude map[string]bool
}

// NewSchemaRepository 创建 SchemaRepository。exclude 中的表（如会话表）不会出现在描述中。
func NewSchemaRepository(db *sql.DB, dialect string, exclude ...string) *SchemaRepository {
	ex := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		ex[t] = true
	}
	return &SchemaRepository{db: db, dialect: dialect, exclude: ex}
}

// Describe 返回表、列与外键信息。
func (r *SchemaRepository) Describe(ctx context.Context) (model.DatabaseSchema, error) {
	q, ok := dialectQueries[r.dialect]
	if !ok {
		return model.DatabaseSchema{}, fmt.Errorf("unsupported dialect %q", r.dialect)
	}

	var schema model.DatabaseSchema
	index := map[string]int{}

	rows, err := r.db.QueryContext(ctx, q.tables)
	if err != nil {
		return schema, fmt.Errorf("query tables: %w", err)
	}
	for rows.Next() {
		var t model.TableDescription
		if err := rows.Scan(&t.Name, &t.Description); err != nil {
			rows.Close()
			return schema, fmt.Errorf("scan table: %w", err)
		}
		if r.exclude[t.Name] {
			continue
		}
		index[t.Name] = len(schema.Tables)
		schema.Tables = append(schema.Tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return schema, err
	}

	rows, err = r.db.QueryContext(ctx, q.columns)
	if err != nil {
		return schema, fmt.Errorf("query columns: %w", err)
	}
	for rows.Next() {
		var table, nullable string
		var c model.ColumnInfo
		if err := rows.Scan(&table, &c.Name, &c.DataType, &nullable, &c.Description); err != nil {
			rows.Close()
			return schema, fmt.Errorf("scan column: %w", err)
		}
		i, ok := index[table]
		if !ok {
			continue
		}
		c.Nullable = nullable == "YES"
		schema.Tables[i].Columns = append(schema.Tables[i].Columns, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return schema, err
	}

	rows, err = r.db.QueryContext(ctx, q.foreignKeys)
	if err != nil {
		return schema, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fk model.ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return schema, fmt.Errorf("scan foreign key: %w", err)
		}
		if r.exclude[fk.Table] || r.exclude[fk.ReferencedTable] {
			continue
		}
		schema.ForeignKeys = append(schema.ForeignKeys, fk)
	}
	return schema, rows.Err()
}
