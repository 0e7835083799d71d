package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop-assistant-go/internal/model"
)

func TestSchemaRepositoryDescribeMySQL(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewSchemaRepository(db, DialectMySQL, "chat_sessions", "chat_messages")

	mock.ExpectQuery("FROM information_schema.TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_COMMENT"}).
			AddRow("Products", "Ürünler").
			AddRow("Categories", "").
			AddRow("chat_sessions", ""))
	mock.ExpectQuery("FROM information_schema.COLUMNS").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "COLUMN_COMMENT"}).
			AddRow("Products", "ProductId", "int", "NO", "").
			AddRow("Products", "CategoryId", "int", "YES", "Kategori").
			AddRow("Categories", "CategoryId", "int", "NO", "").
			AddRow("chat_sessions", "session_id", "varchar", "NO", ""))
	mock.ExpectQuery("FROM information_schema.KEY_COLUMN_USAGE").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}).
			AddRow("Products", "CategoryId", "Categories", "CategoryId"))

	schema, err := repo.Describe(context.Background())
	require.NoError(t, err)

	require.Len(t, schema.Tables, 2)
	assert.Equal(t, "Products", schema.Tables[0].Name)
	assert.Equal(t, "Ürünler", schema.Tables[0].Description)
	require.Len(t, schema.Tables[0].Columns, 2)
	assert.Equal(t, model.ColumnInfo{Name: "CategoryId", DataType: "int", Nullable: true, Description: "Kategori"}, schema.Tables[0].Columns[1])
	assert.Equal(t, []model.ForeignKey{{Table: "Products", Column: "CategoryId", ReferencedTable: "Categories", ReferencedColumn: "CategoryId"}}, schema.ForeignKeys)
	assertSQLMock(t, mock)
}

func TestSchemaRepositoryUnknownDialect(t *testing.T) {
	db, _ := newSQLMock(t)
	_, err := NewSchemaRepository(db, "oracle").Describe(context.Background())
	assert.Error(t, err)
}
