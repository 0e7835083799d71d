package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRepositoryExecuteKeepsColumnOrder(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewQueryRepository(db, 0, 0)

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("ProductName").OfType("VARCHAR", ""),
		sqlmock.NewColumn("TotalSales").OfType("DECIMAL", []byte{}),
		sqlmock.NewColumn("IsActive").OfType("BOOL", false),
		sqlmock.NewColumn("Note").OfType("VARCHAR", ""),
	).
		AddRow([]byte("Kalem"), []byte("120.50"), true, nil).
		AddRow([]byte("Defter"), []byte("80"), false, []byte("indirim"))
	mock.ExpectQuery("SELECT ProductName").WillReturnRows(rows)

	result, err := repo.Execute(context.Background(), "SELECT ProductName, TotalSales, IsActive, Note FROM Products")
	require.NoError(t, err)
	require.Len(t, result, 2)

	b, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"ProductName":"Kalem","TotalSales":120.5,"IsActive":true,"Note":null},
		  {"ProductName":"Defter","TotalSales":80,"IsActive":false,"Note":"indirim"}]`,
		string(b))
	assert.Equal(t, []string{"ProductName", "TotalSales", "IsActive", "Note"}, result[0].Keys())
	assertSQLMock(t, mock)
}

func TestQueryRepositoryExecuteError(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewQueryRepository(db, 0, 0)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("Unknown column 'Foo' in 'field list'"))

	_, err := repo.Execute(context.Background(), "SELECT Foo FROM Products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown column 'Foo'")
	assertSQLMock(t, mock)
}

func TestQueryRepositoryExecuteRowCap(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewQueryRepository(db, 2, 0)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3)
	mock.ExpectQuery("SELECT id").WillReturnRows(rows)

	result, err := repo.Execute(context.Background(), "SELECT id FROM Orders")
	require.NoError(t, err)
	assert.Len(t, result, 2)
}
