package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shop-assistant-go/internal/model"
)

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newGormMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMock(t)
	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	return gdb, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations were not met: %v", err)
	}
}

var messageColumns = []string{
	"message_id", "session_id", "role", "content", "is_database_query",
	"related_sql", "chart_type", "additional_data", "created_at",
}

func TestCreateSessionClipsTitle(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := NewChatRepository(gdb)

	longPrompt := strings.Repeat("ş", 300)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `chat_sessions`").
		WithArgs(sqlmock.AnyArg(), strings.Repeat("ş", 255), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	session, err := repo.CreateSession(context.Background(), longPrompt)
	require.NoError(t, err)
	assert.Len(t, session.SessionID, 36)
	assert.Equal(t, 255, len([]rune(session.Title)))
	assertSQLMock(t, mock)
}

func TestGetSessionNotFound(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := NewChatRepository(gdb)

	mock.ExpectQuery("SELECT \\* FROM `chat_sessions` WHERE session_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "title", "created_at"}))

	_, err := repo.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assertSQLMock(t, mock)
}

func TestGetSession(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := NewChatRepository(gdb)

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT \\* FROM `chat_sessions` WHERE session_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "title", "created_at"}).
			AddRow("s-1", "merhaba", created))

	session, err := repo.GetSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "merhaba", session.Title)
	assert.Equal(t, created, session.CreatedAt)
	assertSQLMock(t, mock)
}

func TestAppendMessageAssignsID(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := NewChatRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `chat_messages`").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	msg := &model.ChatMessage{SessionID: "s-1", Role: model.RoleUser, Content: "merhaba"}
	require.NoError(t, repo.AppendMessage(context.Background(), msg))
	assert.Equal(t, uint(7), msg.MessageID)
	assert.False(t, msg.CreatedAt.IsZero())
	assertSQLMock(t, mock)
}

func TestListMessagesOrdered(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := NewChatRepository(gdb)

	now := time.Now()
	sqlText := "SELECT TOP 5 *"
	mock.ExpectQuery("SELECT \\* FROM `chat_messages` WHERE session_id = \\? ORDER BY created_at ASC,\\s*message_id ASC").
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(messageColumns).
			AddRow(1, "s-1", "user", "liste", false, nil, nil, nil, now).
			AddRow(2, "s-1", "assistant", `{"type":"data_response"}`, true, sqlText, "table", "[]", now))

	msgs, err := repo.ListMessages(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.True(t, msgs[1].IsDatabaseQuery)
	require.NotNil(t, msgs[1].RelatedSQL)
	assert.Equal(t, sqlText, *msgs[1].RelatedSQL)
	assertSQLMock(t, mock)
}

func TestListSessionsByRecency(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := NewChatRepository(gdb)

	mock.ExpectQuery("SELECT \\* FROM `chat_sessions` ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "title", "created_at"}).
			AddRow("b", "yeni", time.Now()).
			AddRow("a", "eski", time.Now().Add(-time.Hour)))

	sessions, err := repo.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].SessionID)
	assertSQLMock(t, mock)
}

func TestDeleteSessionCascades(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := NewChatRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `chat_messages` WHERE session_id = \\?").
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM `chat_sessions` WHERE session_id = \\?").
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteSession(context.Background(), "s-1"))
	assertSQLMock(t, mock)
}

func TestDeleteSessionMissingRollsBack(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := NewChatRepository(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `chat_messages`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM `chat_sessions`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteSession(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assertSQLMock(t, mock)
}

func TestDeleteSessionsBefore(t *testing.T) {
	gdb, mock := newGormMock(t)
	repo := NewChatRepository(gdb)

	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `chat_messages` WHERE session_id IN \\(SELECT .*session_id.* FROM `chat_sessions` WHERE created_at < \\?\\)").
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("DELETE FROM `chat_sessions` WHERE created_at < \\?").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n, err := repo.DeleteSessionsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assertSQLMock(t, mock)
}
