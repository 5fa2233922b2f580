package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gochat/internal/common"
	"gochat/internal/dbmysql"
)

var messageColumns = []string{
	"id", "message_id", "participant_a", "participant_b", "sender_id", "kind", "text", "image_path", "created_at",
}

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

func TestMessageRepository_Create(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		message     *dbmysql.Message
		mockSetup   func(sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "successful create",
			message: &dbmysql.Message{
				ParticipantA: "u1",
				ParticipantB: "u2",
				SenderID:     "u1",
				Kind:         "text",
				Text:         "hi",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(
					"INSERT INTO `messages` (`message_id`,`participant_a`,`participant_b`,`sender_id`,`kind`,`text`,`image_path`,`created_at`) VALUES (?,?,?,?,?,?,?,?)")).
					WithArgs(sqlmock.AnyArg(), "u1", "u2", "u1", "text", "hi", "", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(7, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "database error",
			message: &dbmysql.Message{
				ParticipantA: "u1",
				ParticipantB: "u2",
				SenderID:     "u1",
				Kind:         "image",
				ImagePath:    "/media/abc",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `messages`")).
					WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			repo := &messageRepo{db: db, now: func() time.Time { return fixed }}
			err := repo.Create(context.Background(), tt.message)

			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, common.ErrPersistence))
				assert.True(t, errors.Is(err, assert.AnError))
			} else {
				require.NoError(t, err)
				assert.Equal(t, uint(7), tt.message.ID)
				assert.Len(t, tt.message.MessageID, 36)
				assert.Equal(t, fixed, tt.message.CreatedAt)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMessageRepository_FindByID(t *testing.T) {
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		db, mock, cleanup := setupTestDB(t)
		defer cleanup()

		rows := sqlmock.NewRows(messageColumns).
			AddRow(1, "m-1", "u1", "u2", "u1", "text", "hi", "", now)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `messages` WHERE message_id = ?")).
			WillReturnRows(rows)

		msg, err := NewMessageRepository(db).FindByID(context.Background(), "m-1")
		require.NoError(t, err)
		assert.Equal(t, "m-1", msg.MessageID)
		assert.Equal(t, "u1", msg.SenderID)
		assert.Equal(t, "hi", msg.Text)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		db, mock, cleanup := setupTestDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `messages` WHERE message_id = ?")).
			WillReturnRows(sqlmock.NewRows(messageColumns))

		_, err := NewMessageRepository(db).FindByID(context.Background(), "nope")
		assert.True(t, errors.Is(err, common.ErrNotFound))
		assert.False(t, errors.Is(err, common.ErrPersistence))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		db, mock, cleanup := setupTestDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `messages`")).
			WillReturnError(assert.AnError)

		_, err := NewMessageRepository(db).FindByID(context.Background(), "m-1")
		assert.True(t, errors.Is(err, common.ErrPersistence))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMessageRepository_FindByPair(t *testing.T) {
	now := time.Now().UTC()
	query := regexp.QuoteMeta(
		"SELECT * FROM `messages` WHERE (participant_a = ? AND participant_b = ?) OR (participant_a = ? AND participant_b = ?) ORDER BY created_at ASC, id ASC")

	tests := []struct {
		name          string
		mockSetup     func(sqlmock.Sqlmock)
		expectedCount int
		expectError   bool
	}{
		{
			name: "both directions",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(messageColumns).
					AddRow(1, "m-1", "u1", "u2", "u1", "text", "hi", "", now).
					AddRow(2, "m-2", "u2", "u1", "u2", "image", "", "img1.png", now.Add(time.Second))
				mock.ExpectQuery(query).
					WithArgs("u1", "u2", "u2", "u1").
					WillReturnRows(rows)
			},
			expectedCount: 2,
		},
		{
			name: "no messages",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).
					WithArgs("u1", "u2", "u2", "u1").
					WillReturnRows(sqlmock.NewRows(messageColumns))
			},
			expectedCount: 0,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `messages`")).
					WillReturnError(assert.AnError)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			messages, err := NewMessageRepository(db).FindByPair(context.Background(), "u1", "u2")
			if tt.expectError {
				assert.True(t, errors.Is(err, common.ErrPersistence))
				assert.Nil(t, messages)
			} else {
				require.NoError(t, err)
				assert.Len(t, messages, tt.expectedCount)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMessageRepository_ListByParticipant(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(messageColumns).
		AddRow(1, "m-1", "u1", "u2", "u1", "text", "hi", "", now).
		AddRow(2, "m-2", "u3", "u1", "u3", "text", "yo", "", now)
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM `messages` WHERE participant_a = ? OR participant_b = ? ORDER BY created_at ASC, id ASC")).
		WithArgs("u1", "u1").
		WillReturnRows(rows)

	messages, err := NewMessageRepository(db).ListByParticipant(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "u3", messages[1].SenderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_Delete(t *testing.T) {
	tests := []struct {
		name        string
		result      func(sqlmock.Sqlmock)
		expected    bool
		expectError bool
	}{
		{
			name: "row removed",
			result: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `messages` WHERE message_id = ?")).
					WithArgs("m-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expected: true,
		},
		{
			name: "nothing to remove",
			result: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `messages` WHERE message_id = ?")).
					WithArgs("m-1").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expected: false,
		},
		{
			name: "database error",
			result: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `messages`")).
					WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.result(mock)

			removed, err := NewMessageRepository(db).Delete(context.Background(), "m-1")
			if tt.expectError {
				assert.True(t, errors.Is(err, common.ErrPersistence))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, removed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMessageRepository_Count(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `messages`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := NewMessageRepository(db).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepository_CountByImagePath(t *testing.T) {
	query := regexp.QuoteMeta("SELECT count(*) FROM `messages` WHERE image_path = ?")

	t.Run("counts references", func(t *testing.T) {
		db, mock, cleanup := setupTestDB(t)
		defer cleanup()

		mock.ExpectQuery(query).
			WithArgs("/media/abc").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		n, err := NewMessageRepository(db).CountByImagePath(context.Background(), "/media/abc")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		db, mock, cleanup := setupTestDB(t)
		defer cleanup()

		mock.ExpectQuery(query).
			WithArgs("/media/abc").
			WillReturnError(assert.AnError)

		_, err := NewMessageRepository(db).CountByImagePath(context.Background(), "/media/abc")
		assert.True(t, errors.Is(err, common.ErrPersistence))
	})
}
