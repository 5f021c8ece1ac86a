package repository

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var documentColumnNames = []string{"id", "name", "description", "version", "parent_id", "root_id", "creator_id", "creator_email", "creator_name",
	"access_token", "state", "limit_hours", "deadline_at", "reminder_interval_hours", "last_reminder_at", "finalized_at",
	"file_path", "file_name", "created_at", "updated_at"}

var slotColumnNames = []string{"id", "document_id", "position", "binding_kind", "user_id", "group_alias", "signer_member_id", "signer_name",
	"token", "state", "page", "pos_x", "pos_y", "width", "height", "rejection_reason", "signed_at", "created_at", "updated_at"}
