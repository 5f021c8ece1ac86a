package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

func TestGroupRepositoryAliasesForIdentity(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE active AND (LOWER(email) = $1 OR personnel_id = $2 OR user_id = $3)")).
		WithArgs("ana@example.com", "P-77", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"alias"}).AddRow("compras@example.com"))

	aliases, err := repo.AliasesForIdentity(context.Background(), models.GroupIdentity{Email: "Ana@example.com", PersonnelID: "P-77", UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"compras@example.com"}, aliases)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryAliasesForEmptyIdentity(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGroupRepository(db)

	aliases, err := repo.AliasesForIdentity(context.Background(), models.GroupIdentity{})
	require.NoError(t, err)
	assert.Empty(t, aliases)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryCreateMemberDuplicateEmail(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGroupRepository(db)
	email := "ana@example.com"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_members")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateMember(context.Background(), &models.GroupMember{Alias: "Compras@example.com", DisplayName: "Ana", Email: &email, Active: true})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryExistingAliases(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT alias FROM groups WHERE alias IN (?, ?)")).
		WithArgs("a@example.com", "b@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"alias"}).AddRow("a@example.com"))

	known, err := repo.ExistingAliases(context.Background(), []string{"a@example.com", "b@example.com"})
	require.NoError(t, err)
	assert.True(t, known["a@example.com"])
	assert.False(t, known["b@example.com"])
	require.NoError(t, mock.ExpectationsWereMet())
}
