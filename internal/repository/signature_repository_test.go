package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

func TestSignatureRepositoryDuplicateSlot(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewSignatureRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signatures")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "signatures_slot_id_key"})

	err := repo.Create(context.Background(), nil, &models.Signature{DocumentID: docID, SlotID: "slot-1", SignerName: "ANA"})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}
