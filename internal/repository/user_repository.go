package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

// UserRepository reads the identity provider's users table.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByIDs returns the active users among ids keyed by id.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	users := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	const query = `SELECT id, email, full_name, active FROM users WHERE id = ANY($1) AND active`
	var rows []models.User
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	for _, user := range rows {
		users[user.ID] = user
	}
	return users, nil
}
