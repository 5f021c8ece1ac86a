package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

const memberColumns = `id, alias, display_name, email, personnel_id, user_id, active, created_at, updated_at`

// GroupRepository persists mail aliases and their members.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// UpsertGroup creates the alias or refreshes its display name.
func (r *GroupRepository) UpsertGroup(ctx context.Context, group models.Group) error {
	const query = `INSERT INTO groups (alias, display_name, created_at) VALUES ($1, $2, $3)
ON CONFLICT (alias) DO UPDATE SET display_name = EXCLUDED.display_name`
	if _, err := r.db.ExecContext(ctx, query, models.NormalizeEmail(group.Alias), group.DisplayName, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	return nil
}

// ListGroups returns every alias with its active member count.
func (r *GroupRepository) ListGroups(ctx context.Context) ([]GroupWithCount, error) {
	const query = `SELECT g.alias, g.display_name, g.created_at, COUNT(m.id) FILTER (WHERE m.active) AS active_members
FROM groups g LEFT JOIN group_members m ON m.alias = g.alias
GROUP BY g.alias, g.display_name, g.created_at
ORDER BY g.alias`
	var groups []GroupWithCount
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// GroupWithCount is a group row joined with its active member count.
type GroupWithCount struct {
	models.Group
	ActiveMembers int `db:"active_members"`
}

// FindGroup loads an alias.
func (r *GroupRepository) FindGroup(ctx context.Context, alias string) (*models.Group, error) {
	const query = `SELECT alias, display_name, created_at FROM groups WHERE alias = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, models.NormalizeEmail(alias)); err != nil {
		return nil, err
	}
	return &group, nil
}

// ExistingAliases returns the subset of aliases that are known.
func (r *GroupRepository) ExistingAliases(ctx context.Context, aliases []string) (map[string]bool, error) {
	known := make(map[string]bool, len(aliases))
	if len(aliases) == 0 {
		return known, nil
	}
	query, args, err := sqlx.In(`SELECT alias FROM groups WHERE alias IN (?)`, aliases)
	if err != nil {
		return nil, fmt.Errorf("build alias query: %w", err)
	}
	var found []string
	if err := r.db.SelectContext(ctx, &found, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("check aliases: %w", err)
	}
	for _, alias := range found {
		known[alias] = true
	}
	return known, nil
}

// ListMembers returns members of an alias ordered by name.
func (r *GroupRepository) ListMembers(ctx context.Context, alias string, activeOnly bool) ([]models.GroupMember, error) {
	query := `SELECT ` + memberColumns + ` FROM group_members WHERE alias = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY display_name ASC, id ASC`
	var members []models.GroupMember
	if err := r.db.SelectContext(ctx, &members, query, models.NormalizeEmail(alias)); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}

// FindMember loads a member by id.
func (r *GroupRepository) FindMember(ctx context.Context, id string) (*models.GroupMember, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + memberColumns + ` FROM group_members WHERE id = $1`
	var member models.GroupMember
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// FindActiveByEmail returns the active member of alias owning email, if any.
func (r *GroupRepository) FindActiveByEmail(ctx context.Context, alias, email string) (*models.GroupMember, error) {
	const query = `SELECT ` + memberColumns + ` FROM group_members
WHERE alias = $1 AND active AND LOWER(email) = $2 LIMIT 1`
	var member models.GroupMember
	if err := r.db.GetContext(ctx, &member, query, models.NormalizeEmail(alias), models.NormalizeEmail(email)); err != nil {
		return nil, err
	}
	return &member, nil
}

// CreateMember inserts a member. A second active member with the same email yields ErrDuplicate.
func (r *GroupRepository) CreateMember(ctx context.Context, member *models.GroupMember) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = member.CreatedAt
	member.Alias = models.NormalizeEmail(member.Alias)
	const query = `INSERT INTO group_members (` + memberColumns + `)
VALUES (:id, :alias, :display_name, :email, :personnel_id, :user_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert group member: %w", err)
	}
	return nil
}

// UpdateMember overwrites the mutable member columns.
func (r *GroupRepository) UpdateMember(ctx context.Context, member *models.GroupMember) error {
	member.UpdatedAt = time.Now().UTC()
	const query = `UPDATE group_members SET display_name = :display_name, email = :email, personnel_id = :personnel_id,
       user_id = :user_id, active = :active, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, member)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update group member: %w", err)
	}
	return expectAffected(result, "group member")
}

// AliasesForIdentity returns aliases where the identity matches an active member by email,
// personnel id or user id.
func (r *GroupRepository) AliasesForIdentity(ctx context.Context, identity models.GroupIdentity) ([]string, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	if email := models.NormalizeEmail(identity.Email); email != "" {
		args = append(args, email)
		conditions = append(conditions, fmt.Sprintf("LOWER(email) = $%d", len(args)))
	}
	if pid := strings.TrimSpace(identity.PersonnelID); pid != "" {
		args = append(args, pid)
		conditions = append(conditions, fmt.Sprintf("personnel_id = $%d", len(args)))
	}
	if identity.UserID > 0 {
		args = append(args, identity.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return []string{}, nil
	}
	query := `SELECT DISTINCT alias FROM group_members WHERE active AND (` + strings.Join(conditions, " OR ") + `) ORDER BY alias`
	var aliases []string
	if err := r.db.SelectContext(ctx, &aliases, query, args...); err != nil {
		return nil, fmt.Errorf("list aliases for identity: %w", err)
	}
	return aliases, nil
}
