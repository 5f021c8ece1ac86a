package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/repository"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
)

type groupRepoStub struct {
	groups  map[string]models.Group
	members map[string]models.GroupMember
}

func newGroupRepoStub() *groupRepoStub {
	return &groupRepoStub{groups: map[string]models.Group{}, members: map[string]models.GroupMember{}}
}

func (r *groupRepoStub) UpsertGroup(_ context.Context, group models.Group) error {
	r.groups[models.NormalizeEmail(group.Alias)] = group
	return nil
}

func (r *groupRepoStub) ListGroups(context.Context) ([]repository.GroupWithCount, error) {
	out := []repository.GroupWithCount{}
	for alias, group := range r.groups {
		count := 0
		for _, m := range r.members {
			if m.Alias == alias && m.Active {
				count++
			}
		}
		out = append(out, repository.GroupWithCount{Group: group, ActiveMembers: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func (r *groupRepoStub) FindGroup(_ context.Context, alias string) (*models.Group, error) {
	group, ok := r.groups[alias]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &group, nil
}

func (r *groupRepoStub) ListMembers(_ context.Context, alias string, activeOnly bool) ([]models.GroupMember, error) {
	out := []models.GroupMember{}
	for _, m := range r.members {
		if m.Alias == alias && (!activeOnly || m.Active) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (r *groupRepoStub) FindMember(_ context.Context, id string) (*models.GroupMember, error) {
	m, ok := r.members[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &m, nil
}

func (r *groupRepoStub) FindActiveByEmail(_ context.Context, alias, email string) (*models.GroupMember, error) {
	for _, m := range r.members {
		if m.Alias == alias && m.Active && m.Email != nil && *m.Email == email {
			found := m
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *groupRepoStub) CreateMember(_ context.Context, member *models.GroupMember) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	r.members[member.ID] = *member
	return nil
}

func (r *groupRepoStub) UpdateMember(_ context.Context, member *models.GroupMember) error {
	if _, ok := r.members[member.ID]; !ok {
		return sql.ErrNoRows
	}
	r.members[member.ID] = *member
	return nil
}

func newGroupFixture(t *testing.T) (*GroupService, *groupRepoStub, *auditStub) {
	t.Helper()
	repo := newGroupRepoStub()
	repo.groups["compras@example.com"] = models.Group{Alias: "compras@example.com", DisplayName: "Compras"}
	audit := &auditStub{}
	return NewGroupService(repo, audit, nil, nil), repo, audit
}

func TestAddMemberRejectsDuplicateActiveEmail(t *testing.T) {
	svc, _, audit := newGroupFixture(t)
	ctx := context.Background()

	created, err := svc.AddMember(ctx, admin, "Compras@example.com", dto.GroupMemberRequest{DisplayName: " Ana Ruiz ", Email: "ANA@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", created.DisplayName)
	require.NotNil(t, created.Email)
	assert.Equal(t, "ana@example.com", *created.Email)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionMemberCreate, audit.entries[0].Action)

	_, err = svc.AddMember(ctx, admin, "compras@example.com", dto.GroupMemberRequest{DisplayName: "Otra Ana", Email: "ana@example.com"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	require.NoError(t, svc.DeactivateMember(ctx, admin, "compras@example.com", created.ID))
	_, err = svc.AddMember(ctx, admin, "compras@example.com", dto.GroupMemberRequest{DisplayName: "Otra Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	members, err := svc.ListMembers(ctx, "compras@example.com", false)
	require.NoError(t, err)
	assert.Len(t, members, 1)
	all, err := svc.ListMembers(ctx, "compras@example.com", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAddMemberValidation(t *testing.T) {
	svc, _, _ := newGroupFixture(t)
	ctx := context.Background()

	_, err := svc.AddMember(ctx, admin, "compras@example.com", dto.GroupMemberRequest{DisplayName: "Sin identidad"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.AddMember(ctx, admin, "compras@example.com", dto.GroupMemberRequest{DisplayName: "Ana", Email: "no-es-correo"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.AddMember(ctx, admin, "ventas@example.com", dto.GroupMemberRequest{DisplayName: "Ana", PersonnelID: "P-1"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateMember(t *testing.T) {
	svc, repo, audit := newGroupFixture(t)
	ctx := context.Background()
	ana, err := svc.AddMember(ctx, admin, "compras@example.com", dto.GroupMemberRequest{DisplayName: "Ana", Email: "ana@example.com", UserID: int64Ptr(11)})
	require.NoError(t, err)
	luis, err := svc.AddMember(ctx, admin, "compras@example.com", dto.GroupMemberRequest{DisplayName: "Luis", Email: "luis@example.com"})
	require.NoError(t, err)

	taken := "ana@example.com"
	_, err = svc.UpdateMember(ctx, admin, "compras@example.com", luis.ID, dto.UpdateGroupMemberRequest{Email: &taken})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	name := "Ana Ruiz"
	clear := int64(0)
	updated, err := svc.UpdateMember(ctx, admin, "compras@example.com", ana.ID, dto.UpdateGroupMemberRequest{DisplayName: &name, UserID: &clear})
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", updated.DisplayName)
	assert.Nil(t, repo.members[ana.ID].UserID)

	inactive := false
	_, err = svc.UpdateMember(ctx, admin, "compras@example.com", ana.ID, dto.UpdateGroupMemberRequest{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, repo.members[ana.ID].Active)
	assert.Equal(t, models.AuditActionMemberDeactivate, audit.entries[len(audit.entries)-1].Action)

	_, err = svc.UpdateMember(ctx, admin, "otro@example.com", ana.ID, dto.UpdateGroupMemberRequest{DisplayName: &name})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApplyCatalogue(t *testing.T) {
	svc, repo, _ := newGroupFixture(t)
	ctx := context.Background()
	raw := []byte(`
groups:
  - alias: Compras@Example.com
    display_name: Compras y abastecimiento
    members:
      - display_name: Ana Ruiz
        email: ana@example.com
        personnel_id: P-200
      - display_name: Pedro Sol
        user_id: 55
  - alias: legal@example.com
    members:
      - email: Marta@example.com
`)

	loaded, err := svc.ApplyCatalogue(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Equal(t, "Compras y abastecimiento", repo.groups["compras@example.com"].DisplayName)
	assert.Equal(t, "legal@example.com", repo.groups["legal@example.com"].DisplayName)
	assert.Len(t, repo.members, 3)

	loaded, err = svc.ApplyCatalogue(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)
	assert.Len(t, repo.members, 3)

	groups, err := svc.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	active := make(map[string]int, len(groups))
	for _, g := range groups {
		active[g.Alias] = g.ActiveMembers
	}
	assert.Equal(t, map[string]int{"compras@example.com": 2, "legal@example.com": 1}, active)

	_, err = svc.ApplyCatalogue(ctx, []byte("groups:\n  - alias: sin-arroba\n"))
	assert.Error(t, err)
}

func TestLoadCatalogueFromFile(t *testing.T) {
	svc, repo, _ := newGroupFixture(t)
	ctx := context.Background()

	loaded, err := svc.LoadCatalogue(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Zero(t, loaded)

	path := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(path, []byte("groups:\n  - alias: rrhh@example.com\n    display_name: RRHH\n"), 0o600))
	loaded, err = svc.LoadCatalogue(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Contains(t, repo.groups, "rrhh@example.com")
}
