package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/dto"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/repository"
	appErrors "github.com/DiegoCE21/ApprovalFlow-sub000/pkg/errors"
)

const groupMemberResource = "group_member"

type groupStore interface {
	UpsertGroup(ctx context.Context, group models.Group) error
	ListGroups(ctx context.Context) ([]repository.GroupWithCount, error)
	FindGroup(ctx context.Context, alias string) (*models.Group, error)
	ListMembers(ctx context.Context, alias string, activeOnly bool) ([]models.GroupMember, error)
	FindMember(ctx context.Context, id string) (*models.GroupMember, error)
	FindActiveByEmail(ctx context.Context, alias, email string) (*models.GroupMember, error)
	CreateMember(ctx context.Context, member *models.GroupMember) error
	UpdateMember(ctx context.Context, member *models.GroupMember) error
}

// GroupService administers mail aliases and their members.
type GroupService struct {
	repo      groupStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs the service.
func NewGroupService(repo groupStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// ListGroups returns every alias with its active member count.
func (s *GroupService) ListGroups(ctx context.Context) ([]dto.GroupResponse, error) {
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list groups")
	}
	out := make([]dto.GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, dto.GroupResponse{Group: g.Group, ActiveMembers: g.ActiveMembers})
	}
	return out, nil
}

// ListMembers returns the members of alias, optionally including inactive ones.
func (s *GroupService) ListMembers(ctx context.Context, alias string, includeInactive bool) ([]dto.GroupMemberResponse, error) {
	group, err := s.findGroup(ctx, alias)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, group.Alias, !includeInactive)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list group members")
	}
	out := make([]dto.GroupMemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, dto.NewGroupMemberResponse(m))
	}
	return out, nil
}

// AddMember registers a new active member under alias.
func (s *GroupService) AddMember(ctx context.Context, caller *models.Caller, alias string, req dto.GroupMemberRequest) (*dto.GroupMemberResponse, error) {
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Email = models.NormalizeEmail(req.Email)
	req.PersonnelID = strings.TrimSpace(req.PersonnelID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if req.Email == "" && req.PersonnelID == "" && req.UserID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email, personnelId or userId is required")
	}
	group, err := s.findGroup(ctx, alias)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, group.Alias, req.Email, ""); err != nil {
		return nil, err
	}

	member := &models.GroupMember{
		Alias:       group.Alias,
		DisplayName: req.DisplayName,
		Email:       optionalString(req.Email),
		PersonnelID: optionalString(req.PersonnelID),
		UserID:      req.UserID,
		Active:      true,
	}
	if err := s.repo.CreateMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Conflict("an active member with this email already exists", "active")
		}
		return nil, appErrors.Internal(err, "failed to create group member")
	}
	s.emitAudit(ctx, caller, models.AuditActionMemberCreate, member)
	resp := dto.NewGroupMemberResponse(*member)
	return &resp, nil
}

// UpdateMember edits a member of alias.
func (s *GroupService) UpdateMember(ctx context.Context, caller *models.Caller, alias, memberID string, req dto.UpdateGroupMemberRequest) (*dto.GroupMemberResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	member, err := s.findMember(ctx, alias, memberID)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "displayName cannot be empty")
		}
		member.DisplayName = name
	}
	if req.Email != nil {
		member.Email = optionalString(models.NormalizeEmail(*req.Email))
	}
	if req.PersonnelID != nil {
		member.PersonnelID = optionalString(*req.PersonnelID)
	}
	if req.UserID != nil {
		if *req.UserID == 0 {
			member.UserID = nil
		} else {
			id := *req.UserID
			member.UserID = &id
		}
	}
	if req.Active != nil {
		member.Active = *req.Active
	}
	if member.Active && member.Email != nil {
		if err := s.ensureEmailFree(ctx, member.Alias, *member.Email, member.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateMember(ctx, member); err != nil {
		return nil, s.mapMemberWriteError(err)
	}
	action := models.AuditActionMemberUpdate
	if req.Active != nil && !*req.Active {
		action = models.AuditActionMemberDeactivate
	}
	s.emitAudit(ctx, caller, action, member)
	resp := dto.NewGroupMemberResponse(*member)
	return &resp, nil
}

// DeactivateMember marks a member inactive so it no longer matches callers.
func (s *GroupService) DeactivateMember(ctx context.Context, caller *models.Caller, alias, memberID string) error {
	member, err := s.findMember(ctx, alias, memberID)
	if err != nil {
		return err
	}
	if !member.Active {
		return nil
	}
	member.Active = false
	if err := s.repo.UpdateMember(ctx, member); err != nil {
		return s.mapMemberWriteError(err)
	}
	s.emitAudit(ctx, caller, models.AuditActionMemberDeactivate, member)
	return nil
}

type catalogue struct {
	Groups []catalogueGroup `yaml:"groups"`
}

type catalogueGroup struct {
	models.Group `yaml:",inline"`
	Members      []catalogueMember `yaml:"members"`
}

type catalogueMember struct {
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
	PersonnelID string `yaml:"personnel_id"`
	UserID      *int64 `yaml:"user_id"`
}

// LoadCatalogue seeds aliases from a YAML file. Listed members are added when no active member
// shares their email, personnel id or user id. A missing file is not an error.
func (s *GroupService) LoadCatalogue(ctx context.Context, path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("group catalogue not found, skipping", zap.String("path", path))
			return 0, nil
		}
		return 0, fmt.Errorf("read group catalogue: %w", err)
	}
	return s.ApplyCatalogue(ctx, raw)
}

// ApplyCatalogue upserts the aliases described by raw YAML.
func (s *GroupService) ApplyCatalogue(ctx context.Context, raw []byte) (int, error) {
	var cat catalogue
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return 0, fmt.Errorf("parse group catalogue: %w", err)
	}
	loaded := 0
	for _, entry := range cat.Groups {
		alias := models.NormalizeEmail(entry.Alias)
		if alias == "" || !strings.Contains(alias, "@") {
			return loaded, fmt.Errorf("group catalogue entry %d: alias must be a mail address", loaded+1)
		}
		name := strings.TrimSpace(entry.DisplayName)
		if name == "" {
			name = alias
		}
		if err := s.repo.UpsertGroup(ctx, models.Group{Alias: alias, DisplayName: name}); err != nil {
			return loaded, err
		}
		for _, m := range entry.Members {
			if err := s.seedMember(ctx, alias, m); err != nil {
				return loaded, err
			}
		}
		loaded++
	}
	s.logger.Info("group catalogue loaded", zap.Int("groups", loaded))
	return loaded, nil
}

// seedMember adds m unless an active member of alias already carries one of its identities.
func (s *GroupService) seedMember(ctx context.Context, alias string, m catalogueMember) error {
	email := models.NormalizeEmail(m.Email)
	identity := &models.Caller{Email: email, PersonnelID: strings.TrimSpace(m.PersonnelID)}
	if m.UserID != nil {
		identity.UserID = *m.UserID
	}
	existing, err := s.repo.ListMembers(ctx, alias, true)
	if err != nil {
		return err
	}
	if matchMember(existing, identity) != nil {
		return nil
	}
	name := strings.TrimSpace(m.DisplayName)
	if name == "" {
		name = email
	}
	member := &models.GroupMember{
		Alias:       alias,
		DisplayName: name,
		Email:       optionalString(email),
		PersonnelID: optionalString(m.PersonnelID),
		UserID:      m.UserID,
		Active:      true,
	}
	if err := s.repo.CreateMember(ctx, member); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return err
	}
	return nil
}

func (s *GroupService) findGroup(ctx context.Context, alias string) (*models.Group, error) {
	group, err := s.repo.FindGroup(ctx, models.NormalizeEmail(alias))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Internal(err, "failed to load group")
	}
	return group, nil
}

func (s *GroupService) findMember(ctx context.Context, alias, memberID string) (*models.GroupMember, error) {
	member, err := s.repo.FindMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group member not found")
		}
		return nil, appErrors.Internal(err, "failed to load group member")
	}
	if member.Alias != models.NormalizeEmail(alias) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "group member not found")
	}
	return member, nil
}

// ensureEmailFree rejects a second active member with email under alias.
func (s *GroupService) ensureEmailFree(ctx context.Context, alias, email, exceptID string) error {
	if email == "" {
		return nil
	}
	existing, err := s.repo.FindActiveByEmail(ctx, alias, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Internal(err, "failed to check member email")
	}
	if existing.ID == exceptID {
		return nil
	}
	return appErrors.Conflict("an active member with this email already exists", "active")
}

func (s *GroupService) mapMemberWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Conflict("an active member with this email already exists", "active")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "group member not found")
	default:
		return appErrors.Internal(err, "failed to update group member")
	}
}

func (s *GroupService) emitAudit(ctx context.Context, caller *models.Caller, action string, member *models.GroupMember) {
	if s.audit == nil {
		return
	}
	entry := auditEntry(action, groupMemberResource, member.ID, member.UpdatedAt, map[string]interface{}{
		"alias":  member.Alias,
		"active": member.Active,
	})
	if caller != nil {
		if caller.UserID > 0 {
			id := caller.UserID
			entry.ActorID = &id
		}
		if caller.IP != "" {
			entry.IPAddress = caller.IP
		}
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err), zap.String("action", action))
	}
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
