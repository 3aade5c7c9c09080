package service

import (
	"civicportal/internal/auth"
	"civicportal/internal/authz"
	"civicportal/internal/entity"
	"civicportal/internal/model"
	"civicportal/internal/session"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserService covers account administration.
type UserService struct {
	repo     model.Repository
	sessions session.Store
	invites  *auth.Manager

	// onRevoke 账户被停用后调用（用于断开 SSE）
	onRevoke RevokeFunc
}

func NewUserService(repo model.Repository, sessions session.Store, invites *auth.Manager) *UserService {
	return &UserService{repo: repo, sessions: sessions, invites: invites}
}

// SetRevokeFunc registers a callback run after an account is deactivated.
func (s *UserService) SetRevokeFunc(fn RevokeFunc) {
	s.onRevoke = fn
}

// Invitation is a freshly created account plus its set-password token.
type Invitation struct {
	User      *entity.DbUser
	Token     string
	ExpiresAt time.Time
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*entity.DbUser, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "user not found", nil)
		}
		return nil, backendError(err)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor *entity.DbUser, query *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error) {
	if actor == nil || !authz.HasCapability(actor.Role, authz.UsersManage) {
		return nil, nil, newError(KindAuthorization, "insufficient permissions", nil)
	}
	users, meta, err := s.repo.ListUsers(ctx, query)
	if err != nil {
		return nil, nil, backendError(err)
	}
	return users, meta, nil
}

// Invite creates a password-less account and a signed set-password token for it.
// Office staff invited by an office member join the inviter's office.
func (s *UserService) Invite(ctx context.Context, actor *entity.DbUser, req entity.UserInviteRequest) (*Invitation, error) {
	if actor == nil || !authz.HasCapability(actor.Role, authz.UsersInvite) {
		return nil, newError(KindAuthorization, "insufficient permissions", nil)
	}
	if s.invites == nil {
		return nil, newError(KindBackend, "invitations are not configured", nil)
	}
	email := entity.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationError("a valid email is required")
	}
	role := entity.NormalizeRole(req.Role)
	if role == "" {
		return nil, validationError("invalid role")
	}
	if !authz.CanAssignRole(actor.Role, role) {
		return nil, newError(KindAuthorization, "cannot assign this role", nil)
	}
	office, err := s.inviteOffice(ctx, actor, role, req.RepresentativeID)
	if err != nil {
		return nil, err
	}

	nonce, err := auth.NewInviteNonce()
	if err != nil {
		return nil, backendError(err)
	}
	user := &entity.DbUser{
		Email:            email,
		DisplayName:      displayNameFor(req.DisplayName, "", email),
		Role:             role,
		IsActive:         true,
		AuthProvider:     entity.AuthProviderPassword,
		InviteNonce:      &nonce,
		RepresentativeID: office,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(KindConflict, "user already exists", nil)
		}
		return nil, backendError(err)
	}

	token, expiresAt, err := s.invites.GenerateInvite(user)
	if err != nil {
		return nil, backendError(err)
	}
	fields := logrus.Fields{
		"user_id":    user.ID,
		"role":       role,
		"invited_by": actor.ID,
	}
	if office != nil {
		fields["office_id"] = *office
	}
	logrus.WithFields(fields).Info("user invited")
	return &Invitation{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// inviteOffice picks the office a new staff account belongs to. Office members
// can only staff their own office; platform inviters must name one.
func (s *UserService) inviteOffice(ctx context.Context, actor *entity.DbUser, role string, requested uint) (*uint, error) {
	staffRole := role != entity.UserRoleRepresentative &&
		(entity.IsRepresentativeOffice(role) || entity.IsCampaignStaff(role))
	if !staffRole {
		if requested != 0 {
			return nil, validationError("representative_id only applies to office staff")
		}
		return nil, nil
	}

	if own := actor.OfficeID(); own != 0 {
		if requested != 0 && requested != own {
			return nil, newError(KindAuthorization, "cannot staff another representative's office", nil)
		}
		return &own, nil
	}
	if entity.IsRepresentativeOffice(actor.Role) {
		return nil, newError(KindAuthorization, "inviter is not attached to an office", nil)
	}
	if requested == 0 {
		return nil, validationError("representative_id is required for office staff")
	}
	rep, err := s.repo.GetUserByID(ctx, requested)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validationError("representative not found")
		}
		return nil, backendError(err)
	}
	if rep.Role != entity.UserRoleRepresentative || !rep.IsActive {
		return nil, validationError("representative not found")
	}
	return &rep.ID, nil
}

// Update changes role, name or active state. Deactivation revokes every session.
// The actor must outrank the target's current role unless editing themselves.
func (s *UserService) Update(ctx context.Context, actor *entity.DbUser, id uint, req entity.UserUpdateRequest) (*entity.DbUser, error) {
	if actor == nil || !authz.HasCapability(actor.Role, authz.UsersManage) {
		return nil, newError(KindAuthorization, "insufficient permissions", nil)
	}
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanManageUser(actor.Role, actor.ID, target.Role, target.ID) {
		logrus.WithFields(logrus.Fields{
			"actor_id":  actor.ID,
			"target_id": target.ID,
		}).Warn("user update rejected")
		return nil, newError(KindAuthorization, "cannot manage this user", nil)
	}

	var updates entity.UserUpdates
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		updates.DisplayName = &name
	}
	if req.Role != nil {
		role := entity.NormalizeRole(*req.Role)
		if role == "" {
			return nil, validationError("invalid role")
		}
		if !authz.CanAssignRole(actor.Role, role) {
			return nil, newError(KindAuthorization, "cannot assign this role", nil)
		}
		if target.ID == actor.ID && role != actor.Role {
			return nil, validationError("cannot change your own role")
		}
		updates.Role = &role
	}
	if req.IsActive != nil {
		if target.ID == actor.ID && !*req.IsActive {
			return nil, validationError("cannot deactivate your own account")
		}
		updates.IsActive = req.IsActive
	}
	if updates.IsEmpty() {
		return target, nil
	}

	if err := s.repo.UpdateUser(ctx, target.ID, updates); err != nil {
		return nil, backendError(err)
	}
	if updates.IsActive != nil && !*updates.IsActive {
		if _, err := s.sessions.DeleteByUser(ctx, target.ID, ""); err != nil {
			logrus.WithError(err).WithField("user_id", target.ID).Warn("failed to revoke sessions of deactivated user")
		}
		if s.onRevoke != nil {
			s.onRevoke(Revocation{UserID: target.ID})
		}
	}
	return s.GetUser(ctx, target.ID)
}

// SetAvatar records the storage key of the user's profile picture.
func (s *UserService) SetAvatar(ctx context.Context, userID uint, key string) error {
	if err := s.repo.UpdateUser(ctx, userID, entity.UserUpdates{AvatarKey: &key}); err != nil {
		return backendError(err)
	}
	return nil
}

// CreateAdmin creates or promotes an administrator. Operator use only.
func (s *UserService) CreateAdmin(ctx context.Context, email, name, password string) (*entity.DbUser, error) {
	email = entity.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationError("a valid email is required")
	}
	var hashed *string
	if password != "" {
		if err := auth.ValidateNewPassword(password); err != nil {
			return nil, validationError(err.Error())
		}
		h, err := auth.HashPassword(password)
		if err != nil {
			return nil, backendError(err)
		}
		hashed = &h
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		role := entity.UserRoleAdmin
		active := true
		updates := entity.UserUpdates{Role: &role, IsActive: &active, PasswordHash: hashed}
		if err := s.repo.UpdateUser(ctx, existing.ID, updates); err != nil {
			return nil, backendError(err)
		}
		return s.GetUser(ctx, existing.ID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, backendError(err)
	}

	user := &entity.DbUser{
		Email:        email,
		PasswordHash: hashed,
		DisplayName:  displayNameFor(name, "", email),
		Role:         entity.UserRoleAdmin,
		IsActive:     true,
		AuthProvider: entity.AuthProviderPassword,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, backendError(err)
	}
	return user, nil
}
