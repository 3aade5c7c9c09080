package service

import (
	"civicportal/internal/auth"
	"civicportal/internal/entity"
	"civicportal/internal/model"
	"civicportal/internal/session"
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const DefaultSessionTTL = 30 * 24 * time.Hour

// AuthService verifies credentials, issues sessions and resolves them back to users.
type AuthService struct {
	repo       model.Repository
	sessions   session.Store
	invites    *auth.Manager
	sessionTTL time.Duration
	now        func() time.Time

	// onRevoke 会话被服务端撤销后调用（用于断开 SSE）
	onRevoke RevokeFunc

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService 创建认证服务实例
func NewAuthService(repo model.Repository, sessions session.Store, invites *auth.Manager, sessionTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AuthService{
		repo:       repo,
		sessions:   sessions,
		invites:    invites,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// SetRevokeFunc registers a callback run after sessions are revoked.
func (s *AuthService) SetRevokeFunc(fn RevokeFunc) {
	s.onRevoke = fn
}

func (s *AuthService) revoked(rev Revocation) {
	if s.onRevoke != nil {
		s.onRevoke(rev)
	}
}

// SessionTTL is the lifetime applied to every issued session.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// ClientInfo describes the client a session is issued to.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginResult is returned by every successful sign-in path.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *entity.DbUser
}

// Identity is a resolved session and its owner.
type Identity struct {
	User    *entity.DbUser
	Session *session.Session
}

// Login authenticates an email/password pair and issues a new session.
// Every credential failure yields the same authentication error and writes nothing.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (*LoginResult, error) {
	normalized := entity.NormalizeEmail(email)
	if normalized == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	user, err := s.repo.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.burnPasswordCheck(password)
			logrus.WithField("reason", "unknown_user").Debug("login rejected")
			return nil, newError(KindAuthentication, MsgInvalidCredentials, nil)
		}
		return nil, backendError(err)
	}

	if reason := s.checkPassword(user, password); reason != "" {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "reason": reason}).Debug("login rejected")
		return nil, newError(KindAuthentication, MsgInvalidCredentials, nil)
	}

	result, err := s.issueSession(ctx, user, client)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"role":      user.Role,
		"client_ip": client.IP,
	}).Info("user logged in")
	return result, nil
}

func (s *AuthService) checkPassword(user *entity.DbUser, password string) string {
	if !user.HasPassword() {
		s.burnPasswordCheck(password)
		return "no_password"
	}
	if err := auth.VerifyPassword(*user.PasswordHash, password); err != nil {
		return "password_mismatch"
	}
	if !user.IsActive {
		return "inactive"
	}
	return ""
}

// burnPasswordCheck spends one bcrypt comparison so unknown accounts take as long as known ones.
func (s *AuthService) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = auth.HashPassword(uuid.NewString())
	})
	if s.dummyHash != "" {
		_ = auth.VerifyPassword(s.dummyHash, password)
	}
}

func (s *AuthService) issueSession(ctx context.Context, user *entity.DbUser, client ClientInfo) (*LoginResult, error) {
	now := s.now()
	token, err := auth.NewSessionToken(now)
	if err != nil {
		return nil, backendError(err)
	}
	expiresAt := now.Add(s.sessionTTL)

	if err := s.sessions.Create(ctx, token, session.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		ClientIP:  client.IP,
		UserAgent: client.UserAgent,
	}); err != nil {
		return nil, backendError(err)
	}

	loginAt := now.UTC()
	if err := s.repo.UpdateUser(ctx, user.ID, entity.UserUpdates{LastLoginAt: &loginAt}); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to record last login")
	} else {
		user.LastLoginAt = &loginAt
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ValidateSession resolves token to its owner. A missing, unknown, expired or
// orphaned session resolves to (nil, nil); only backend faults return an error.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, backendError(err)
	}
	if !sess.Valid(s.now()) {
		return nil, nil
	}

	user, err := s.repo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, backendError(err)
	}
	if !user.IsActive {
		return nil, nil
	}
	return &Identity{User: user, Session: sess}, nil
}

// Logout revokes the session server-side. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return backendError(err)
	}
	s.revoked(Revocation{SessionHash: auth.HashToken(token)})

	entry := logrus.NewEntry(logrus.StandardLogger())
	if issued, err := auth.TokenIssuedAt(token); err == nil {
		entry = entry.WithField("session_age", s.now().Sub(issued).Round(time.Second).String())
	}
	entry.Debug("session revoked by logout")
	return nil
}

// Register creates a constituent account from a public sign-up.
func (s *AuthService) Register(ctx context.Context, req entity.AuthRegisterRequest) (*entity.DbUser, error) {
	email := entity.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationError("a valid email is required")
	}
	if err := auth.ValidateNewPassword(req.Password); err != nil {
		return nil, validationError(err.Error())
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, newError(KindConflict, "user already exists", nil)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backendError(err)
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, backendError(err)
	}

	user := &entity.DbUser{
		Email:        email,
		PasswordHash: &hashed,
		DisplayName:  displayNameFor(req.FirstName, req.LastName, email),
		Role:         entity.UserRoleConstituent,
		IsActive:     true,
		AuthProvider: entity.AuthProviderPassword,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(KindConflict, "user already exists", nil)
		}
		return nil, backendError(err)
	}
	if district := entity.NormalizeDistrict(req.District); district != "" {
		if err := s.repo.UpsertConstituent(ctx, &entity.DbConstituent{UserID: user.ID, District: district}); err != nil {
			// 账户已创建，选区可稍后在个人资料中补填
			logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to record constituent district")
		}
	}
	logrus.WithField("user_id", user.ID).Info("constituent registered")
	return user, nil
}

func displayNameFor(first, last, email string) string {
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if name != "" {
		return name
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

// ChangePassword replaces the password after checking the current one, then
// revokes every other session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, currentToken, current, next string) error {
	if current == "" {
		return validationError("current password is required")
	}
	if err := auth.ValidateNewPassword(next); err != nil {
		return validationError(err.Error())
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(KindNotFound, "user not found", nil)
		}
		return backendError(err)
	}
	if !user.HasPassword() || auth.VerifyPassword(*user.PasswordHash, current) != nil {
		return newError(KindAuthentication, "current password is incorrect", nil)
	}

	if err := s.storePassword(ctx, user.ID, next); err != nil {
		return err
	}
	revoked, err := s.sessions.DeleteByUser(ctx, user.ID, currentToken)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to revoke sessions after password change")
	}
	rev := Revocation{UserID: user.ID}
	if currentToken != "" {
		rev.KeepSessionHash = auth.HashToken(currentToken)
	}
	s.revoked(rev)
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "revoked": revoked}).Info("password changed")
	return nil
}

// SetPasswordWithInvite consumes a set-password invite and returns the account.
func (s *AuthService) SetPasswordWithInvite(ctx context.Context, inviteToken, password string) (*entity.DbUser, error) {
	if s.invites == nil {
		return nil, newError(KindBackend, "invitations are not configured", nil)
	}
	if err := auth.ValidateNewPassword(password); err != nil {
		return nil, validationError(err.Error())
	}
	claims, err := s.invites.ParseInvite(strings.TrimSpace(inviteToken))
	if err != nil {
		return nil, newError(KindAuthentication, "invitation is invalid or expired", err)
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindAuthentication, "invitation is invalid or expired", nil)
		}
		return nil, backendError(err)
	}
	if reason := inviteMismatch(user, claims); reason != "" {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "reason": reason}).Warn("invite rejected")
		return nil, newError(KindAuthentication, "invitation is invalid or expired", nil)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, backendError(err)
	}
	// 密码与清空 nonce 同一次更新，邀请只能使用一次
	if err := s.repo.UpdateUser(ctx, user.ID, entity.UserUpdates{PasswordHash: &hashed, ClearInviteNonce: true}); err != nil {
		return nil, backendError(err)
	}
	user.PasswordHash = &hashed
	user.InviteNonce = nil
	logrus.WithField("user_id", user.ID).Info("invited user set password")
	return user, nil
}

func inviteMismatch(user *entity.DbUser, claims *auth.InviteClaims) string {
	switch {
	case user.Email != entity.NormalizeEmail(claims.Email):
		return "email_mismatch"
	case user.AuthProvider != entity.AuthProviderPassword:
		return "external_account"
	case user.HasPassword():
		return "password_already_set"
	case user.InviteNonce == nil || subtle.ConstantTimeCompare([]byte(*user.InviteNonce), []byte(claims.ID)) != 1:
		return "nonce_mismatch"
	}
	return ""
}

// SetPasswordByEmail overwrites a password without the current one. Operator use only.
func (s *AuthService) SetPasswordByEmail(ctx context.Context, email, password string) (*entity.DbUser, error) {
	if err := auth.ValidateNewPassword(password); err != nil {
		return nil, validationError(err.Error())
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "user not found", nil)
		}
		return nil, backendError(err)
	}
	if err := s.storePassword(ctx, user.ID, password); err != nil {
		return nil, err
	}
	if _, err := s.sessions.DeleteByUser(ctx, user.ID, ""); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to revoke sessions after password reset")
	}
	s.revoked(Revocation{UserID: user.ID})
	return user, nil
}

func (s *AuthService) storePassword(ctx context.Context, userID uint, password string) error {
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return backendError(err)
	}
	if err := s.repo.UpdateUser(ctx, userID, entity.UserUpdates{PasswordHash: &hashed}); err != nil {
		return backendError(err)
	}
	return nil
}

// ExternalIdentity is a user asserted by a single sign-on provider.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// LoginWithIdentity signs in an SSO user. Accounts are matched by provider
// subject, then by email; unknown identities become constituents.
func (s *AuthService) LoginWithIdentity(ctx context.Context, ident ExternalIdentity, client ClientInfo) (*LoginResult, error) {
	if strings.TrimSpace(ident.Subject) == "" {
		return nil, newError(KindAuthentication, "identity provider returned no subject", nil)
	}
	if ident.Provider == "" {
		ident.Provider = entity.AuthProviderOIDC
	}

	user, err := s.repo.GetUserByProviderSubject(ctx, ident.Provider, ident.Subject)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = s.linkOrCreateExternal(ctx, ident)
		if err != nil {
			return nil, err
		}
	default:
		return nil, backendError(err)
	}

	if !user.IsActive {
		return nil, newError(KindAuthentication, "account is disabled", nil)
	}
	return s.issueSession(ctx, user, client)
}

func (s *AuthService) linkOrCreateExternal(ctx context.Context, ident ExternalIdentity) (*entity.DbUser, error) {
	email := entity.NormalizeEmail(ident.Email)
	if email == "" {
		return nil, newError(KindAuthentication, "identity provider returned no email", nil)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		if err := s.repo.LinkUserProvider(ctx, user.ID, ident.Provider, ident.Subject); err != nil {
			return nil, backendError(err)
		}
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backendError(err)
	}

	subject := ident.Subject
	user = &entity.DbUser{
		Email:           email,
		DisplayName:     displayNameFor(ident.Name, "", email),
		Role:            entity.UserRoleConstituent,
		IsActive:        true,
		AuthProvider:    ident.Provider,
		ProviderSubject: &subject,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, backendError(err)
	}
	logrus.WithField("user_id", user.ID).Info("constituent registered via sso")
	return user, nil
}

// SweepExpiredSessions removes expired sessions now.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	removed, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, backendError(err)
	}
	return removed, nil
}
