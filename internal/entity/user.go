package entity

import (
	"strings"
	"time"
)

const (
	AuthProviderPassword = "password"
	AuthProviderOIDC     = "oidc"
)

// DbUser represents a persisted user account.
type DbUser struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Email           string     `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash    *string    `gorm:"column:password_hash;type:varchar(255)" json:"-"`
	DisplayName     string     `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Role            string     `gorm:"column:role;type:varchar(50);index;not null" json:"role"`
	IsActive        bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	AvatarKey       string     `gorm:"column:avatar_key;type:varchar(512)" json:"avatar_key,omitempty"`
	AuthProvider    string     `gorm:"column:auth_provider;type:varchar(32);not null;default:password" json:"auth_provider"`
	ProviderSubject *string    `gorm:"column:provider_subject;type:varchar(255);uniqueIndex" json:"-"`
	LastLoginAt     *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	// 待使用的邀请随机串，设置密码后清空
	InviteNonce *string `gorm:"column:invite_nonce;type:varchar(64)" json:"-"`
	// 办公室人员所属的众议员
	RepresentativeID *uint `gorm:"column:representative_id;index" json:"representative_id,omitempty"`
}

// TableName overrides default pluralised name.
func (DbUser) TableName() string {
	return "users"
}

// HasPassword reports whether the account can authenticate with a password.
func (u *DbUser) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && strings.TrimSpace(*u.PasswordHash) != ""
}

// OfficeID is the representative whose office the user works for; 0 when none.
func (u *DbUser) OfficeID() uint {
	if u == nil {
		return 0
	}
	if u.Role == UserRoleRepresentative {
		return u.ID
	}
	if u.RepresentativeID != nil && (IsRepresentativeOffice(u.Role) || IsCampaignStaff(u.Role)) {
		return *u.RepresentativeID
	}
	return 0
}

// NormalizeEmail lowercases and trims an email before any lookup or insert.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	OfficeID    uint       `json:"office_id,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// UserQuery supports listing users with pagination.
type UserQuery struct {
	BaseParams
	Role    string `json:"role" form:"role" query:"role"`
	Keyword string `json:"keyword" form:"keyword" query:"keyword"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthRegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	District  string `json:"district"`
}

type AuthResponse struct {
	Success   bool        `json:"success"`
	UserID    uint        `json:"userId"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

type SessionResponse struct {
	User      *UserSummary `json:"user"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type SetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type UserInviteRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role" binding:"required"`
	// 仅平台管理员需要指定；办公室邀请人默认为自己的办公室
	RepresentativeID uint `json:"representative_id"`
}

type UserInviteResponse struct {
	User        UserSummary `json:"user"`
	InviteToken string      `json:"invite_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

type UserUpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Role        *string `json:"role,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Meta  *Meta         `json:"meta"`
}
