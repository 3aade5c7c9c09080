package entity

import "time"

// UserUpdates 用户更新字段
type UserUpdates struct {
	DisplayName  *string
	Role         *string
	PasswordHash *string
	IsActive     *bool
	AvatarKey    *string
	LastLoginAt  *time.Time
	InviteNonce  *string
	// ClearInviteNonce 置空 invite_nonce，优先于 InviteNonce
	ClearInviteNonce bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.Role != nil {
		updates["role"] = *u.Role
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	if u.AvatarKey != nil {
		updates["avatar_key"] = *u.AvatarKey
	}
	if u.LastLoginAt != nil {
		updates["last_login_at"] = *u.LastLoginAt
	}
	if u.ClearInviteNonce {
		updates["invite_nonce"] = nil
	} else if u.InviteNonce != nil {
		updates["invite_nonce"] = *u.InviteNonce
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// CommunicationUpdates 消息更新字段
type CommunicationUpdates struct {
	Status *string
	ReadAt *time.Time
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u CommunicationUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.ReadAt != nil {
		updates["read_at"] = *u.ReadAt
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u CommunicationUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
