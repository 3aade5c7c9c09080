package entity

import "time"

// DbSession is an issued login. Only the SHA-256 hash of the token is stored.
type DbSession struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    uint      `gorm:"column:user_id;index;not null" json:"user_id"`
	TokenHash string    `gorm:"column:token_hash;type:varchar(64);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"column:expires_at;index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	ClientIP  string    `gorm:"column:client_ip;type:varchar(64)" json:"client_ip,omitempty"`
	UserAgent string    `gorm:"column:user_agent;type:varchar(255)" json:"user_agent,omitempty"`
}

func (DbSession) TableName() string {
	return "session"
}

type SessionSweepResponse struct {
	Removed int64 `json:"removed"`
}
