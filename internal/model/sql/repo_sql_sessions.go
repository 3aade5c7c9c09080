package sql

import (
	"civicportal/internal/entity"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateSession inserts a session row. Rows are never updated in place.
func (r *GormRepository) CreateSession(ctx context.Context, session *entity.DbSession) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if session == nil {
		return fmt.Errorf("session is nil")
	}
	if session.UserID == 0 || strings.TrimSpace(session.TokenHash) == "" {
		return fmt.Errorf("invalid session")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(session).Error
}

// GetSessionByTokenHash looks a session up through the unique token index.
// Expired rows are returned as-is; callers decide validity.
func (r *GormRepository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*entity.DbSession, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if tokenHash == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var session entity.DbSession
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSessionByTokenHash revokes one session. Deleting an unknown session is not an error.
func (r *GormRepository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if tokenHash == "" {
		return nil
	}
	return r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&entity.DbSession{}).Error
}

// DeleteUserSessions revokes every session of a user except the one identified by exceptTokenHash.
func (r *GormRepository) DeleteUserSessions(ctx context.Context, userID uint, exceptTokenHash string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if exceptTokenHash != "" {
		query = query.Where("token_hash <> ?", exceptTokenHash)
	}
	result := query.Delete(&entity.DbSession{})
	return result.RowsAffected, result.Error
}

// DeleteExpiredSessions removes sessions whose expiry is at or before the cutoff.
func (r *GormRepository) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	result := r.db.WithContext(ctx).Where("expires_at <= ?", before.UTC()).Delete(&entity.DbSession{})
	return result.RowsAffected, result.Error
}
