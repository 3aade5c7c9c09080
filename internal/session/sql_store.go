package session

import (
	"civicportal/internal/auth"
	"civicportal/internal/entity"
	"civicportal/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SQLStore keeps sessions in the relational database behind model.Repository.
type SQLStore struct {
	repo model.Repository
}

func NewSQLStore(repo model.Repository) *SQLStore {
	return &SQLStore{repo: repo}
}

func (s *SQLStore) Create(ctx context.Context, token string, sess Session) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("session store not initialised")
	}
	if token == "" {
		return errors.New("session token cannot be empty")
	}
	row := entity.DbSession{
		ID:        sess.ID,
		UserID:    sess.UserID,
		TokenHash: auth.HashToken(token),
		ExpiresAt: sess.ExpiresAt.UTC(),
		CreatedAt: sess.CreatedAt.UTC(),
		ClientIP:  sess.ClientIP,
		UserAgent: truncate(sess.UserAgent, 255),
	}
	if err := s.repo.CreateSession(ctx, &row); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, token string) (*Session, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("session store not initialised")
	}
	if token == "" {
		return nil, ErrNotFound
	}
	row, err := s.repo.GetSessionByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &Session{
		ID:        row.ID,
		UserID:    row.UserID,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
		ClientIP:  row.ClientIP,
		UserAgent: row.UserAgent,
	}, nil
}

func (s *SQLStore) Delete(ctx context.Context, token string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("session store not initialised")
	}
	if token == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, auth.HashToken(token))
}

func (s *SQLStore) DeleteByUser(ctx context.Context, userID uint, keepToken string) (int64, error) {
	if s == nil || s.repo == nil {
		return 0, fmt.Errorf("session store not initialised")
	}
	keep := ""
	if keepToken != "" {
		keep = auth.HashToken(keepToken)
	}
	return s.repo.DeleteUserSessions(ctx, userID, keep)
}

func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.repo == nil {
		return 0, fmt.Errorf("session store not initialised")
	}
	return s.repo.DeleteExpiredSessions(ctx, now)
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
