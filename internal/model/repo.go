package model

import (
	"civicportal/internal/entity"
	"context"
	"time"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 用户管理
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	GetUserByProviderSubject(ctx context.Context, provider, subject string) (*entity.DbUser, error)
	LinkUserProvider(ctx context.Context, id uint, provider, subject string) error
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	CountUsers(ctx context.Context) (int64, error)

	// 议员档案与选民名录
	GetProfile(ctx context.Context, userID uint) (*entity.DbProfile, error)
	UpsertProfile(ctx context.Context, profile *entity.DbProfile) error
	GetConstituent(ctx context.Context, userID uint) (*entity.DbConstituent, error)
	UpsertConstituent(ctx context.Context, record *entity.DbConstituent) error
	ListConstituents(ctx context.Context, params *entity.ConstituentQuery) ([]entity.ConstituentEntry, *entity.Meta, error)

	// 会话
	CreateSession(ctx context.Context, session *entity.DbSession) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*entity.DbSession, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, userID uint, exceptTokenHash string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)

	// 消息
	CreateCommunication(ctx context.Context, comm *entity.DbCommunication) error
	GetCommunication(ctx context.Context, id uint) (*entity.DbCommunication, error)
	UpdateCommunication(ctx context.Context, id uint, updates entity.CommunicationUpdates) error
	ListCommunications(ctx context.Context, params *entity.CommunicationQuery) ([]entity.DbCommunication, *entity.Meta, error)

	Ping(ctx context.Context) error
	Close() error
}
