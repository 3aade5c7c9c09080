package session

import (
	"civicportal/internal/config"
	"civicportal/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Open 根据 SESSION_STORE 创建会话存储；返回的 close 释放外部连接
func Open(ctx context.Context, cfg config.Config, repo model.Repository) (Store, func() error, error) {
	switch cfg.SessionStore {
	case config.SessionStoreSQL, "":
		if repo == nil {
			return nil, nil, fmt.Errorf("sql session store requires a repository")
		}
		return NewSQLStore(repo), func() error { return nil }, nil
	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logrus.WithField("addr", opts.Addr).Info("using redis session store")
		return NewRedisStore(client, cfg.RedisKeyPrefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session store: %s", cfg.SessionStore)
	}
}
