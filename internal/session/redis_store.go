package session

import (
	"civicportal/internal/auth"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis. Expiry is enforced by key TTLs; a per-user
// set indexes session hashes for DeleteByUser.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis session store. An empty prefix defaults to "session:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) sessionKey(hash string) string {
	return s.prefix + hash
}

func (s *RedisStore) userKey(userID uint) string {
	return s.prefix + "user:" + strconv.FormatUint(uint64(userID), 10)
}

func (s *RedisStore) Create(ctx context.Context, token string, sess Session) error {
	if token == "" {
		return errors.New("session token cannot be empty")
	}
	if sess.UserID == 0 {
		return errors.New("session user cannot be empty")
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	hash := auth.HashToken(token)
	created, err := s.client.SetNX(ctx, s.sessionKey(hash), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if !created {
		return errors.New("session already exists")
	}
	if err := s.client.SAdd(ctx, s.userKey(sess.UserID), hash).Err(); err != nil {
		return fmt.Errorf("redis index session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.load(ctx, auth.HashToken(token))
}

func (s *RedisStore) load(ctx context.Context, hash string) (*Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	hash := auth.HashToken(token)
	sess, err := s.load(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(hash))
		pipe.SRem(ctx, s.userKey(sess.UserID), hash)
		return nil
	})
	return err
}

func (s *RedisStore) DeleteByUser(ctx context.Context, userID uint, keepToken string) (int64, error) {
	if userID == 0 {
		return 0, errors.New("invalid user id")
	}
	keep := ""
	if keepToken != "" {
		keep = auth.HashToken(keepToken)
	}

	userKey := s.userKey(userID)
	hashes, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis smembers: %w", err)
	}

	var dels []*redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, hash := range hashes {
			if hash == keep {
				continue
			}
			dels = append(dels, pipe.Del(ctx, s.sessionKey(hash)))
			pipe.SRem(ctx, userKey, hash)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis revoke sessions: %w", err)
	}

	var removed int64
	for _, cmd := range dels {
		removed += cmd.Val()
	}
	return removed, nil
}

// DeleteExpired prunes index entries whose session keys Redis has already expired.
func (s *RedisStore) DeleteExpired(ctx context.Context, _ time.Time) (int64, error) {
	var pruned int64
	iter := s.client.Scan(ctx, 0, s.prefix+"user:*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()
		hashes, err := s.client.SMembers(ctx, userKey).Result()
		if err != nil {
			return pruned, fmt.Errorf("redis smembers: %w", err)
		}
		for _, hash := range hashes {
			exists, err := s.client.Exists(ctx, s.sessionKey(hash)).Result()
			if err != nil {
				return pruned, fmt.Errorf("redis exists: %w", err)
			}
			if exists > 0 {
				continue
			}
			if err := s.client.SRem(ctx, userKey, hash).Err(); err != nil {
				return pruned, fmt.Errorf("redis srem: %w", err)
			}
			pruned++
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("redis scan: %w", err)
	}
	return pruned, nil
}
