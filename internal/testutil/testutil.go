// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"civicportal/internal/auth"
	"civicportal/internal/config"
	"civicportal/internal/entity"
	"civicportal/internal/model"
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRepository opens a private in-memory SQLite database with the full schema.
func NewRepository(t testing.TB) model.Repository {
	t.Helper()
	cfg := &config.Config{
		DBType: model.DBTypeSQLite,
		DBPath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}
	repo, err := model.InitRepository(cfg)
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// CreateUser inserts an active user; an empty password leaves the hash unset.
func CreateUser(t testing.TB, repo model.Repository, email, password, role string) *entity.DbUser {
	t.Helper()
	user := &entity.DbUser{
		Email:       email,
		DisplayName: email,
		Role:        role,
		IsActive:    true,
	}
	if password != "" {
		hashed, err := auth.HashPassword(password)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		user.PasswordHash = &hashed
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateOfficeUser inserts an active office member attached to representativeID.
func CreateOfficeUser(t testing.TB, repo model.Repository, email, role string, representativeID uint) *entity.DbUser {
	t.Helper()
	user := &entity.DbUser{
		Email:            email,
		DisplayName:      email,
		Role:             role,
		IsActive:         true,
		RepresentativeID: &representativeID,
	}
	hashed, err := auth.HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user.PasswordHash = &hashed
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create office user: %v", err)
	}
	return user
}

// SetupRedis connects to REDIS_TEST_ADDR and flushes the selected database.
// Tests are skipped when Redis is not available.
func SetupRedis(t testing.TB) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Redis not available for testing: REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available for testing at %s: %v", addr, err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis test db: %v", err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}
