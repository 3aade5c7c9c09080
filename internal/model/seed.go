package model

import (
	"civicportal/internal/auth"
	"civicportal/internal/config"
	"civicportal/internal/entity"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SeedAdmin ensures the bootstrap administrator from ADMIN_EMAIL exists.
// An existing account is promoted to admin; its password is only set when it has none.
func SeedAdmin(ctx context.Context, repo Repository, cfg config.Config) error {
	if repo == nil {
		return nil
	}
	email := entity.NormalizeEmail(cfg.AdminEmail)
	if email == "" {
		return warnIfEmpty(ctx, repo)
	}

	existing, err := repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return syncExistingAdmin(ctx, repo, existing, cfg)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return createSeedAdmin(ctx, repo, email, cfg)
	default:
		return err
	}
}

func createSeedAdmin(ctx context.Context, repo Repository, email string, cfg config.Config) error {
	user := entity.DbUser{
		Email:        email,
		DisplayName:  strings.TrimSpace(cfg.AdminName),
		Role:         entity.UserRoleAdmin,
		IsActive:     true,
		AuthProvider: entity.AuthProviderPassword,
	}
	if password := cfg.AdminPassword; password != "" {
		hashed, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		user.PasswordHash = &hashed
	}
	if err := repo.CreateUser(ctx, &user); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":      user.ID,
		"email":        email,
		"has_password": user.HasPassword(),
	}).Info("seeded admin user")
	return nil
}

func syncExistingAdmin(ctx context.Context, repo Repository, existing *entity.DbUser, cfg config.Config) error {
	if existing == nil {
		return nil
	}

	var updates entity.UserUpdates
	if existing.Role != entity.UserRoleAdmin {
		role := entity.UserRoleAdmin
		updates.Role = &role
	}
	if !existing.IsActive {
		active := true
		updates.IsActive = &active
	}
	if !existing.HasPassword() && cfg.AdminPassword != "" {
		hashed, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		updates.PasswordHash = &hashed
	}
	if updates.IsEmpty() {
		return nil
	}
	if err := repo.UpdateUser(ctx, existing.ID, updates); err != nil {
		return err
	}
	logrus.WithField("user_id", existing.ID).Info("updated seeded admin user")
	return nil
}

// warnIfEmpty 空库且未配置 ADMIN_EMAIL 时没有人能登录
func warnIfEmpty(ctx context.Context, repo Repository) error {
	count, err := repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		logrus.Warn("no accounts exist; set ADMIN_EMAIL or run portalctl create-admin")
	}
	return nil
}
