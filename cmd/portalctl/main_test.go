package main

import (
	"bytes"
	"civicportal/internal/auth"
	"civicportal/internal/entity"
	"civicportal/internal/service"
	"civicportal/internal/session"
	"civicportal/internal/testutil"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, stdin string) (*commandContext, *bytes.Buffer) {
	t.Helper()
	repo := testutil.NewRepository(t)
	store := session.NewSQLStore(repo)
	invites, err := auth.NewManager("portalctl-test-secret", "civicportal", time.Hour)
	require.NoError(t, err)

	var out bytes.Buffer
	return &commandContext{
		Ctx:      context.Background(),
		Repo:     repo,
		Sessions: store,
		Auth:     service.NewAuthService(repo, store, invites, 0),
		Users:    service.NewUserService(repo, store, invites),
		Stdin:    strings.NewReader(stdin),
		Stdout:   &out,
	}, &out
}

func TestCreateAdmin(t *testing.T) {
	ctx, out := newTestContext(t, "admin-pass-1\n")

	require.NoError(t, runCreateAdmin(ctx, []string{"-email", "Ops@Example.com", "-name", "Ops"}))
	assert.Contains(t, out.String(), "admin ops@example.com ready")

	user, err := ctx.Repo.GetUserByEmail(ctx.Ctx, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, entity.UserRoleAdmin, user.Role)
	assert.True(t, user.HasPassword())

	_, err = ctx.Auth.Login(ctx.Ctx, "ops@example.com", "admin-pass-1", service.ClientInfo{})
	assert.NoError(t, err)
}

func TestCreateAdminRequiresEmail(t *testing.T) {
	ctx, _ := newTestContext(t, "")
	assert.Error(t, runCreateAdmin(ctx, nil))
	assert.Error(t, runCreateAdmin(ctx, []string{"-email", "ops@example.com"}))
}

func TestSetPasswordRevokesSessions(t *testing.T) {
	ctx, out := newTestContext(t, "brand-new-pass\n")
	user := testutil.CreateUser(t, ctx.Repo, "voter@example.com", "old-password", entity.UserRoleConstituent)
	result, err := ctx.Auth.Login(ctx.Ctx, "voter@example.com", "old-password", service.ClientInfo{})
	require.NoError(t, err)

	require.NoError(t, runSetPassword(ctx, []string{"-email", "voter@example.com"}))
	assert.Contains(t, out.String(), "password updated")

	ident, err := ctx.Auth.ValidateSession(ctx.Ctx, result.Token)
	require.NoError(t, err)
	assert.Nil(t, ident)

	again, err := ctx.Auth.Login(ctx.Ctx, "voter@example.com", "brand-new-pass", service.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.User.ID)
}

func TestSweepSessions(t *testing.T) {
	ctx, out := newTestContext(t, "")
	user := testutil.CreateUser(t, ctx.Repo, "voter@example.com", "old-password", entity.UserRoleConstituent)
	require.NoError(t, ctx.Sessions.Create(ctx.Ctx, "expired-token", session.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}))

	require.NoError(t, runSweepSessions(ctx, nil))
	assert.Equal(t, "removed 1 expired sessions\n", out.String())
}

func TestPrintUsageListsCommands(t *testing.T) {
	var out bytes.Buffer
	printUsage(&out)
	for name := range commands() {
		assert.Contains(t, out.String(), name)
	}
}
