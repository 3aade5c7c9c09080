package sql_test

import (
	"civicportal/internal/entity"
	"civicportal/internal/testutil"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserEmailIsNormalizedAndUnique(t *testing.T) {
	repo := testutil.NewRepository(t)
	ctx := context.Background()

	user := &entity.DbUser{Email: "  User@Example.com ", Role: entity.UserRoleConstituent, IsActive: true}
	require.NoError(t, repo.CreateUser(ctx, user))
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, entity.AuthProviderPassword, user.AuthProvider)

	found, err := repo.GetUserByEmail(ctx, "USER@example.COM")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.False(t, found.HasPassword())

	dup := &entity.DbUser{Email: "user@EXAMPLE.com", Role: entity.UserRoleConstituent, IsActive: true}
	err = repo.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestUpdateUser(t *testing.T) {
	repo := testutil.NewRepository(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, repo, "staff@example.com", "", entity.UserRoleStaffMember)

	now := time.Now().UTC().Truncate(time.Second)
	role := entity.UserRoleOfficeAdmin
	require.NoError(t, repo.UpdateUser(ctx, user.ID, entity.UserUpdates{Role: &role, LastLoginAt: &now}))

	loaded, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.UserRoleOfficeAdmin, loaded.Role)
	require.NotNil(t, loaded.LastLoginAt)
	assert.WithinDuration(t, now, *loaded.LastLoginAt, time.Second)

	assert.NoError(t, repo.UpdateUser(ctx, user.ID, entity.UserUpdates{}))
	assert.ErrorIs(t, repo.UpdateUser(ctx, 9999, entity.UserUpdates{Role: &role}), gorm.ErrRecordNotFound)
}

func TestListUsersFiltersAndPaginates(t *testing.T) {
	repo := testutil.NewRepository(t)
	ctx := context.Background()
	testutil.CreateUser(t, repo, "a@example.com", "", entity.UserRoleConstituent)
	testutil.CreateUser(t, repo, "b@example.com", "", entity.UserRoleConstituent)
	testutil.CreateUser(t, repo, "rep@example.com", "", entity.UserRoleRepresentative)

	users, meta, err := repo.ListUsers(ctx, &entity.UserQuery{Role: entity.UserRoleConstituent})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, int64(2), meta.Total)

	users, meta, err = repo.ListUsers(ctx, &entity.UserQuery{BaseParams: entity.BaseParams{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, int64(3), meta.Total)
	assert.Equal(t, int64(2), meta.Page)

	users, _, err = repo.ListUsers(ctx, &entity.UserQuery{Keyword: "REP"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "rep@example.com", users[0].Email)

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestProviderLink(t *testing.T) {
	repo := testutil.NewRepository(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, repo, "sso@example.com", "", entity.UserRoleConstituent)

	require.NoError(t, repo.LinkUserProvider(ctx, user.ID, entity.AuthProviderOIDC, "subject-1"))
	found, err := repo.GetUserByProviderSubject(ctx, entity.AuthProviderOIDC, "subject-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.GetUserByProviderSubject(ctx, entity.AuthProviderOIDC, "unknown")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	repo := testutil.NewRepository(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, repo, "s@example.com", "", entity.UserRoleConstituent)
	now := time.Now().UTC()

	live := &entity.DbSession{UserID: user.ID, TokenHash: "live", ExpiresAt: now.Add(time.Hour)}
	other := &entity.DbSession{UserID: user.ID, TokenHash: "other", ExpiresAt: now.Add(time.Hour)}
	expired := &entity.DbSession{UserID: user.ID, TokenHash: "expired", ExpiresAt: now.Add(-time.Second)}
	for _, s := range []*entity.DbSession{live, other, expired} {
		require.NoError(t, repo.CreateSession(ctx, s))
		assert.NotEmpty(t, s.ID)
	}

	dup := &entity.DbSession{UserID: user.ID, TokenHash: "live", ExpiresAt: now.Add(time.Hour)}
	assert.ErrorIs(t, repo.CreateSession(ctx, dup), gorm.ErrDuplicatedKey)

	found, err := repo.GetSessionByTokenHash(ctx, "expired")
	require.NoError(t, err, "expired rows stay readable until swept")
	assert.Equal(t, expired.ID, found.ID)

	removed, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	_, err = repo.GetSessionByTokenHash(ctx, "expired")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	removed, err = repo.DeleteUserSessions(ctx, user.ID, "live")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.GetSessionByTokenHash(ctx, "live")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSessionByTokenHash(ctx, "live"))
	require.NoError(t, repo.DeleteSessionByTokenHash(ctx, "live"))
	_, err = repo.GetSessionByTokenHash(ctx, "live")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCommunications(t *testing.T) {
	repo := testutil.NewRepository(t)
	ctx := context.Background()
	rep := testutil.CreateUser(t, repo, "rep@example.com", "", entity.UserRoleRepresentative)
	c1 := testutil.CreateUser(t, repo, "c1@example.com", "", entity.UserRoleConstituent)
	c2 := testutil.CreateUser(t, repo, "c2@example.com", "", entity.UserRoleConstituent)

	for _, constituent := range []*entity.DbUser{c1, c2, c1} {
		comm := &entity.DbCommunication{
			RepresentativeID: rep.ID,
			ConstituentID:    constituent.ID,
			SenderID:         rep.ID,
			Subject:          "Town hall",
			Message:          "See you Thursday",
		}
		require.NoError(t, repo.CreateCommunication(ctx, comm))
		assert.Equal(t, entity.CommunicationStatusPending, comm.Status)
	}

	list, meta, err := repo.ListCommunications(ctx, &entity.CommunicationQuery{ConstituentID: c1.ID})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, int64(2), meta.Total)
	assert.Greater(t, list[0].ID, list[1].ID)

	list, _, err = repo.ListCommunications(ctx, &entity.CommunicationQuery{RepresentativeID: rep.ID})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	status := entity.CommunicationStatusRead
	readAt := time.Now().UTC()
	require.NoError(t, repo.UpdateCommunication(ctx, list[0].ID, entity.CommunicationUpdates{Status: &status, ReadAt: &readAt}))

	list, _, err = repo.ListCommunications(ctx, &entity.CommunicationQuery{RepresentativeID: rep.ID, Status: "read"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].ReadAt)

	_, err = repo.GetCommunication(ctx, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
