package service

import (
	"civicportal/internal/entity"
	"civicportal/internal/testutil"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepresentativeProfile(t *testing.T) {
	repo := testutil.NewRepository(t)
	svc := NewDirectoryService(repo)
	ctx := context.Background()

	repA := testutil.CreateUser(t, repo, "rep-a@example.com", "secret123", entity.UserRoleRepresentative)
	repB := testutil.CreateUser(t, repo, "rep-b@example.com", "secret123", entity.UserRoleRepresentative)
	chief := testutil.CreateOfficeUser(t, repo, "chief@example.com", entity.UserRoleChiefOfStaff, repA.ID)
	staff := testutil.CreateOfficeUser(t, repo, "staff@example.com", entity.UserRoleStaffMember, repA.ID)
	admin := testutil.CreateUser(t, repo, "admin@example.com", "secret123", entity.UserRoleAdmin)

	_, err := svc.RepresentativeProfile(ctx, repA.ID)
	assert.True(t, IsKind(err, KindNotFound))

	start := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(2, 0, 0)
	req := entity.ProfileUpdateRequest{
		GovernmentLevel: "Federal",
		Jurisdiction:    "California",
		District:        " ca-12 ",
		Party:           "Independent",
		TermStart:       &start,
		TermEnd:         &end,
	}
	profile, err := svc.UpdateRepresentativeProfile(ctx, repA, repA.ID, req)
	require.NoError(t, err)
	assert.Equal(t, entity.GovernmentLevelFederal, profile.GovernmentLevel)
	assert.Equal(t, "CA-12", profile.District)

	req.Position = "Member of Congress"
	profile, err = svc.UpdateRepresentativeProfile(ctx, chief, repA.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Member of Congress", profile.Position)

	_, err = svc.UpdateRepresentativeProfile(ctx, chief, repB.ID, req)
	assert.True(t, IsKind(err, KindAuthorization))
	_, err = svc.UpdateRepresentativeProfile(ctx, staff, repA.ID, req)
	assert.True(t, IsKind(err, KindAuthorization))

	_, err = svc.UpdateRepresentativeProfile(ctx, admin, repB.ID, entity.ProfileUpdateRequest{Jurisdiction: "Texas", District: "TX-7", GovernmentLevel: "galactic"})
	assert.True(t, IsKind(err, KindValidation))
	_, err = svc.UpdateRepresentativeProfile(ctx, admin, repB.ID, entity.ProfileUpdateRequest{Jurisdiction: "Texas", District: "TX-7", TermStart: &end, TermEnd: &start})
	assert.True(t, IsKind(err, KindValidation))
	_, err = svc.UpdateRepresentativeProfile(ctx, admin, staff.ID, entity.ProfileUpdateRequest{Jurisdiction: "Texas", District: "TX-7"})
	assert.True(t, IsKind(err, KindNotFound))

	other, err := svc.UpdateRepresentativeProfile(ctx, admin, repB.ID, entity.ProfileUpdateRequest{Jurisdiction: "Texas", District: "TX-7"})
	require.NoError(t, err)
	assert.Equal(t, repB.ID, other.UserID)
}

func TestConstituentDirectory(t *testing.T) {
	repo := testutil.NewRepository(t)
	svc := NewDirectoryService(repo)
	ctx := context.Background()

	rep := testutil.CreateUser(t, repo, "rep@example.com", "secret123", entity.UserRoleRepresentative)
	staff := testutil.CreateOfficeUser(t, repo, "staff@example.com", entity.UserRoleStaffMember, rep.ID)
	admin := testutil.CreateUser(t, repo, "admin@example.com", "secret123", entity.UserRoleAdmin)
	near := testutil.CreateUser(t, repo, "near@example.com", "secret123", entity.UserRoleConstituent)
	far := testutil.CreateUser(t, repo, "far@example.com", "secret123", entity.UserRoleConstituent)
	testutil.CreateUser(t, repo, "unplaced@example.com", "secret123", entity.UserRoleConstituent)

	_, _, _, err := svc.ListConstituents(ctx, rep, entity.ConstituentQuery{})
	assert.True(t, IsKind(err, KindValidation), "office needs a district first")

	_, err = svc.UpdateRepresentativeProfile(ctx, rep, rep.ID, entity.ProfileUpdateRequest{Jurisdiction: "California", District: "CA-12"})
	require.NoError(t, err)

	record, err := svc.UpdateConstituentRecord(ctx, near, entity.ConstituentUpdateRequest{District: "ca-12", Street: "1 Main St", City: "Oakland", State: "CA", ZipCode: "94601"})
	require.NoError(t, err)
	assert.Equal(t, "CA-12", record.District)
	_, err = svc.UpdateConstituentRecord(ctx, far, entity.ConstituentUpdateRequest{District: "TX-7"})
	require.NoError(t, err)

	_, err = svc.UpdateConstituentRecord(ctx, staff, entity.ConstituentUpdateRequest{District: "CA-12"})
	assert.True(t, IsKind(err, KindAuthorization))
	_, err = svc.UpdateConstituentRecord(ctx, far, entity.ConstituentUpdateRequest{District: "  "})
	assert.True(t, IsKind(err, KindValidation))

	entries, district, meta, err := svc.ListConstituents(ctx, staff, entity.ConstituentQuery{District: "TX-7"})
	require.NoError(t, err)
	assert.Equal(t, "CA-12", district, "office members are pinned to their district")
	require.Len(t, entries, 1)
	assert.Equal(t, near.ID, entries[0].UserID)
	assert.Equal(t, "Oakland", entries[0].City)
	assert.Equal(t, int64(1), meta.Total)

	entries, _, _, err = svc.ListConstituents(ctx, admin, entity.ConstituentQuery{District: "tx-7"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, far.ID, entries[0].UserID)

	entries, _, _, err = svc.ListConstituents(ctx, admin, entity.ConstituentQuery{})
	require.NoError(t, err)
	assert.Len(t, entries, 2, "constituents without a district are not listed")

	_, _, _, err = svc.ListConstituents(ctx, near, entity.ConstituentQuery{})
	assert.True(t, IsKind(err, KindAuthorization))

	own, err := svc.ConstituentRecord(ctx, near)
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", own.Street)
}
