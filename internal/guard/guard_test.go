package guard

import (
	"civicportal/internal/authz"
	"civicportal/internal/entity"
	"civicportal/internal/service"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	identity *service.Identity
	err      error
	block    chan struct{}
	calls    int
}

func (f *fakeResolver) ValidateSession(ctx context.Context, token string) (*service.Identity, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	return f.identity, f.err
}

func identityWithRole(role string) *service.Identity {
	return &service.Identity{User: &entity.DbUser{ID: 7, Email: "u@example.com", Role: role, IsActive: true}}
}

func TestResolveNoRequirement(t *testing.T) {
	g := New(&fakeResolver{identity: identityWithRole(entity.UserRoleConstituent)})
	d := g.Resolve(context.Background(), "token", AnyUser())
	assert.Equal(t, StateAuthorized, d.State)
	assert.True(t, d.Allowed())
	assert.Empty(t, d.Redirect)
	assert.Equal(t, uint(7), d.Identity.User.ID)
}

func TestResolveNoIdentityRedirectsToSignInOnce(t *testing.T) {
	resolver := &fakeResolver{}
	g := New(resolver)
	d := g.Resolve(context.Background(), "", AnyUser())
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.False(t, d.Allowed())
	assert.Equal(t, DefaultSignInPath, d.Redirect)
	assert.Equal(t, "/auth/signin?next=%2Fdashboard", d.RedirectURL("/dashboard"))
	assert.Equal(t, 1, resolver.calls)
}

func TestResolveWrongRoleRedirectsToUnauthorized(t *testing.T) {
	g := New(&fakeResolver{identity: identityWithRole(entity.UserRoleStaffMember)})
	d := g.Resolve(context.Background(), "token", RequireRole(entity.UserRoleAdmin))
	assert.Equal(t, StateUnauthorized, d.State)
	assert.False(t, d.Allowed())
	assert.Equal(t, DefaultUnauthorizedPath, d.Redirect)
	assert.NotEqual(t, DefaultSignInPath, d.Redirect)
	assert.Equal(t, "/unauthorized?reason=forbidden", d.RedirectURL("/admin"))
}

func TestResolveCapability(t *testing.T) {
	g := New(&fakeResolver{identity: identityWithRole(entity.UserRoleChiefOfStaff)})
	assert.True(t, g.Resolve(context.Background(), "t", RequireCapability(authz.DashboardStaff)).Allowed())
	assert.False(t, g.Resolve(context.Background(), "t", RequireCapability(authz.DashboardAdmin)).Allowed())
}

func TestResolveBackendFailureIsErrorState(t *testing.T) {
	g := New(&fakeResolver{err: errors.New("connection reset")})
	d := g.Resolve(context.Background(), "token", RequireRole(entity.UserRoleAdmin))
	assert.Equal(t, StateError, d.State)
	assert.False(t, d.Allowed())
	assert.Equal(t, DefaultUnauthorizedPath, d.Redirect)
	assert.Equal(t, "service temporarily unavailable, try again later", d.Message)
	assert.Equal(t, "/unauthorized?reason=error", d.RedirectURL(""))
}

func TestResolveCancelledBeforeStart(t *testing.T) {
	resolver := &fakeResolver{identity: identityWithRole(entity.UserRoleAdmin)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(resolver).Resolve(ctx, "token", AnyUser())
	assert.True(t, d.Abandoned())
	assert.Empty(t, d.Redirect)
	assert.Equal(t, 0, resolver.calls)
}

func TestResolveAbandonsInFlightLookup(t *testing.T) {
	resolver := &fakeResolver{identity: identityWithRole(entity.UserRoleAdmin), block: make(chan struct{})}
	defer close(resolver.block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	d := New(resolver).Resolve(ctx, "token", AnyUser())
	assert.Equal(t, StateChecking, d.State)
	assert.False(t, d.Allowed())
	assert.Nil(t, d.Identity)
}

type panickingResolver struct{}

func (panickingResolver) ValidateSession(context.Context, string) (*service.Identity, error) {
	panic("boom")
}

func TestResolveNeverPanics(t *testing.T) {
	require.NotPanics(t, func() {
		d := New(panickingResolver{}).Resolve(context.Background(), "token", AnyUser())
		assert.Equal(t, StateError, d.State)
	})
	d := New(nil).Resolve(context.Background(), "token", AnyUser())
	assert.Equal(t, StateError, d.State)
}

func TestCustomPaths(t *testing.T) {
	g := New(&fakeResolver{}, WithSignInPath("/login"), WithUnauthorizedPath(""))
	assert.Equal(t, "/login", g.SignInPath())
	assert.Equal(t, DefaultUnauthorizedPath, g.UnauthorizedPath())
	assert.Equal(t, "/login", g.Resolve(context.Background(), "", AnyUser()).Redirect)
}
