package api

import (
	"civicportal/internal/entity"
	"civicportal/internal/service"
	"civicportal/internal/session"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)
	user := s.createUser("user@example.com", "secret123", entity.UserRoleConstituent)

	w := s.do(http.MethodPost, "/api/auth/login", entity.AuthLoginRequest{Email: "User@Example.com", Password: "secret123"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeJSON[entity.AuthResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, user.ID, resp.UserID)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "user@example.com", resp.User.Email)
	assert.Equal(t, entity.UserRoleConstituent, resp.User.Role)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), resp.ExpiresAt, 5*time.Second)

	cookie := findCookie(w, "app_session")
	require.NotNil(t, cookie)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.False(t, cookie.Secure)
	assert.InDelta(t, (30 * 24 * time.Hour).Seconds(), float64(cookie.MaxAge), 5)
}

func TestLoginCookieSecureBehindTLSProxy(t *testing.T) {
	s := newTestServer(t)
	s.createUser("user@example.com", "secret123", entity.UserRoleConstituent)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"user@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	cookie := findCookie(w, "app_session")
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	s.createUser("user@example.com", "secret123", entity.UserRoleConstituent)

	cases := []struct {
		name   string
		body   entity.AuthLoginRequest
		status int
		code   string
	}{
		{"wrong password", entity.AuthLoginRequest{Email: "user@example.com", Password: "nope-nope"}, http.StatusUnauthorized, ErrCodeInvalidCredentials},
		{"unknown user", entity.AuthLoginRequest{Email: "ghost@example.com", Password: "secret123"}, http.StatusUnauthorized, ErrCodeInvalidCredentials},
		{"missing password", entity.AuthLoginRequest{Email: "user@example.com"}, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"missing email", entity.AuthLoginRequest{Password: "secret123"}, http.StatusBadRequest, ErrCodeInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/auth/login", tc.body, nil)
			assert.Equal(t, tc.status, w.Code)
			apiErr := decodeJSON[APIError](t, w)
			assert.Equal(t, tc.code, apiErr.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, service.MsgInvalidCredentials, apiErr.Message)
			}
			assert.Nil(t, findCookie(w, "app_session"))
		})
	}
}

func TestSessionEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.createUser("user@example.com", "secret123", entity.UserRoleConstituent)

	w := s.do(http.MethodGet, "/api/auth/session", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	anon := decodeJSON[entity.SessionResponse](t, w)
	assert.Nil(t, anon.User)
	assert.Contains(t, w.Body.String(), `"user":null`)

	cookie := s.login("user@example.com", "secret123")
	w = s.do(http.MethodGet, "/api/auth/session", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON[entity.SessionResponse](t, w)
	require.NotNil(t, resp.User)
	assert.Equal(t, "user@example.com", resp.User.Email)
	require.NotNil(t, resp.ExpiresAt)

	bearer := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	bearer.Header.Set("Authorization", "Bearer "+cookie.Value)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, bearer)
	resp = decodeJSON[entity.SessionResponse](t, w)
	require.NotNil(t, resp.User)
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestServer(t)
	s.createUser("user@example.com", "secret123", entity.UserRoleConstituent)
	cookie := s.login("user@example.com", "secret123")

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", nil, cookie).Code)

	w := s.do(http.MethodPost, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := findCookie(w, "app_session")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	w = s.do(http.MethodGet, "/api/auth/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrCodeSessionExpired, decodeJSON[APIError](t, w).Code)
}

func TestRegisterDoesNotSignIn(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/auth/register", entity.AuthRegisterRequest{Email: "new@example.com", Password: "password1", FirstName: "New"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Nil(t, findCookie(w, "app_session"))
	assert.Contains(t, w.Body.String(), `"role":"constituent"`)

	w = s.do(http.MethodPost, "/api/auth/register", entity.AuthRegisterRequest{Email: "new@example.com", Password: "password1"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", entity.AuthRegisterRequest{Email: "bad", Password: "password1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangePasswordKeepsCurrentSession(t *testing.T) {
	s := newTestServer(t)
	s.createUser("user@example.com", "secret123", entity.UserRoleConstituent)
	current := s.login("user@example.com", "secret123")
	other := s.login("user@example.com", "secret123")

	w := s.do(http.MethodPost, "/api/auth/password", entity.PasswordChangeRequest{CurrentPassword: "secret123", NewPassword: "another-secret"}, current)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", nil, current).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", nil, other).Code)
}

func TestSetPasswordFromInvite(t *testing.T) {
	s := newTestServer(t)
	s.createUser("admin@example.com", "secret123", entity.UserRoleAdmin)
	rep := s.createUser("rep@example.com", "secret123", entity.UserRoleRepresentative)
	admin := s.login("admin@example.com", "secret123")

	w := s.do(http.MethodPost, "/api/users/invite", entity.UserInviteRequest{Email: "staff@example.com", Role: entity.UserRoleStaffMember}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code, "staff invites need an office")

	w = s.do(http.MethodPost, "/api/users/invite", entity.UserInviteRequest{Email: "staff@example.com", Role: entity.UserRoleStaffMember, RepresentativeID: rep.ID}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	invite := decodeJSON[entity.UserInviteResponse](t, w)
	require.NotEmpty(t, invite.InviteToken)
	assert.Equal(t, rep.ID, invite.User.OfficeID)

	w = s.do(http.MethodPost, "/api/auth/set-password", entity.SetPasswordRequest{Token: invite.InviteToken, Password: "staff-pass-1"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	s.login("staff@example.com", "staff-pass-1")

	w = s.do(http.MethodPost, "/api/auth/set-password", entity.SetPasswordRequest{Token: invite.InviteToken, Password: "staff-pass-2"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSSODisabled(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/auth/sso/login", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeSSODisabled, decodeJSON[APIError](t, w).Code)
}

func TestBackendFailureIsServiceUnavailable(t *testing.T) {
	s := newTestServerWithStore(t, func(inner session.Store) session.Store { return brokenStore{Store: inner} })

	w := s.do(http.MethodGet, "/api/auth/me", nil, &http.Cookie{Name: "app_session", Value: "whatever"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	apiErr := decodeJSON[APIError](t, w)
	assert.Equal(t, ErrCodeServiceUnavailable, apiErr.Code)
	assert.NotContains(t, apiErr.Message, "dial tcp")

	page := s.do(http.MethodGet, "/dashboard", nil, &http.Cookie{Name: "app_session", Value: "whatever"})
	assert.Equal(t, http.StatusSeeOther, page.Code)
	assert.Equal(t, "/unauthorized?reason=error", page.Header().Get("Location"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/dashboard", safeNext("/dashboard"))
	assert.Equal(t, "/a?b=c", safeNext(" /a?b=c "))
	for _, bad := range []string{"", "https://evil.example", "//evil.example", `/\evil.example`, "dashboard"} {
		assert.Empty(t, safeNext(bad), bad)
	}
	assert.Equal(t, "%2Fadmin", url.QueryEscape("/admin"))
}
