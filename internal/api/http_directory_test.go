package api

import (
	"bytes"
	"civicportal/internal/entity"
	"civicportal/internal/testutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstituentDirectoryAPI(t *testing.T) {
	s := newTestServer(t)
	rep := s.createUser("rep@example.com", "secret123", entity.UserRoleRepresentative)
	testutil.CreateOfficeUser(t, s.repo, "staff@example.com", entity.UserRoleStaffMember, rep.ID)
	voter := s.createUser("voter@example.com", "secret123", entity.UserRoleConstituent)
	repCookie := s.login("rep@example.com", "secret123")
	staffCookie := s.login("staff@example.com", "secret123")
	voterCookie := s.login("voter@example.com", "secret123")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/constituents", nil, voterCookie).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/constituents", nil, nil).Code)

	w := s.do(http.MethodGet, "/api/constituents", nil, staffCookie)
	assert.Equal(t, http.StatusBadRequest, w.Code, "office has no district yet")

	path := "/api/representatives/" + itoa(rep.ID) + "/profile"
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, nil, voterCookie).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, path, entity.ProfileUpdateRequest{Jurisdiction: "California", District: "CA-12"}, staffCookie).Code)

	w = s.do(http.MethodPut, path, entity.ProfileUpdateRequest{Jurisdiction: "California", District: "ca-12", GovernmentLevel: "state"}, repCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	profile := decodeJSON[entity.DbProfile](t, w)
	assert.Equal(t, "CA-12", profile.District)

	w = s.do(http.MethodGet, path, nil, voterCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "California", decodeJSON[entity.DbProfile](t, w).Jurisdiction)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/profile/constituent", nil, voterCookie).Code)
	w = s.do(http.MethodPut, "/api/profile/constituent", entity.ConstituentUpdateRequest{District: "CA-12", City: "Oakland"}, voterCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, "/api/profile/constituent", entity.ConstituentUpdateRequest{District: "CA-12"}, staffCookie).Code)

	w = s.do(http.MethodGet, "/api/constituents?district=TX-7", nil, staffCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decodeJSON[entity.ConstituentListResponse](t, w)
	assert.Equal(t, "CA-12", list.District)
	require.Len(t, list.Constituents, 1)
	assert.Equal(t, voter.ID, list.Constituents[0].UserID)
	assert.Equal(t, int64(1), list.Meta.Total)
	assert.NotContains(t, w.Body.String(), "street", "street addresses stay out of the list")
}

func TestDirectoryRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	s.createUser("voter@example.com", "secret123", entity.UserRoleConstituent)
	cookie := s.login("voter@example.com", "secret123")

	req := httptest.NewRequest(http.MethodPut, "/api/profile/constituent", bytes.NewBufferString(`{"district":`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeInvalidRequest, decodeJSON[APIError](t, w).Code)

	w = s.do(http.MethodPut, "/api/profile/constituent", map[string]string{"city": "Oakland"}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code, "district is required")
}

func TestCompanyAdminCannotManageAdmin(t *testing.T) {
	s := newTestServer(t)
	admin := s.createUser("admin@example.com", "secret123", entity.UserRoleAdmin)
	s.createUser("company@example.com", "secret123", entity.UserRoleCompanyAdmin)
	company := s.login("company@example.com", "secret123")

	inactive := false
	w := s.do(http.MethodPatch, "/api/users/"+itoa(admin.ID), entity.UserUpdateRequest{IsActive: &inactive}, company)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	s.login("admin@example.com", "secret123")
}
