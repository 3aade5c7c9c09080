package api

import (
	"bytes"
	"civicportal/internal/entity"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var avatarPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func (s *testServer) upload(field, filename string, data []byte, cookie *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(s.t, err)
	_, err = part.Write(data)
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestUploadAvatar(t *testing.T) {
	s := newTestServer(t)
	s.createUser("voter@example.com", "secret123", entity.UserRoleConstituent)
	cookie := s.login("voter@example.com", "secret123")

	assert.Equal(t, http.StatusUnauthorized, s.upload("avatar", "a.png", avatarPNG, nil).Code)

	w := s.upload("avatar", "a.png", avatarPNG, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decodeJSON[entity.UserSummary](t, w)
	require.True(t, strings.HasPrefix(summary.AvatarURL, "/files/avatars/"), summary.AvatarURL)
	assert.True(t, strings.HasSuffix(summary.AvatarURL, ".png"))

	file := s.do(http.MethodGet, summary.AvatarURL, nil, nil)
	require.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, avatarPNG, file.Body.Bytes())

	me := decodeJSON[entity.UserSummary](t, s.do(http.MethodGet, "/api/auth/me", nil, cookie))
	assert.Equal(t, summary.AvatarURL, me.AvatarURL)
}

func TestUploadAvatarRejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	s.createUser("voter@example.com", "secret123", entity.UserRoleConstituent)
	cookie := s.login("voter@example.com", "secret123")

	w := s.upload("avatar", "notes.txt", []byte("plain text is not an image"), cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeInvalidAvatar, decodeJSON[APIError](t, w).Code)

	w = s.upload("picture", "a.png", avatarPNG, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeMissingField, decodeJSON[APIError](t, w).Code)

	big := append(append([]byte{}, avatarPNG...), make([]byte, 2<<20)...)
	w = s.upload("avatar", "big.png", big, cookie)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
