package api

import (
	"bytes"
	"civicportal/internal/auth"
	"civicportal/internal/config"
	"civicportal/internal/entity"
	"civicportal/internal/model"
	"civicportal/internal/service"
	"civicportal/internal/session"
	"civicportal/internal/storage"
	"civicportal/internal/testutil"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t        *testing.T
	repo     model.Repository
	sessions session.Store
	handler  *HTTPHandler
	router   *gin.Engine
	invites  *auth.Manager
}

// brokenStore fails every lookup, as an unreachable backend would.
type brokenStore struct {
	session.Store
}

func (brokenStore) Get(context.Context, string) (*session.Session, error) {
	return nil, errors.New("dial tcp 10.0.0.1:5432: connection refused")
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithStore(t, nil)
}

func newTestServerWithStore(t *testing.T, wrap func(session.Store) session.Store) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := testutil.NewRepository(t)
	var store session.Store = session.NewSQLStore(repo)
	if wrap != nil {
		store = wrap(store)
	}
	invites, err := auth.NewManager("api-test-secret-123456", "civicportal-test", time.Hour)
	require.NoError(t, err)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	cfg := config.Config{SessionCookieName: "app_session", StoragePublicBaseURL: "/files"}
	svcs := Services{
		Auth:           service.NewAuthService(repo, store, invites, 0),
		Users:          service.NewUserService(repo, store, invites),
		Communications: service.NewCommunicationService(repo),
		Directory:      service.NewDirectoryService(repo),
	}
	handler := NewHTTPHandler(cfg, repo, svcs, files, nil)
	return &testServer{
		t:        t,
		repo:     repo,
		sessions: store,
		handler:  handler,
		router:   handler.NewRouter(),
		invites:  invites,
	}
}

func (s *testServer) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// postForm submits an urlencoded form the way a browser would.
func (s *testServer) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		if cookie != nil {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) createUser(email, password, role string) *entity.DbUser {
	return testutil.CreateUser(s.t, s.repo, email, password, role)
}

// login signs in through the API and returns the session cookie.
func (s *testServer) login(email, password string) *http.Cookie {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/login", entity.AuthLoginRequest{Email: email, Password: password}, nil)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	cookie := findCookie(w, "app_session")
	require.NotNil(s.t, cookie)
	return cookie
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
