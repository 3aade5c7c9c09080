package api

import (
	"civicportal/internal/authz"
	"civicportal/internal/entity"
	"civicportal/internal/guard"
	"civicportal/internal/service"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	currentUserContextKey     = "current-user"
	currentIdentityContextKey = "current-identity"
)

// RequestUser 存储请求上下文中的认证用户信息
type RequestUser struct {
	ID               uint
	Email            string
	DisplayName      string
	Role             string
	SessionExpiresAt time.Time
}

// Can reports whether the user's role grants action.
func (u *RequestUser) Can(action authz.Action) bool {
	if u == nil {
		return false
	}
	return authz.HasCapability(u.Role, action)
}

// sessionToken 优先读取会话 Cookie，其次读取 Bearer Token
func (h *HTTPHandler) sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(h.cfg.SessionCookieName); err == nil && strings.TrimSpace(cookie) != "" {
		return strings.TrimSpace(cookie)
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// isBrowserNavigation 页面请求走重定向，/api 请求返回 JSON
func isBrowserNavigation(c *gin.Context) bool {
	return !strings.HasPrefix(c.Request.URL.Path, "/api/")
}

// Guard resolves the caller's session and enforces req. Page requests are
// redirected; API requests get the error envelope.
func (h *HTTPHandler) Guard(req guard.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := requestContext(c)
		defer cancel()

		decision := h.guard.Resolve(ctx, h.sessionToken(c), req)
		if decision.Abandoned() {
			if c.Request.Context().Err() != nil {
				// 客户端已断开
				c.Abort()
				return
			}
			decision = guard.Decision{
				State:    guard.StateError,
				Redirect: h.guard.UnauthorizedPath(),
				Message:  service.PublicMessage(nil),
			}
		}

		if decision.Allowed() {
			setCurrentIdentity(c, decision.Identity)
			c.Next()
			return
		}

		// 带了令牌却未通过校验：会话已过期或被撤销
		staleToken := decision.State == guard.StateUnauthenticated && h.sessionToken(c) != ""
		if staleToken {
			h.clearSessionCookie(c)
		}

		if isBrowserNavigation(c) {
			c.Redirect(http.StatusSeeOther, decision.RedirectURL(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		switch decision.State {
		case guard.StateUnauthenticated:
			if staleToken {
				c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
					Code:    ErrCodeSessionExpired,
					Message: "session expired or revoked",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "authentication required",
			})
		case guard.StateUnauthorized:
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeForbidden,
				Message: "insufficient permissions",
			})
		default:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, APIError{
				Code:    ErrCodeServiceUnavailable,
				Message: decision.Message,
			})
		}
	}
}

// RequireCapability 权限守卫，需在 Guard 之后使用
func (h *HTTPHandler) RequireCapability(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).Can(action) {
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeForbidden,
				Message: "insufficient permissions",
			})
			return
		}
		c.Next()
	}
}

func setCurrentIdentity(c *gin.Context, ident *service.Identity) {
	user := ident.User
	requestUser := &RequestUser{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}
	if ident.Session != nil {
		requestUser.SessionExpiresAt = ident.Session.ExpiresAt
	}
	c.Set(currentUserContextKey, requestUser)
	c.Set(currentIdentityContextKey, user)
}

// CurrentUser 从上下文获取当前认证用户
func CurrentUser(c *gin.Context) *RequestUser {
	value, exists := c.Get(currentUserContextKey)
	if !exists {
		return nil
	}
	user, ok := value.(*RequestUser)
	if !ok {
		return nil
	}
	return user
}

// currentDbUser returns the full account loaded by the guard.
func currentDbUser(c *gin.Context) *entity.DbUser {
	value, exists := c.Get(currentIdentityContextKey)
	if !exists {
		return nil
	}
	user, _ := value.(*entity.DbUser)
	return user
}
