package api

import (
	"civicportal/internal/entity"
	"civicportal/internal/service"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	ssoStateCookie = "app_sso_state"
	ssoNonceCookie = "app_sso_nonce"
	ssoNextCookie  = "app_sso_next"
	ssoCookieTTL   = 10 * time.Minute
)

func clientInfo(c *gin.Context) service.ClientInfo {
	return service.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// isSecureRequest 直连 TLS 或反向代理声明 https 时设置 Secure
func isSecureRequest(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")), "https")
}

func (h *HTTPHandler) setCookie(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   isSecureRequest(c),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *HTTPHandler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(h.auth.SessionTTL().Seconds())
	}
	h.setCookie(c, h.cfg.SessionCookieName, token, maxAge)
}

func (h *HTTPHandler) clearSessionCookie(c *gin.Context) {
	h.setCookie(c, h.cfg.SessionCookieName, "", -1)
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req entity.AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid login payload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.auth.Login(ctx, req.Email, req.Password, clientInfo(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	c.JSON(http.StatusOK, entity.AuthResponse{
		Success:   true,
		UserID:    result.User.ID,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      h.userSummary(result.User),
	})
}

// Register 选民自助注册，不自动登录
func (h *HTTPHandler) Register(c *gin.Context) {
	var req entity.AuthRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid registration payload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.auth.Register(ctx, req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"userId":  user.ID,
		"user":    h.userSummary(user),
	})
}

// Logout 服务端吊销会话并清除 Cookie
func (h *HTTPHandler) Logout(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.auth.Logout(ctx, h.sessionToken(c)); err != nil {
		ServiceError(c, err)
		return
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Session is the read-only session check: {user} or {user: null}.
func (h *HTTPHandler) Session(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	ident, err := h.auth.ValidateSession(ctx, h.sessionToken(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	if ident == nil {
		c.JSON(http.StatusOK, entity.SessionResponse{})
		return
	}
	summary := h.userSummary(ident.User)
	resp := entity.SessionResponse{User: &summary}
	if ident.Session != nil {
		expiresAt := ident.Session.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) Me(c *gin.Context) {
	user := currentDbUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}
	c.JSON(http.StatusOK, h.userSummary(user))
}

func (h *HTTPHandler) ChangePassword(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}
	var req entity.PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid password payload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.auth.ChangePassword(ctx, user.ID, h.sessionToken(c), req.CurrentPassword, req.NewPassword); err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SetPassword 使用邀请链接设置初始密码
func (h *HTTPHandler) SetPassword(c *gin.Context) {
	var req entity.SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid set-password payload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.auth.SetPasswordWithInvite(ctx, req.Token, req.Password)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": h.userSummary(user)})
}

func (h *HTTPHandler) SSOLogin(c *gin.Context) {
	if h.sso == nil {
		NotFound(c, ErrCodeSSODisabled, "single sign-on is not configured")
		return
	}
	authURL, state, nonce, err := h.sso.Begin(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("failed to start sso login")
		ServiceUnavailable(c, "single sign-on is unavailable")
		return
	}
	maxAge := int(ssoCookieTTL.Seconds())
	h.setCookie(c, ssoStateCookie, state, maxAge)
	h.setCookie(c, ssoNonceCookie, nonce, maxAge)
	if next := safeNext(c.Query("next")); next != "" {
		h.setCookie(c, ssoNextCookie, next, maxAge)
	}
	c.Redirect(http.StatusFound, authURL)
}

func (h *HTTPHandler) SSOCallback(c *gin.Context) {
	if h.sso == nil {
		NotFound(c, ErrCodeSSODisabled, "single sign-on is not configured")
		return
	}
	state, _ := c.Cookie(ssoStateCookie)
	nonce, _ := c.Cookie(ssoNonceCookie)
	next, _ := c.Cookie(ssoNextCookie)
	for _, name := range []string{ssoStateCookie, ssoNonceCookie, ssoNextCookie} {
		h.setCookie(c, name, "", -1)
	}

	if state == "" || c.Query("state") != state {
		c.Redirect(http.StatusSeeOther, h.guard.SignInPath()+"?error=sso")
		return
	}
	if errParam := c.Query("error"); errParam != "" {
		logrus.WithField("error", errParam).Warn("sso provider returned an error")
		c.Redirect(http.StatusSeeOther, h.guard.SignInPath()+"?error=sso")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	ident, err := h.sso.Exchange(ctx, c.Query("code"), nonce)
	if err != nil {
		logrus.WithError(err).Warn("sso exchange failed")
		c.Redirect(http.StatusSeeOther, h.guard.SignInPath()+"?error=sso")
		return
	}
	result, err := h.auth.LoginWithIdentity(ctx, ident, clientInfo(c))
	if err != nil {
		if service.KindOf(err) == service.KindBackend {
			logrus.WithError(err).Error("sso login failed")
		}
		c.Redirect(http.StatusSeeOther, h.guard.SignInPath()+"?error=sso")
		return
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	if next = safeNext(next); next == "" {
		next = "/dashboard"
	}
	c.Redirect(http.StatusSeeOther, next)
}

// safeNext 只允许站内相对路径，防止开放重定向
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
