package api

import (
	"bytes"
	"civicportal/internal/authz"
	"civicportal/internal/entity"
	"civicportal/internal/guard"
	"civicportal/internal/service"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Title        string
	User         *entity.DbUser
	Message      string
	Next         string
	Email        string
	SSOEnabled   bool
	Capabilities []authz.Action
	CSRFToken    string
}

func renderPage(c *gin.Context, status int, name string, data pageData) {
	data.CSRFToken = csrfToken(c)
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		logrus.WithError(err).WithField("template", name).Error("failed to render page")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (h *HTTPHandler) registerPages(r *gin.Engine) {
	// 表单页面走 CSRF 校验，/api 使用 JSON + SameSite Cookie
	pages := r.Group("", CSRFProtection(CSRFConfig{}))
	pages.GET(h.guard.SignInPath(), h.SignInPage)
	pages.POST(h.guard.SignInPath(), h.SignInSubmit)
	pages.POST("/auth/signout", h.SignOut)
	pages.GET(h.guard.UnauthorizedPath(), h.UnauthorizedPage)

	pages.GET("/dashboard", h.Guard(guard.AnyUser()), h.dashboardPage("Dashboard"))
	pages.GET("/admin", h.Guard(guard.RequireRole(entity.UserRoleAdmin)), h.dashboardPage("Administration"))
	pages.GET("/representative", h.Guard(guard.RequireCapability(authz.DashboardRepresentative)), h.dashboardPage("Representative office"))
	pages.GET("/constituent/dashboard", h.Guard(guard.RequireCapability(authz.DashboardConstituent)), h.dashboardPage("Constituent dashboard"))
}

func (h *HTTPHandler) SignInPage(c *gin.Context) {
	msg := ""
	if c.Query("error") == "sso" {
		msg = "single sign-on failed, try again"
	}
	renderPage(c, http.StatusOK, "signin", pageData{
		Title:      "Sign in",
		Next:       safeNext(c.Query("next")),
		Message:    msg,
		SSOEnabled: h.sso != nil,
	})
}

// SignInSubmit 表单登录：成功后 303 跳转到 next
func (h *HTTPHandler) SignInSubmit(c *gin.Context) {
	email := c.PostForm("email")
	next := safeNext(c.PostForm("next"))

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.auth.Login(ctx, email, c.PostForm("password"), clientInfo(c))
	if err != nil {
		status := http.StatusUnauthorized
		switch service.KindOf(err) {
		case service.KindValidation:
			status = http.StatusBadRequest
		case service.KindBackend:
			status = http.StatusServiceUnavailable
			logrus.WithError(err).Error("form login failed")
		}
		renderPage(c, status, "signin", pageData{
			Title:      "Sign in",
			Message:    service.PublicMessage(err),
			Next:       next,
			Email:      email,
			SSOEnabled: h.sso != nil,
		})
		return
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	if next == "" {
		next = "/dashboard"
	}
	c.Redirect(http.StatusSeeOther, next)
}

func (h *HTTPHandler) SignOut(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.auth.Logout(ctx, h.sessionToken(c)); err != nil {
		logrus.WithError(err).Warn("failed to revoke session on sign out")
	}
	h.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, h.guard.SignInPath())
}

func (h *HTTPHandler) UnauthorizedPage(c *gin.Context) {
	msg := "You do not have permission to view this page."
	if c.Query("reason") == "error" {
		msg = service.PublicMessage(nil)
	}
	renderPage(c, http.StatusForbidden, "unauthorized", pageData{Title: "Access denied", Message: msg})
}

func (h *HTTPHandler) dashboardPage(title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentDbUser(c)
		renderPage(c, http.StatusOK, "dashboard", pageData{
			Title:        title,
			User:         user,
			Capabilities: authz.Capabilities(user.Role),
		})
	}
}
