package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	csrfCookieName      = "csrf_token"
	csrfHeaderName      = "X-Csrf-Token"
	csrfTokenBytes      = 32
	csrfCookieMaxAge    = 12 * 3600
	csrfTokenContextKey = "csrf-token"
)

// CSRFConfig 双提交 Cookie 校验；空字段使用默认值
type CSRFConfig struct {
	CookieName    string
	HeaderName    string
	FormFieldName string
}

// CSRFProtection guards the server-rendered forms. Every request gets a token
// cookie; unsafe methods must echo it in the header or the form field.
func CSRFProtection(cfg CSRFConfig) gin.HandlerFunc {
	if cfg.CookieName == "" {
		cfg.CookieName = csrfCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = csrfHeaderName
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = csrfCookieName
	}

	return func(c *gin.Context) {
		token, _ := c.Cookie(cfg.CookieName)
		if token == "" {
			var err error
			token, err = newCSRFToken()
			if err != nil {
				logrus.WithError(err).Error("csrf token generation failed")
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   csrfCookieMaxAge,
				HttpOnly: false, // 页面脚本需要读取后放进请求头
				Secure:   isSecureRequest(c),
				SameSite: http.SameSiteStrictMode,
			})
		}
		c.Set(csrfTokenContextKey, token)

		if requiresCSRFCheck(c.Request.Method) && !csrfTokenMatches(c, token, cfg) {
			logrus.WithFields(logrus.Fields{
				"path":      c.Request.URL.Path,
				"client_ip": c.ClientIP(),
			}).Warn("csrf token mismatch")
			renderPage(c, http.StatusForbidden, "unauthorized", pageData{
				Title:   "Access denied",
				Message: "Your form has expired. Reload the page and try again.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func requiresCSRFCheck(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

func csrfTokenMatches(c *gin.Context, cookieToken string, cfg CSRFConfig) bool {
	submitted := c.GetHeader(cfg.HeaderName)
	if submitted == "" {
		contentType := c.ContentType()
		if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
			strings.HasPrefix(contentType, "multipart/form-data") {
			submitted = c.PostForm(cfg.FormFieldName)
		}
	}
	if submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieToken)) == 1
}

func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// csrfToken returns the token CSRFProtection attached to the request.
func csrfToken(c *gin.Context) string {
	return c.GetString(csrfTokenContextKey)
}
