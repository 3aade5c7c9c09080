package api

import (
	"civicportal/internal/authz"
	"civicportal/internal/config"
	"civicportal/internal/entity"
	"civicportal/internal/guard"
	"civicportal/internal/model"
	"civicportal/internal/service"
	"civicportal/internal/storage"
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	requestIDContextKey = "request-id"
	requestIDHeader     = "X-Request-ID"
	requestTimeout      = 5 * time.Second
)

// SSOProvider is the optional single sign-on flow.
type SSOProvider interface {
	Begin(ctx context.Context) (authURL, state, nonce string, err error)
	Exchange(ctx context.Context, code, nonce string) (service.ExternalIdentity, error)
}

// Services groups the application services the handlers call into.
type Services struct {
	Auth           *service.AuthService
	Users          *service.UserService
	Communications *service.CommunicationService
	Directory      *service.DirectoryService
}

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg               config.Config
	repo              model.Repository
	storage           storage.Storage
	storagePublicBase string

	// 服务层
	auth      *service.AuthService
	users     *service.UserService
	comms     *service.CommunicationService
	directory *service.DirectoryService
	guard     *guard.Guard
	sso       SSOProvider

	// SSE 长连接，会话撤销时立即断开
	notifications *notificationHub
	heartbeat     time.Duration
}

// NewHTTPHandler 创建 HTTP 处理器实例; store 与 sso 可为 nil
func NewHTTPHandler(cfg config.Config, repo model.Repository, svcs Services, store storage.Storage, sso SSOProvider) *HTTPHandler {
	handler := &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		storage:           store,
		storagePublicBase: normalisePublicBase(cfg.StoragePublicBaseURL),
		auth:              svcs.Auth,
		users:             svcs.Users,
		comms:             svcs.Communications,
		directory:         svcs.Directory,
		guard:             guard.New(svcs.Auth),
		sso:               sso,
		notifications:     newNotificationHub(),
		heartbeat:         sseHeartbeatInterval,
	}

	// 设置 SSE 通知与撤销回调
	if svcs.Communications != nil {
		svcs.Communications.SetNotifyFunc(handler.notifyCommunication)
	}
	if svcs.Auth != nil {
		svcs.Auth.SetRevokeFunc(handler.revokeStreams)
	}
	if svcs.Users != nil {
		svcs.Users.SetRevokeFunc(handler.revokeStreams)
	}
	return handler
}

// normalisePublicBase 规范化公共 URL 基础路径
func normalisePublicBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = "/files"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func (h *HTTPHandler) userSummary(user *entity.DbUser) entity.UserSummary {
	if user == nil {
		return entity.UserSummary{}
	}
	summary := entity.UserSummary{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		IsActive:    user.IsActive,
		OfficeID:    user.OfficeID(),
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
	if user.AvatarKey != "" {
		summary.AvatarURL = storage.PublicURL(h.storagePublicBase, user.AvatarKey)
	}
	return summary
}

// notifyCommunication 新消息送达时推送给收件人
func (h *HTTPHandler) notifyCommunication(userID uint, comm entity.DbCommunication) {
	h.notifications.publish(userID, sseMessage{
		event: "communication",
		data: gin.H{
			"id":                comm.ID,
			"subject":           comm.Subject,
			"representative_id": comm.RepresentativeID,
			"created_at":        comm.CreatedAt,
		},
	})
}

// revokeStreams 会话被撤销后断开对应的 SSE 连接
func (h *HTTPHandler) revokeStreams(rev service.Revocation) {
	if cut := h.notifications.revoke(rev); cut > 0 {
		logrus.WithFields(logrus.Fields{
			"user_id": rev.UserID,
			"streams": cut,
		}).Info("closed notification streams of revoked sessions")
	}
}

// RequestIDMiddleware 为每个请求分配 X-Request-ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"size":       c.Writer.Size(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(requestIDContextKey),
		}
		if user := CurrentUser(c); user != nil {
			fields["user_id"] = user.ID
		}
		logrus.WithFields(fields).Info("http_request")
	}
}

// NewRouter builds the gin engine with every route registered.
func (h *HTTPHandler) NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logrus.WithFields(logrus.Fields{
			"panic":      recovered,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(requestIDContextKey),
		}).Error("recovered from panic")
		InternalError(c, "internal server error")
	}))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes 注册所有路由
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/login", h.Login)
	authGroup.POST("/register", h.Register)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/session", h.Session)
	authGroup.POST("/set-password", h.SetPassword)
	authGroup.GET("/sso/login", h.SSOLogin)
	authGroup.GET("/sso/callback", h.SSOCallback)
	authGroup.GET("/me", h.Guard(guard.AnyUser()), h.Me)
	authGroup.POST("/password", h.Guard(guard.AnyUser()), h.ChangePassword)

	protected := apiGroup.Group("")
	protected.Use(h.Guard(guard.AnyUser()))
	protected.GET("/notifications/stream", h.StreamNotifications)
	protected.POST("/profile/avatar", h.UploadAvatar)
	protected.POST("/communications", h.SendCommunication)
	protected.GET("/communications", h.ListCommunications)
	protected.GET("/communications/:id", h.GetCommunication)
	protected.POST("/communications/:id/read", h.MarkCommunicationRead)

	protected.GET("/constituents", h.RequireCapability(authz.ConstituentsRead), h.ListConstituents)
	protected.GET("/profile/constituent", h.GetConstituentRecord)
	protected.PUT("/profile/constituent", h.UpdateConstituentRecord)
	protected.GET("/representatives/:id/profile", h.GetRepresentativeProfile)
	protected.PUT("/representatives/:id/profile", h.RequireCapability(authz.ProfilesManage), h.UpdateRepresentativeProfile)

	userAdmin := protected.Group("/users")
	userAdmin.GET("", h.RequireCapability(authz.UsersManage), h.ListUsers)
	userAdmin.POST("/invite", h.RequireCapability(authz.UsersInvite), h.InviteUser)
	userAdmin.PATCH("/:id", h.RequireCapability(authz.UsersManage), h.UpdateUser)

	admin := protected.Group("/admin")
	admin.POST("/sessions/sweep", h.RequireCapability(authz.SessionsSweep), h.SweepSessions)

	h.registerPages(r)

	if localProvider, ok := h.storage.(storage.LocalBaseDirProvider); ok && strings.HasPrefix(h.storagePublicBase, "/") {
		r.Static(h.storagePublicBase, localProvider.LocalBaseDir())
	}
}
