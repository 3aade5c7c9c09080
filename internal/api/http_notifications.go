package api

import (
	"civicportal/internal/auth"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const sseHeartbeatInterval = 15 * time.Second

// StreamNotifications 推送当前用户的新消息通知；会话过期或被撤销后断开
func (h *HTTPHandler) StreamNotifications(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	ctx := c.Request.Context()
	token := h.sessionToken(c)
	sub := h.notifications.subscribe(requestUser.ID, auth.HashToken(token), 8)
	defer h.notifications.unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	heartbeatTicker := time.NewTicker(h.heartbeat)
	defer heartbeatTicker.Stop()

	var expired <-chan time.Time
	if !requestUser.SessionExpiresAt.IsZero() {
		timer := time.NewTimer(time.Until(requestUser.SessionExpiresAt))
		defer timer.Stop()
		expired = timer.C
	}

	logger := logrus.WithField("user_id", requestUser.ID)
	logger.Info("notification sse connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			logger.Info("notification sse disconnected")
			return false
		case <-expired:
			c.SSEvent("session_expired", gin.H{"ts": time.Now().UnixMilli()})
			return false
		case <-sub.done:
			logger.Info("notification sse closed: session revoked")
			c.SSEvent("session_revoked", gin.H{"ts": time.Now().UnixMilli()})
			return false
		case <-heartbeatTicker.C:
			// 兜底：其他进程撤销的会话（如 portalctl）只能靠心跳时重新校验发现
			if !h.streamSessionValid(ctx, token, requestUser.ID) {
				logger.Info("notification sse closed: session no longer valid")
				c.SSEvent("session_revoked", gin.H{"ts": time.Now().UnixMilli()})
				return false
			}
			c.SSEvent("ping", gin.H{"ts": time.Now().UnixMilli()})
			return true
		case msg, ok := <-sub.events:
			if !ok {
				return false
			}
			c.SSEvent(msg.event, msg.data)
			return true
		}
	})
}

// streamSessionValid keeps the stream open on backend faults; only a definite
// "no such session" closes it.
func (h *HTTPHandler) streamSessionValid(ctx context.Context, token string, userID uint) bool {
	checkCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	ident, err := h.auth.ValidateSession(checkCtx, token)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("sse session recheck failed")
		return true
	}
	return ident != nil && ident.User.ID == userID
}
