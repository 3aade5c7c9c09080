package api

import (
	"civicportal/internal/entity"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func clampPage(params *entity.BaseParams) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func parseUintQuery(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func (h *HTTPHandler) ListUsers(c *gin.Context) {
	var query entity.UserQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	clampPage(&query.BaseParams)

	ctx, cancel := requestContext(c)
	defer cancel()

	users, meta, err := h.users.ListUsers(ctx, currentDbUser(c), &query)
	if err != nil {
		ServiceError(c, err)
		return
	}

	response := entity.UserListResponse{
		Users: make([]entity.UserSummary, 0, len(users)),
		Meta:  meta,
	}
	for idx := range users {
		response.Users = append(response.Users, h.userSummary(&users[idx]))
	}
	c.JSON(http.StatusOK, response)
}

// InviteUser 创建无密码账户并返回设置密码的邀请令牌
func (h *HTTPHandler) InviteUser(c *gin.Context) {
	var req entity.UserInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid invite payload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	invitation, err := h.users.Invite(ctx, currentDbUser(c), req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entity.UserInviteResponse{
		User:        h.userSummary(invitation.User),
		InviteToken: invitation.Token,
		ExpiresAt:   invitation.ExpiresAt,
	})
}

func (h *HTTPHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req entity.UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid user payload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.Update(ctx, currentDbUser(c), id, req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.userSummary(user))
}

// SweepSessions 立即清理过期会话
func (h *HTTPHandler) SweepSessions(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	removed, err := h.auth.SweepExpiredSessions(ctx)
	if err != nil {
		ServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"removed":  removed,
		"actor_id": CurrentUser(c).ID,
	}).Info("expired sessions swept")
	c.JSON(http.StatusOK, entity.SessionSweepResponse{Removed: removed})
}

func (h *HTTPHandler) Health(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if h.repo != nil {
		if err := h.repo.Ping(ctx); err != nil {
			logrus.WithError(err).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
