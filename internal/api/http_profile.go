package api

import (
	"civicportal/internal/storage"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UploadAvatar 上传头像（multipart 字段 avatar）
func (h *HTTPHandler) UploadAvatar(c *gin.Context) {
	user := currentDbUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}
	if h.storage == nil {
		ServiceUnavailable(c, "file storage is not configured")
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		MissingField(c, "avatar")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, ErrCodeInvalidAvatar, "cannot read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxAvatarBytes+1))
	if err != nil {
		BadRequest(c, ErrCodeInvalidAvatar, "cannot read uploaded file")
		return
	}
	opts, err := storage.AvatarOptions(user.ID, data, time.Now())
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, storage.ErrAvatarTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		ErrorResponse(c, status, ErrCodeInvalidAvatar, err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	key, err := h.storage.Save(ctx, data, opts)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to store avatar")
		ServiceUnavailable(c, "failed to store avatar")
		return
	}
	if err := h.users.SetAvatar(ctx, user.ID, key); err != nil {
		_ = h.storage.Delete(ctx, key)
		ServiceError(c, err)
		return
	}
	if previous := user.AvatarKey; previous != "" && previous != key {
		if err := h.storage.Delete(ctx, previous); err != nil {
			logrus.WithError(err).WithField("key", previous).Warn("failed to delete previous avatar")
		}
	}

	user.AvatarKey = key
	c.JSON(http.StatusOK, h.userSummary(user))
}
