package api

import (
	"civicportal/internal/entity"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListConstituents 选民名录；办公室成员只能看到本选区
func (h *HTTPHandler) ListConstituents(c *gin.Context) {
	var query entity.ConstituentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	clampPage(&query.BaseParams)

	ctx, cancel := requestContext(c)
	defer cancel()

	entries, district, meta, err := h.directory.ListConstituents(ctx, currentDbUser(c), query)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if entries == nil {
		entries = []entity.ConstituentEntry{}
	}
	c.JSON(http.StatusOK, entity.ConstituentListResponse{
		District:     district,
		Constituents: entries,
		Meta:         meta,
	})
}

func (h *HTTPHandler) GetConstituentRecord(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	record, err := h.directory.ConstituentRecord(ctx, currentDbUser(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *HTTPHandler) UpdateConstituentRecord(c *gin.Context) {
	var req entity.ConstituentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	record, err := h.directory.UpdateConstituentRecord(ctx, currentDbUser(c), req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *HTTPHandler) GetRepresentativeProfile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.directory.RepresentativeProfile(ctx, id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *HTTPHandler) UpdateRepresentativeProfile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req entity.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.directory.UpdateRepresentativeProfile(ctx, currentDbUser(c), id, req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
