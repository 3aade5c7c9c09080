package api

import (
	"civicportal/internal/entity"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *HTTPHandler) SendCommunication(c *gin.Context) {
	var req entity.CommunicationCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid communication payload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	comm, err := h.comms.Send(ctx, currentDbUser(c), req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comm)
}

// ListCommunications 非平台角色只能看到自己参与的消息
func (h *HTTPHandler) ListCommunications(c *gin.Context) {
	var query entity.CommunicationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	clampPage(&query.BaseParams)
	if raw := c.Query("representative_id"); raw != "" {
		id, ok := parseUintQuery(c, "representative_id")
		if !ok {
			return
		}
		query.RepresentativeID = id
	}
	if raw := c.Query("constituent_id"); raw != "" {
		id, ok := parseUintQuery(c, "constituent_id")
		if !ok {
			return
		}
		query.ConstituentID = id
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	records, meta, err := h.comms.List(ctx, currentDbUser(c), query)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if records == nil {
		records = []entity.DbCommunication{}
	}
	c.JSON(http.StatusOK, entity.CommunicationListResponse{Communications: records, Meta: meta})
}

func (h *HTTPHandler) GetCommunication(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	comm, err := h.comms.Get(ctx, currentDbUser(c), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, comm)
}

func (h *HTTPHandler) MarkCommunicationRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	comm, err := h.comms.MarkRead(ctx, currentDbUser(c), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, comm)
}
