package handler

import (
	"strconv"

	"paycore/pkg/response"

	"github.com/gin-gonic/gin"
)

// OutboxStats
// GET /api/v1/outbox/stats
func (h *Handler) OutboxStats(c *gin.Context) {
	stats, err := h.outbox.Stats(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, stats)
}

// ListFailedMessages
// GET /api/v1/outbox/failed?limit=50
func (h *Handler) ListFailedMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	messages, err := h.outbox.ListFailed(c.Request.Context(), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"list": messages, "total": len(messages)})
}

// RequeueMessage
// POST /api/v1/outbox/:id/requeue
func (h *Handler) RequeueMessage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "invalid message id")
		return
	}
	if err := h.outbox.Requeue(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "status": "PENDING"})
}
