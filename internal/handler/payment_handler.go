package handler

import (
	"paycore/internal/model"
	"paycore/internal/service"
	"paycore/pkg/response"

	"github.com/gin-gonic/gin"
)

// CreatePayment
// POST /api/v1/payments
//
// A caller-supplied payment_id makes the request idempotent: resending the
// same request returns the stored payment, a different one under the same
// id is rejected.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	payment, err := h.payments.CreatePayment(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

type createBatchRequest struct {
	Payments []*service.CreatePaymentRequest `json:"payments" binding:"required,min=1,dive"`
}

// CreateBatchPayments
// POST /api/v1/payments/batch
func (h *Handler) CreateBatchPayments(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	batchID, payments, err := h.payments.CreateBatchPayments(c.Request.Context(), req.Payments)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"batch_id": batchID, "payments": payments})
}

// GetPayment
// GET /api/v1/payments/:id
func (h *Handler) GetPayment(c *gin.Context) {
	payment, err := h.payments.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// ListPayments
// GET /api/v1/payments?user_id=xxx&page=1&page_size=20
// GET /api/v1/payments?account_id=xxx
func (h *Handler) ListPayments(c *gin.Context) {
	if accountID := c.Query("account_id"); accountID != "" {
		payments, err := h.payments.ListAccountPayments(c.Request.Context(), accountID)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.Success(c, gin.H{"list": payments, "total": len(payments)})
		return
	}

	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id or account_id is required")
		return
	}
	page, pageSize := pageParams(c)
	payments, total, err := h.payments.ListUserPayments(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      payments,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ProcessPayment runs screening and settlement synchronously.
// POST /api/v1/payments/:id/process
func (h *Handler) ProcessPayment(c *gin.Context) {
	payment, err := h.payments.ProcessPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// CancelPayment
// POST /api/v1/payments/:id/cancel
func (h *Handler) CancelPayment(c *gin.Context) {
	payment, err := h.payments.CancelPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// RetryPayment
// POST /api/v1/payments/:id/retry
func (h *Handler) RetryPayment(c *gin.Context) {
	payment, err := h.payments.RetryPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// UpdatePaymentStatus is an operator override.
// PUT /api/v1/payments/:id/status
func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	status, err := model.ParsePaymentStatus(req.Status)
	if err != nil {
		response.FromError(c, err)
		return
	}

	payment, err := h.payments.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), status, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payment)
}

// GetBatch
// GET /api/v1/batches/:id
func (h *Handler) GetBatch(c *gin.Context) {
	payments, err := h.payments.ListBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"batch_id": c.Param("id"), "payments": payments})
}

// ProcessBatch
// POST /api/v1/batches/:id/process
func (h *Handler) ProcessBatch(c *gin.Context) {
	result, err := h.payments.ProcessBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}
