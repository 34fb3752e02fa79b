package handler

import (
	"errors"
	"io"

	"paycore/internal/model"
	"paycore/internal/service"
	"paycore/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OpenAccount
// POST /api/v1/accounts
func (h *Handler) OpenAccount(c *gin.Context) {
	var req service.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	account, err := h.ledger.OpenAccount(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, account)
}

// GetAccount
// GET /api/v1/accounts/:id
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.ledger.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, account)
}

// ListAccounts looks an account up by number or lists a user's accounts.
// GET /api/v1/accounts?number=xxx
// GET /api/v1/accounts?user_id=xxx
func (h *Handler) ListAccounts(c *gin.Context) {
	if number := c.Query("number"); number != "" {
		account, err := h.ledger.GetAccountByNumber(c.Request.Context(), number)
		if err != nil {
			response.FromError(c, err)
			return
		}
		response.Success(c, account)
		return
	}

	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id or number is required")
		return
	}
	accounts, err := h.ledger.ListUserAccounts(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"list": accounts, "total": len(accounts)})
}

// ListTransactions
// GET /api/v1/accounts/:id/transactions?page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	page, pageSize := pageParams(c)
	entries, total, err := h.ledger.ListTransactions(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

type postingRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
}

// Debit
// POST /api/v1/accounts/:id/debit
func (h *Handler) Debit(c *gin.Context) {
	var req postingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	entry, err := h.ledger.Debit(c.Request.Context(), c.Param("id"), req.Amount, req.Description, req.Reference)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entry)
}

// Credit
// POST /api/v1/accounts/:id/credit
func (h *Handler) Credit(c *gin.Context) {
	var req postingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	entry, err := h.ledger.Credit(c.Request.Context(), c.Param("id"), req.Amount, req.Description, req.Reference)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entry)
}

// Reserve
// POST /api/v1/accounts/:id/reserve
func (h *Handler) Reserve(c *gin.Context) {
	var req postingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	entry, err := h.ledger.Reserve(c.Request.Context(), c.Param("id"), req.Amount, req.Reference)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entry)
}

// ReleaseReservation
// POST /api/v1/accounts/:id/release
func (h *Handler) ReleaseReservation(c *gin.Context) {
	var req postingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	entry, err := h.ledger.ReleaseReservation(c.Request.Context(), c.Param("id"), req.Amount, req.Reference)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entry)
}

// ApplyInterest
// POST /api/v1/accounts/:id/interest
func (h *Handler) ApplyInterest(c *gin.Context) {
	entry, err := h.ledger.ApplyInterest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"applied": entry != nil, "transaction": entry})
}

// CloseAccount
// POST /api/v1/accounts/:id/close
func (h *Handler) CloseAccount(c *gin.Context) {
	if err := h.ledger.Close(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"status": model.AccountStatusClosed})
}

// UpdateAccountStatus
// PUT /api/v1/accounts/:id/status
func (h *Handler) UpdateAccountStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	status, err := model.ParseAccountStatus(req.Status)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.ledger.UpdateStatus(c.Request.Context(), c.Param("id"), status); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"status": status})
}

// UpdateAccountLimits
// PUT /api/v1/accounts/:id/limits
func (h *Handler) UpdateAccountLimits(c *gin.Context) {
	var req struct {
		DailyLimit   decimal.Decimal `json:"daily_limit"`
		MonthlyLimit decimal.Decimal `json:"monthly_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	if err := h.ledger.UpdateLimits(c.Request.Context(), c.Param("id"), req.DailyLimit, req.MonthlyLimit); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"daily_limit":   req.DailyLimit,
		"monthly_limit": req.MonthlyLimit,
	})
}

// GetTransaction
// GET /api/v1/transactions/:no
func (h *Handler) GetTransaction(c *gin.Context) {
	entry, err := h.ledger.GetTransaction(c.Request.Context(), c.Param("no"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entry)
}

// ReverseTransaction
// POST /api/v1/transactions/:no/reverse
func (h *Handler) ReverseTransaction(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	entry, err := h.ledger.ReverseTransaction(c.Request.Context(), c.Param("no"), req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entry)
}
