package handler

import (
	"strconv"

	"paycore/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler exposes the ledger, the payment orchestrator and the outbox
// admin over HTTP.
type Handler struct {
	ledger   *service.LedgerService
	payments *service.PaymentService
	outbox   *service.OutboxService
}

// NewHandler bundles the services the HTTP routes call into.
func NewHandler(ledger *service.LedgerService, payments *service.PaymentService, outbox *service.OutboxService) *Handler {
	return &Handler{
		ledger:   ledger,
		payments: payments,
		outbox:   outbox,
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
