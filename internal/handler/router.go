package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter registers the API routes plus /health and /metrics.
func SetupRouter(h *Handler, gatherer prometheus.Gatherer, mode string) *gin.Engine {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		accounts := api.Group("/accounts")
		{
			accounts.POST("", h.OpenAccount)
			accounts.GET("", h.ListAccounts)
			accounts.GET("/:id", h.GetAccount)
			accounts.GET("/:id/transactions", h.ListTransactions)
			accounts.POST("/:id/debit", h.Debit)
			accounts.POST("/:id/credit", h.Credit)
			accounts.POST("/:id/reserve", h.Reserve)
			accounts.POST("/:id/release", h.ReleaseReservation)
			accounts.POST("/:id/interest", h.ApplyInterest)
			accounts.POST("/:id/close", h.CloseAccount)
			accounts.PUT("/:id/status", h.UpdateAccountStatus)
			accounts.PUT("/:id/limits", h.UpdateAccountLimits)
		}

		payments := api.Group("/payments")
		{
			payments.POST("", h.CreatePayment)
			payments.GET("", h.ListPayments)
			payments.POST("/batch", h.CreateBatchPayments)
			payments.GET("/:id", h.GetPayment)
			payments.POST("/:id/process", h.ProcessPayment)
			payments.POST("/:id/cancel", h.CancelPayment)
			payments.POST("/:id/retry", h.RetryPayment)
			payments.PUT("/:id/status", h.UpdatePaymentStatus)
		}

		transactions := api.Group("/transactions")
		{
			transactions.GET("/:no", h.GetTransaction)
			transactions.POST("/:no/reverse", h.ReverseTransaction)
		}

		batches := api.Group("/batches")
		{
			batches.GET("/:id", h.GetBatch)
			batches.POST("/:id/process", h.ProcessBatch)
		}

		outbox := api.Group("/outbox")
		{
			outbox.GET("/stats", h.OutboxStats)
			outbox.GET("/failed", h.ListFailedMessages)
			outbox.POST("/:id/requeue", h.RequeueMessage)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}
