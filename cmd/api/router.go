package api

import (
	"net/http"

	"github.com/vynious/finOS/internal/auth/delivery"
	authUsecase "github.com/vynious/finOS/internal/auth/usecase"
	ingestorDelivery "github.com/vynious/finOS/internal/ingestor/delivery"
	receiptDelivery "github.com/vynious/finOS/internal/receipt/delivery"
	userDelivery "github.com/vynious/finOS/internal/user/delivery"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, ingestorHandler *ingestorDelivery.IngestorHandler, receiptHandler *receiptDelivery.ReceiptHandler, userHandler *userDelivery.UserHandler) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		users := api.Group("/users")
		users.Use(delivery.AuthMiddleware(authUsecase))
		{
			users.GET("/me", userHandler.Me)
		}

		ingestor := api.Group("/ingestor")
		ingestor.Use(delivery.AuthMiddleware(authUsecase))
		{
			ingestor.POST("/sync", ingestorHandler.SyncNow)
		}

		receipts := api.Group("/receipts")
		receipts.Use(delivery.AuthMiddleware(authUsecase))
		{
			receipts.GET("", receiptHandler.GetReceipts)
			receipts.PATCH("/:messageId/categories", receiptHandler.UpdateCategories)
		}
	}
}
