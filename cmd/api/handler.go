package api

import (
	"net/http"
	"time"

	authUsecase "github.com/vynious/finOS/internal/auth/usecase"
	ingestorDelivery "github.com/vynious/finOS/internal/ingestor/delivery"
	receiptDelivery "github.com/vynious/finOS/internal/receipt/delivery"
	userDelivery "github.com/vynious/finOS/internal/user/delivery"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	authUsecase     authUsecase.AuthUsecase
	ingestorHandler *ingestorDelivery.IngestorHandler
	receiptHandler  *receiptDelivery.ReceiptHandler
	userHandler     *userDelivery.UserHandler
	logger          *zap.Logger
}

func NewHandler(authUc authUsecase.AuthUsecase, syncer ingestorDelivery.UserSyncer, receiptHandler *receiptDelivery.ReceiptHandler, logger *zap.Logger) *Handler {
	return &Handler{
		authUsecase:     authUc,
		ingestorHandler: ingestorDelivery.NewIngestorHandler(syncer),
		receiptHandler:  receiptHandler,
		userHandler:     userDelivery.NewUserHandler(),
		logger:          logger.Named("http"),
	}
}

// Router builds the gin engine with middleware and routes
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.ingestorHandler, h.receiptHandler, h.userHandler)
	return r
}

// Server returns an http.Server for addr; the caller owns its lifecycle
func (h *Handler) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.URL.Path == "/metrics" {
			return
		}
		h.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
