package delivery

import (
	"context"
	"errors"
	"net/http"

	authdelivery "github.com/vynious/finOS/internal/auth/delivery"
	"github.com/vynious/finOS/internal/ingestor/usecase"
	receiptdomain "github.com/vynious/finOS/internal/receipt/domain"

	"github.com/gin-gonic/gin"
)

// UserSyncer runs an on-demand sync for one user
type UserSyncer interface {
	SyncUser(ctx context.Context, email, trigger string) ([]*receiptdomain.Receipt, error)
}

type IngestorHandler struct {
	syncer UserSyncer
}

func NewIngestorHandler(syncer UserSyncer) *IngestorHandler {
	return &IngestorHandler{syncer: syncer}
}

// SyncNow syncs the caller's mailbox and returns the receipts it produced
func (h *IngestorHandler) SyncNow(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	receipts, err := h.syncer.SyncUser(c.Request.Context(), user.Email, usecase.TriggerOnDemand)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, usecase.ErrUserInactive):
			c.JSON(http.StatusConflict, gin.H{"error": "user is not active"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipts": receipts, "count": len(receipts)})
}
