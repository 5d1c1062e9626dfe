package delivery

import (
	"errors"
	"net/http"
	"strconv"

	authdelivery "github.com/vynious/finOS/internal/auth/delivery"
	"github.com/vynious/finOS/internal/receipt/repository"
	"github.com/vynious/finOS/internal/receipt/usecase"

	"github.com/gin-gonic/gin"
)

type ReceiptHandler struct {
	receiptUsecase usecase.ReceiptUsecase
}

func NewReceiptHandler(receiptUsecase usecase.ReceiptUsecase) *ReceiptHandler {
	return &ReceiptHandler{receiptUsecase: receiptUsecase}
}

type updateCategoriesRequest struct {
	Categories []string `json:"categories"`
}

// GetReceipts lists the caller's receipts, optionally for ?year=&month=
func (h *ReceiptHandler) GetReceipts(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	year, errY := queryInt(c, "year")
	month, errM := queryInt(c, "month")
	if errY != nil || errM != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year and month must be integers"})
		return
	}

	receipts, err := h.receiptUsecase.List(c.Request.Context(), user.Email, year, month)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidPeriod) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipts": receipts, "count": len(receipts)})
}

// UpdateCategories replaces the categories on the receipts of one message
func (h *ReceiptHandler) UpdateCategories(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Categories == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "categories is required"})
		return
	}

	categories, err := h.receiptUsecase.UpdateCategories(c.Request.Context(), user.Email, c.Param("messageId"), req.Categories)
	if err != nil {
		if errors.Is(err, repository.ErrReceiptNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, usecase.ErrTooManyCategories) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update categories"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message_id": c.Param("messageId"), "categories": categories})
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
