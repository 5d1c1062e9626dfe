package delivery

import (
	"net/http"

	authdelivery "github.com/vynious/finOS/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me returns the authenticated user
func (h *UserHandler) Me(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":        user.Email,
		"display_name": user.DisplayName,
		"active":       user.Active,
		"last_synced":  user.LastSynced,
	})
}
