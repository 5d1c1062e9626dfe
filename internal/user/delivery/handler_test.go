package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	userdomain "github.com/vynious/finOS/internal/user/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	synced := int64(1750000000000)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user", &userdomain.User{Email: "alice@example.com", DisplayName: "Alice", Active: true, LastSynced: &synced, LinkedAccountID: "g-1"})
	})
	r.GET("/me", NewUserHandler().Me)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, "Alice", body["display_name"])
	assert.Equal(t, true, body["active"])
	assert.Equal(t, float64(synced), body["last_synced"])
	assert.NotContains(t, body, "linked_account_id")
}

func TestMeUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", NewUserHandler().Me)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
