package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/apierror"

	"github.com/gin-gonic/gin"
)

// APIKeyAuth guards the local API with the shared key the UI process is
// provisioned with. Same header discipline as the remote server contract.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-API-Key")
		if provided == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("API key invalida"))
			return
		}
		c.Next()
	}
}
