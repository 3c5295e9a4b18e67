package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/infra"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/remote"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks the local store and remote reachability; the terminal is healthy
// as long as its own store works, offline is not an error state.
func Health(db *gorm.DB, api remote.Client, cb *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		status := http.StatusOK
		if dbStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":      status == http.StatusOK,
			"db":      dbStatus,
			"online":  api.CheckConnectivity(ctx),
			"breaker": cb.State().String(),
		})
	}
}
