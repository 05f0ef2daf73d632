// synergy-platform/internal/handlers/health_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"synergy-platform/config"
)

// RootHandler — GET /: короткий health-чек.
func RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"app":     "Synergy Platform API",
		"version": "1.0.0",
	})
}

// HealthHandler — GET /health: статус зависимостей.
func HealthHandler(c *gin.Context) {
	dbStatus := "connected"
	if config.DB == nil {
		dbStatus = "disconnected"
	} else if sqlDB, err := config.DB.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "unreachable"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"database":          dbStatus,
		"redis":             config.RDB != nil,
		"gemini_configured": config.GeminiClient != nil,
	})
}
