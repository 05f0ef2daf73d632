// synergy-platform/internal/routes/auth_routes.go
package routes

import (
	"synergy-platform/internal/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes регистрирует маршруты, не требующие аутентификации.
func RegisterAuthRoutes(r *gin.Engine) {
	r.POST("/token", handlers.LoginHandler)
	r.GET("/", handlers.RootHandler)
	r.GET("/health", handlers.HealthHandler)
}
