// synergy-platform/internal/routes/router.go
package routes

import (
	"synergy-platform/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes инициализирует все маршруты приложения.
func SetupRoutes(r *gin.Engine) {
	// Публичные маршруты: вход и health-чеки.
	RegisterAuthRoutes(r)

	// Все остальное требует валидного токена.
	authRequired := r.Group("/")
	authRequired.Use(middleware.AuthMiddleware())
	{
		RegisterAPIRoutes(authRequired)
	}
}
