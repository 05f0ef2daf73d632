// synergy-platform/internal/routes/api_routes.go
package routes

import (
	"synergy-platform/internal/handlers"
	"synergy-platform/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes регистрирует все маршруты API, требующие аутентификации.
func RegisterAPIRoutes(api *gin.RouterGroup) {
	api.GET("/users/me", handlers.MeHandler)

	apiGroup := api.Group("/api")
	{
		// --- МЕНЕДЖЕР ---
		manager := apiGroup.Group("/manager")
		{
			manager.GET("/doctors", handlers.ListManagerDoctorsHandler)
			manager.POST("/verify", handlers.VerifyPaymentHandler)
		}

		// --- АДМИНИСТРАТОР ---
		admin := apiGroup.Group("/admin")
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("/upload-plan", handlers.UploadPlanHandler)
			admin.GET("/stats", handlers.StatsHandler)
			admin.GET("/data", handlers.AdminDataHandler)
			admin.GET("/leaderboard", handlers.LeaderboardHandler)
			admin.PUT("/update-payment/:id", handlers.UpdatePaymentHandler)
			admin.GET("/users", handlers.ListUsersHandler)
			admin.POST("/users", handlers.CreateUserHandler)
			admin.GET("/export", handlers.ExportPlanHandler)
			admin.GET("/ws", handlers.DashboardWSHandler)
		}
	}
}
