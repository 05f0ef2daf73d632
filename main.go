// synergy-platform/main.go
package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"synergy-platform/config"
	"synergy-platform/internal/handlers"
	"synergy-platform/internal/reconcile"
	"synergy-platform/internal/routes"
	"synergy-platform/internal/storage"
	"synergy-platform/internal/verify"
	"synergy-platform/models"
)

func main() {
	// .env удобен в разработке; в проде переменные приходят из окружения.
	if err := godotenv.Load(); err != nil {
		slog.Info("Файл .env не найден, используются переменные окружения")
	}

	config.InitJWT()
	config.ConnectDB()
	config.ConnectRedis()

	if err := config.DB.AutoMigrate(&models.User{}, &models.TargetRecord{}, &models.Payment{}); err != nil {
		slog.Error("Ошибка миграции схемы", "error", err)
		os.Exit(1)
	}

	// Gemini не критичен для старта: без ключа верификация будет отклонять
	// чеки с просьбой повторить позже, остальное API работает.
	if err := config.InitGoogleServices(); err != nil {
		slog.Warn("Gemini недоступен, верификация чеков будет отклоняться", "error", err)
	}

	store := reconcile.NewStore(&storage.GormPersister{DB: config.DB})
	if err := storage.Hydrate(config.DB, store); err != nil {
		slog.Error("Ошибка загрузки плана из БД", "error", err)
		os.Exit(1)
	}

	uploadsDir := os.Getenv("UPLOADS_DIR")
	if uploadsDir == "" {
		uploadsDir = "./uploads"
	}
	evidence := &verify.FSEvidenceStore{BaseDir: uploadsDir}
	extractor := &verify.GeminiExtractor{Model: config.GeminiClient}
	workflow := verify.NewWorkflow(store, extractor, evidence, 0)

	hub := handlers.NewHub()
	go hub.Run()

	handlers.Init(store, workflow, evidence, hub)

	r := gin.Default()
	r.Static("/static", uploadsDir)
	routes.SetupRoutes(r)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8000"
	}
	slog.Info("Synergy Platform API запускается", "addr", addr)
	if err := r.Run(addr); err != nil {
		slog.Error("Сервер остановился с ошибкой", "error", err)
		os.Exit(1)
	}
}
