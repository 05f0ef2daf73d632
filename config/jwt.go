// synergy-platform/config/jwt.go
package config

import (
	"log/slog"
	"os"
)

var JwtKey []byte

// InitJWT читает секрет подписи токенов. Без секрета приложение не стартует:
// молчаливый дефолт здесь опаснее падения.
func InitJWT() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("Критическая ошибка: переменная окружения JWT_SECRET не установлена.")
		os.Exit(1)
	}
	JwtKey = []byte(secret)
}
