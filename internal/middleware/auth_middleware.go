// synergy-platform/internal/middleware/auth_middleware.go
package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"synergy-platform/config"
	"synergy-platform/internal/reconcile"
	"synergy-platform/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const actorCacheTTL = 30 * time.Minute

// AuthMiddleware проверяет JWT и кладет в контекст ActorContext —
// неизменяемый снимок роли/компании/региона/кода доступа на время сессии.
// Контекст актора кэшируется в Redis, чтобы не ходить в БД на каждый запрос.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := tokenFromRequest(c)
		if tokenStr == "" {
			handleAuthError(c, "Authorization token not provided")
			return
		}

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return config.JwtKey, nil
		})
		if err != nil || !token.Valid {
			handleAuthError(c, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			handleAuthError(c, "Invalid token claims")
			return
		}
		userIDFloat, ok := claims["user_id"].(float64)
		if !ok {
			handleAuthError(c, "Invalid user ID format in token")
			return
		}
		userID := uint(userIDFloat)

		cacheKey := fmt.Sprintf("actor:%d", userID)
		if config.RDB != nil {
			cached, err := config.RDB.Get(config.Ctx, cacheKey).Result()
			if err == nil {
				var actor reconcile.ActorContext
				if json.Unmarshal([]byte(cached), &actor) == nil {
					setActorAndProceed(c, actor)
					return
				}
				slog.Warn("Не удалось разобрать кэш актора", "user_id", userID)
			} else if err != redis.Nil {
				slog.Error("Redis GET command failed", "error", err, "user_id", userID)
			}
		}

		var dbUser models.User
		if err := config.DB.First(&dbUser, userID).Error; err != nil {
			handleAuthError(c, "User from token not found in DB")
			return
		}

		actor := reconcile.ActorContext{
			UserID:      dbUser.ID,
			Role:        dbUser.Role,
			Company:     dbUser.Company,
			Region:      dbUser.Region,
			GroupAccess: dbUser.GroupAccess,
		}

		if config.RDB != nil {
			if data, err := json.Marshal(actor); err == nil {
				if err := config.RDB.Set(config.Ctx, cacheKey, data, actorCacheTTL).Err(); err != nil {
					slog.Error("Redis SET command failed", "error", err, "user_id", userID)
				}
			}
		}

		setActorAndProceed(c, actor)
	}
}

// AdminMiddleware пускает дальше только админскую сессию. Ставится после
// AuthMiddleware. Граница данных при этом остается в движке: маршрутизатор
// лишь первая линия.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || !actor.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// ActorFrom достает ActorContext, положенный AuthMiddleware.
func ActorFrom(c *gin.Context) (reconcile.ActorContext, bool) {
	v, ok := c.Get("actor")
	if !ok {
		return reconcile.ActorContext{}, false
	}
	actor, ok := v.(reconcile.ActorContext)
	return actor, ok
}

// InvalidateActorCache сбрасывает кэш актора (при изменении пользователя).
func InvalidateActorCache(userID uint) {
	if config.RDB == nil {
		return
	}
	if err := config.RDB.Del(config.Ctx, fmt.Sprintf("actor:%d", userID)).Err(); err != nil {
		slog.Error("Redis DEL command failed", "error", err, "user_id", userID)
	}
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie("auth_token"); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func setActorAndProceed(c *gin.Context, actor reconcile.ActorContext) {
	c.Set("actor", actor)
	c.Set("user_id", actor.UserID)
	c.Next()
}

func handleAuthError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
