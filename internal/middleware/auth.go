package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"campaign-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ключи контекста gin для данных аутентифицированного пользователя.
const (
	userIDKey    = "user_id"
	userRolesKey = "user_roles"
)

// TokenVerifier определяет функцию, которая проверяет строку токена и возвращает claims.
// Ошибки могут быть models.ErrTokenInvalid, models.ErrTokenExpired, models.ErrTokenMalformed и т.д.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

// AuthMiddleware создает gin middleware для проверки JWT.
// Оно извлекает токен, верифицирует его с помощью предоставленного verifier
// и добавляет UserID/Roles в контекст запроса.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeUnauthenticated,
				Message: "Missing token",
			})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Malformed Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeUnauthenticated,
				Message: "Malformed token header",
			})
			return
		}

		claims, err := verifier(c.Request.Context(), parts[1])
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, models.ErrTokenExpired) {
				msg = "Token expired"
			}
			log.Warn("Token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code:    models.ErrCodeUnauthenticated,
				Message: msg,
			})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(userRolesKey, claims.Roles)
		log.Debug("User authorized", zap.String("userID", claims.UserID.String()), zap.Strings("roles", claims.Roles))
		c.Next()
	}
}

// GetAuthContext извлекает личность вызывающего из контекста gin.
// Возвращает ошибку, если запрос прошёл мимо AuthMiddleware.
func GetAuthContext(c *gin.Context) (models.AuthContext, error) {
	userIDVal, ok := c.Get(userIDKey)
	if !ok {
		return models.AuthContext{}, models.ErrUnauthorized
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return models.AuthContext{}, models.ErrUnauthorized
	}

	roles, _ := c.Get(userRolesKey)
	roleList, _ := roles.([]string)

	return models.AuthContext{UserID: userID, Roles: roleList}, nil
}
