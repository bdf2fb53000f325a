package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyforge-server/internal/models"
)

// AuthMiddleware проверяет Bearer-токен и кладет идентификатор пользователя
// и роли в контекст запроса.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// Для WebSocket-запросов браузер не может выставить заголовок,
			// поэтому допускаем токен в query-параметре.
			authHeader = "Bearer " + c.Query("token")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authorization header is missing or malformed"})
			return
		}

		claims, err := h.authService.VerifyAccessToken(c.Request.Context(), parts[1])
		if err != nil {
			h.logger.Debug("Access token verification failed", zap.Error(err))
			handleServiceError(c, err)
			return
		}

		ctx := context.WithValue(c.Request.Context(), models.UserContextKey, claims.UserID)
		ctx = context.WithValue(ctx, models.RolesContextKey, claims.Roles)
		c.Request = c.Request.WithContext(ctx)
		c.Set("accessUUID", claims.ID)
		c.Next()
	}
}
