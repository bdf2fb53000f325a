package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storyforge-server/internal/models"
)

// handleServiceError переводит доменные ошибки в HTTP-статусы.
// Внутренние детали наружу не отдаются.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var message string

	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		statusCode = http.StatusUnauthorized
		message = "Invalid username or password"
	case errors.Is(err, models.ErrUserAlreadyExists):
		statusCode = http.StatusConflict
		message = "Username already exists"
	case errors.Is(err, models.ErrEmailAlreadyExists):
		statusCode = http.StatusConflict
		message = "Email already exists"
	case errors.Is(err, models.ErrTokenInvalid):
		statusCode = http.StatusUnauthorized
		message = "Token is invalid or malformed"
	case errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		message = "Token has expired"
	case errors.Is(err, models.ErrTokenNotFound):
		statusCode = http.StatusUnauthorized
		message = "Provided token is invalid (possibly revoked or expired)"
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		message = "Unauthorized"
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
		message = "Forbidden"
	case errors.Is(err, models.ErrProjectNotFound):
		statusCode = http.StatusNotFound
		message = "Project not found"
	case errors.Is(err, models.ErrStoryNotFound):
		statusCode = http.StatusNotFound
		message = "Story not found"
	case errors.Is(err, models.ErrPostNotFound):
		statusCode = http.StatusNotFound
		message = "Post not found"
	case errors.Is(err, models.ErrSessionNotFound):
		statusCode = http.StatusNotFound
		message = "Flow session not found"
	case errors.Is(err, models.ErrUserNotFound), errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case errors.Is(err, models.ErrGenerationInProgress):
		statusCode = http.StatusConflict
		message = "Generation is already in progress"
	case errors.Is(err, models.ErrStepIncomplete):
		statusCode = http.StatusUnprocessableEntity
		message = "Current step is not answered"
	case errors.Is(err, models.ErrProjectRequired):
		statusCode = http.StatusUnprocessableEntity
		message = "A project must be selected before generating"
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrBadRequest):
		statusCode = http.StatusBadRequest
		message = "Invalid request data"
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal error occurred"
	}

	c.AbortWithStatusJSON(statusCode, models.ErrorResponse{Error: message})
}
