package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storyforge-server/internal/models"
)

type contactFormRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type supportRequest struct {
	Topic   string `json:"topic" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (h *Handler) SubmitContactForm(c *gin.Context) {
	var req contactFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	queued, err := h.contactService.SubmitContactForm(c.Request.Context(), req.Name, req.Email, req.Message)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	// Письмо best-effort: при сбое публикации обращение принято, но клиент
	// видит queued=false.
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

func (h *Handler) SubmitSupportRequest(c *gin.Context) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req supportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	queued, err := h.contactService.SubmitSupportRequest(c.Request.Context(), user, req.Topic, req.Message)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}
