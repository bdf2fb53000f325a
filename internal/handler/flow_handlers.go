package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storyforge-server/internal/models"
	"storyforge-server/internal/service"
)

type startFlowRequest struct {
	ProjectID *uuid.UUID `json:"project_id"`
}

type flowAnswerRequest struct {
	Text  string   `json:"text"`
	Items []string `json:"items"`
}

type resetFlowRequest struct {
	KeepProject bool `json:"keep_project"`
}

func (h *Handler) StartFlowSession(c *gin.Context) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req startFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	snap, err := h.flowService.StartSession(c.Request.Context(), userID, req.ProjectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *Handler) GetFlowState(c *gin.Context) {
	userID, sessionID, ok := h.flowIdentity(c)
	if !ok {
		return
	}

	snap, err := h.flowService.GetState(userID, sessionID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) SubmitFlowAnswer(c *gin.Context) {
	userID, sessionID, ok := h.flowIdentity(c)
	if !ok {
		return
	}

	var req flowAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	snap, err := h.flowService.SubmitAnswer(c.Request.Context(), userID, sessionID, service.StepAnswer{
		Text:  req.Text,
		Items: req.Items,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) FlowBack(c *gin.Context) {
	userID, sessionID, ok := h.flowIdentity(c)
	if !ok {
		return
	}

	snap, err := h.flowService.Back(userID, sessionID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) CancelFlow(c *gin.Context) {
	userID, sessionID, ok := h.flowIdentity(c)
	if !ok {
		return
	}

	snap, err := h.flowService.Cancel(userID, sessionID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) ResetFlow(c *gin.Context) {
	userID, sessionID, ok := h.flowIdentity(c)
	if !ok {
		return
	}

	var req resetFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	snap, err := h.flowService.Reset(userID, sessionID, req.KeepProject)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) DestroyFlowSession(c *gin.Context) {
	userID, sessionID, ok := h.flowIdentity(c)
	if !ok {
		return
	}

	if err := h.flowService.DestroySession(userID, sessionID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// flowIdentity извлекает пользователя и ID сессии; при ошибке сам пишет ответ.
func (h *Handler) flowIdentity(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid session ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, sessionID, true
}
