package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storyforge-server/internal/models"
)

type storyRequest struct {
	Role               string     `json:"role" binding:"required"`
	Goal               string     `json:"goal" binding:"required"`
	Benefit            string     `json:"benefit" binding:"required"`
	Priority           string     `json:"priority"`
	AcceptanceCriteria []string   `json:"acceptance_criteria"`
	AdditionalNotes    string     `json:"additional_notes"`
	ProjectID          *uuid.UUID `json:"project_id"`
}

func (r *storyRequest) toInputs() models.UserStoryInputs {
	return models.UserStoryInputs{
		Role:               r.Role,
		Goal:               r.Goal,
		Benefit:            r.Benefit,
		Priority:           models.CoercePriority(r.Priority),
		AcceptanceCriteria: r.AcceptanceCriteria,
		AdditionalNotes:    r.AdditionalNotes,
		ProjectID:          r.ProjectID,
	}
}

func (h *Handler) CreateStory(c *gin.Context) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req storyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	story, err := h.storyService.CreateStory(c.Request.Context(), userID, req.toInputs())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *Handler) ListStories(c *gin.Context) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var projectID *uuid.UUID
	if raw := c.Query("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid project_id filter"})
			return
		}
		projectID = &id
	}

	stories, err := h.storyService.ListStories(c.Request.Context(), userID, projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stories)
}

func (h *Handler) GetStory(c *gin.Context) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid story ID"})
		return
	}

	story, err := h.storyService.GetStory(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) UpdateStory(c *gin.Context) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid story ID"})
		return
	}

	var req storyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	story, err := h.storyService.UpdateStory(c.Request.Context(), userID, storyID, req.toInputs())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) DeleteStory(c *gin.Context) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid story ID"})
		return
	}

	// Удаление отсутствующей или чужой истории также отвечает 204.
	if err := h.storyService.DeleteStory(c.Request.Context(), userID, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkGenerateRequest struct {
	Description string     `json:"description" binding:"required"`
	Count       int        `json:"count" binding:"required"`
	ProjectID   *uuid.UUID `json:"project_id"`
}

func (h *Handler) BulkGenerate(c *gin.Context) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req bulkGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	result := h.bulkService.BulkGenerate(c.Request.Context(), userID, req.ProjectID, req.Description, req.Count)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

type suggestRequest struct {
	QuestionID string                 `json:"question_id" binding:"required"`
	Inputs     models.UserStoryInputs `json:"inputs"`
}

func (h *Handler) Suggest(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	result := h.suggestionService.Suggest(c.Request.Context(), req.QuestionID, req.Inputs)
	// Сбой подсказки не фатален: клиент решает, повторить или ввести вручную.
	c.JSON(http.StatusOK, result)
}
