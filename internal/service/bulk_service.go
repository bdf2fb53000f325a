package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge-server/internal/ai"
	"storyforge-server/internal/models"
)

// Границы пакетной генерации. Проверяются до обращения к модели.
const (
	BulkMinCount = 1
	BulkMaxCount = 10
)

const bulkSystemPrompt = "You are an assistant helping a product team write user stories. " +
	"Respond with a JSON array only, no markdown fences, no commentary. " +
	"Each element must be an object with fields: role, goal, benefit, " +
	"priority (High, Medium or Low), acceptanceCriteria (array of strings), " +
	"additionalNotes (string)."

// BulkResult - итог пакетной генерации. Частичный успех допустим:
// Stories содержит сохраненные истории, Error описывает причину, если
// сохранить удалось не все.
type BulkResult struct {
	Success bool               `json:"success"`
	Stories []models.UserStory `json:"stories"`
	Error   string             `json:"error,omitempty"`
}

// BulkService генерирует несколько историй по описанию фичи за один запрос.
type BulkService interface {
	BulkGenerate(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, description string, count int) BulkResult
}

type bulkServiceImpl struct {
	client  ai.Client
	stories StoryService
	logger  *zap.Logger
}

var _ BulkService = (*bulkServiceImpl)(nil)

func NewBulkService(client ai.Client, stories StoryService, logger *zap.Logger) BulkService {
	return &bulkServiceImpl{
		client:  client,
		stories: stories,
		logger:  logger.Named("BulkService"),
	}
}

func (s *bulkServiceImpl) BulkGenerate(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, description string, count int) BulkResult {
	description = strings.TrimSpace(description)
	if description == "" {
		return BulkResult{Success: false, Error: "feature description is required"}
	}
	if count < BulkMinCount || count > BulkMaxCount {
		return BulkResult{Success: false, Error: fmt.Sprintf("count must be between %d and %d", BulkMinCount, BulkMaxCount)}
	}
	if projectID == nil {
		return BulkResult{Success: false, Error: "project is required"}
	}

	prompt := fmt.Sprintf("Generate exactly %d user stories for the following feature description:\n\n%s", count, description)
	text, usage, err := s.client.GenerateText(ctx, bulkSystemPrompt, prompt, longFormMaxTokens)
	if err != nil {
		s.logger.Warn("Пакетная генерация не удалась", zap.Error(err))
		return BulkResult{Success: false, Error: "story generation failed"}
	}

	drafts, err := ai.ParseStoryDrafts(text, count)
	if err != nil {
		s.logger.Warn("Ответ модели не содержит валидного JSON-массива",
			zap.Error(err),
			zap.Int("responseLen", len(text)),
		)
		return BulkResult{Success: false, Error: "model response could not be parsed"}
	}

	s.logger.Info("Черновики распарсены",
		zap.Int("requested", count),
		zap.Int("parsed", len(drafts)),
		zap.Int("totalTokens", usage.TotalTokens),
	)

	saved := make([]models.UserStory, 0, len(drafts))
	var firstErr error
	for _, draft := range drafts {
		inputs := models.UserStoryInputs{
			Role:               draft.Role,
			Goal:               draft.Goal,
			Benefit:            draft.Benefit,
			Priority:           models.CoercePriority(draft.Priority),
			AcceptanceCriteria: draft.AcceptanceCriteria,
			AdditionalNotes:    draft.AdditionalNotes,
			ProjectID:          projectID,
		}
		story, err := s.stories.CreateStory(ctx, userID, inputs)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("Черновик не сохранен", zap.Error(err))
			continue
		}
		saved = append(saved, *story)
	}

	if len(saved) == 0 {
		return BulkResult{Success: false, Error: "no stories could be saved"}
	}
	result := BulkResult{Success: true, Stories: saved}
	if firstErr != nil {
		result.Error = fmt.Sprintf("saved %d of %d stories", len(saved), len(drafts))
	}
	return result
}
