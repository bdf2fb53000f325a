package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storyforge-server/internal/ai"
	"storyforge-server/internal/models"
)

// Бюджеты токенов: короткая подсказка для одного поля и развернутый текст.
const (
	suggestionMaxTokens = 150
	longFormMaxTokens   = 1500
)

const suggestionSystemPrompt = "You are an assistant helping a product team write user stories. " +
	"Answer with the suggested value only, without quotes, preamble or explanations."

// SuggestionResult - результат подсказки. Сбой никогда не фатален для
// вызывающего: флоу сохраняет текущий черновик, пользователь может
// повторить запрос или ввести значение вручную.
type SuggestionResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SuggestionService генерирует LLM-подсказки для отдельных полей мастера.
// Повторов на этом уровне нет: повторить - забота вызывающего.
type SuggestionService interface {
	Suggest(ctx context.Context, questionID string, inputs models.UserStoryInputs) SuggestionResult
}

type suggestionServiceImpl struct {
	client ai.Client
	logger *zap.Logger
}

var _ SuggestionService = (*suggestionServiceImpl)(nil)

func NewSuggestionService(client ai.Client, logger *zap.Logger) SuggestionService {
	return &suggestionServiceImpl{
		client: client,
		logger: logger.Named("SuggestionService"),
	}
}

func (s *suggestionServiceImpl) Suggest(ctx context.Context, questionID string, inputs models.UserStoryInputs) SuggestionResult {
	prompt, ok := buildSuggestionPrompt(questionID, inputs)
	if !ok {
		return SuggestionResult{Success: false, Error: fmt.Sprintf("unknown question: %s", questionID)}
	}

	text, usage, err := s.client.GenerateText(ctx, suggestionSystemPrompt, prompt, suggestionMaxTokens)
	if err != nil {
		s.logger.Warn("Подсказка не сгенерирована",
			zap.String("questionID", questionID),
			zap.Error(err),
		)
		return SuggestionResult{Success: false, Error: "suggestion generation failed"}
	}

	s.logger.Debug("Подсказка сгенерирована",
		zap.String("questionID", questionID),
		zap.Int("totalTokens", usage.TotalTokens),
	)
	return SuggestionResult{Success: true, Text: strings.TrimSpace(text)}
}

// buildSuggestionPrompt строит промпт с учетом уже заполненных полей,
// чтобы подсказка была согласована с предыдущими ответами.
func buildSuggestionPrompt(questionID string, inputs models.UserStoryInputs) (string, bool) {
	var b strings.Builder
	writeContext := func() {
		if inputs.Role != "" {
			fmt.Fprintf(&b, "The user role is: %s. ", inputs.Role)
		}
		if inputs.Goal != "" {
			fmt.Fprintf(&b, "Their goal is: %s. ", inputs.Goal)
		}
		if inputs.Benefit != "" {
			fmt.Fprintf(&b, "The benefit is: %s. ", inputs.Benefit)
		}
	}

	switch questionID {
	case "role":
		b.WriteString("Suggest a realistic user role for a software user story, e.g. a job title or persona. ")
	case "goal":
		writeContext()
		b.WriteString("Suggest what this user wants to accomplish, phrased as a verb phrase. ")
	case "benefit":
		writeContext()
		b.WriteString("Suggest why the user wants this, phrased as the resulting benefit. ")
	case "acceptanceCriteria":
		writeContext()
		b.WriteString("Suggest one concrete, testable acceptance criterion for this story. ")
	case "additionalNotes":
		writeContext()
		b.WriteString("Suggest a short note with relevant context, constraints or priority hints. ")
	default:
		return "", false
	}
	return b.String(), true
}
