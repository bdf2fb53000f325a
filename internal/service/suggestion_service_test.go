package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"storyforge-server/internal/ai"
	aimocks "storyforge-server/internal/ai/mocks"
	"storyforge-server/internal/models"
	"storyforge-server/internal/service"
)

func TestSuggestionService_Suggest(t *testing.T) {
	t.Run("подсказка учитывает заполненные поля", func(t *testing.T) {
		client := new(aimocks.AIClient)
		svc := service.NewSuggestionService(client, zap.NewNop())

		client.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "a marketing manager")
		}), 150).Return("  schedule posts for the week ahead\n", ai.UsageInfo{TotalTokens: 42}, nil)

		result := svc.Suggest(context.Background(), "goal", models.UserStoryInputs{Role: "a marketing manager"})
		assert.True(t, result.Success)
		// Ответ модели отдается без обрамляющих пробелов.
		assert.Equal(t, "schedule posts for the week ahead", result.Text)
		assert.Empty(t, result.Error)
	})

	t.Run("неизвестный вопрос не доходит до модели", func(t *testing.T) {
		client := new(aimocks.AIClient)
		svc := service.NewSuggestionService(client, zap.NewNop())

		result := svc.Suggest(context.Background(), "storyPoints", models.UserStoryInputs{})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "unknown question")
		client.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("сбой модели не фатален", func(t *testing.T) {
		client := new(aimocks.AIClient)
		svc := service.NewSuggestionService(client, zap.NewNop())
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", ai.UsageInfo{}, errors.New("timeout"))

		result := svc.Suggest(context.Background(), "role", models.UserStoryInputs{})
		assert.False(t, result.Success)
		assert.Equal(t, "suggestion generation failed", result.Error)
		assert.Empty(t, result.Text)
	})
}
