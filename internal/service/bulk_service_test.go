package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyforge-server/internal/ai"
	aimocks "storyforge-server/internal/ai/mocks"
	"storyforge-server/internal/models"
	"storyforge-server/internal/service"
	svcmocks "storyforge-server/internal/service/mocks"
)

func newBulkFixture(t *testing.T) (service.BulkService, *aimocks.AIClient, *svcmocks.StoryService) {
	t.Helper()
	client := new(aimocks.AIClient)
	stories := new(svcmocks.StoryService)
	return service.NewBulkService(client, stories, zap.NewNop()), client, stories
}

func bulkResponse(n int) string {
	out := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"role":"role %d","goal":"goal %d","benefit":"benefit %d","priority":"urgent","acceptanceCriteria":["crit"]}`, i, i, i)
	}
	return out + "]"
}

func TestBulkService_CountValidatedBeforeModelCall(t *testing.T) {
	svc, client, _ := newBulkFixture(t)
	userID := uuid.New()

	for _, count := range []int{0, -1, 11, 100} {
		result := svc.BulkGenerate(context.Background(), userID, nil, "a post scheduler", count)
		assert.False(t, result.Success, "count=%d", count)
		assert.Contains(t, result.Error, "count must be between")
	}
	result := svc.BulkGenerate(context.Background(), userID, nil, "   ", 3)
	assert.False(t, result.Success)

	// Без проекта ни одна история не сохранится, поэтому вызов модели не нужен.
	result = svc.BulkGenerate(context.Background(), userID, nil, "a post scheduler", 3)
	assert.False(t, result.Success)
	assert.Equal(t, "project is required", result.Error)

	client.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkService_SavesParsedDrafts(t *testing.T) {
	svc, client, stories := newBulkFixture(t)
	userID := uuid.New()
	projectID := uuid.New()

	// Модель вернула больше, чем просили: лишнее усекается.
	client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("Sure, here you go:\n"+bulkResponse(5), ai.UsageInfo{TotalTokens: 420}, nil)
	stories.On("CreateStory", mock.Anything, userID, mock.Anything).
		Return(&models.UserStory{ID: uuid.New(), UserID: userID, ProjectID: &projectID}, nil)

	result := svc.BulkGenerate(context.Background(), userID, &projectID, "a post scheduler", 3)
	require.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Len(t, result.Stories, 3)

	stories.AssertNumberOfCalls(t, "CreateStory", 3)
	// Нестандартный приоритет модели приводится к значению по умолчанию.
	stories.AssertCalled(t, "CreateStory", mock.Anything, userID, mock.MatchedBy(func(inputs models.UserStoryInputs) bool {
		return inputs.Priority == models.PriorityMedium &&
			inputs.ProjectID != nil && *inputs.ProjectID == projectID
	}))
}

func TestBulkService_ModelFailures(t *testing.T) {
	projectID := uuid.New()

	t.Run("ошибка вызова модели", func(t *testing.T) {
		svc, client, stories := newBulkFixture(t)
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", ai.UsageInfo{}, errors.New("rate limited"))

		result := svc.BulkGenerate(context.Background(), uuid.New(), &projectID, "a post scheduler", 2)
		assert.False(t, result.Success)
		assert.Equal(t, "story generation failed", result.Error)
		stories.AssertNotCalled(t, "CreateStory", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ответ без JSON-массива", func(t *testing.T) {
		svc, client, stories := newBulkFixture(t)
		client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("I cannot help with that.", ai.UsageInfo{}, nil)

		result := svc.BulkGenerate(context.Background(), uuid.New(), &projectID, "a post scheduler", 2)
		assert.False(t, result.Success)
		assert.Equal(t, "model response could not be parsed", result.Error)
		stories.AssertNotCalled(t, "CreateStory", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBulkService_PartialSave(t *testing.T) {
	svc, client, stories := newBulkFixture(t)
	userID := uuid.New()
	projectID := uuid.New()

	client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(bulkResponse(2), ai.UsageInfo{}, nil)
	stories.On("CreateStory", mock.Anything, userID, mock.MatchedBy(func(inputs models.UserStoryInputs) bool {
		return inputs.Role == "role 0"
	})).Return(&models.UserStory{ID: uuid.New(), UserID: userID}, nil)
	stories.On("CreateStory", mock.Anything, userID, mock.MatchedBy(func(inputs models.UserStoryInputs) bool {
		return inputs.Role == "role 1"
	})).Return(nil, errors.New("insert failed"))

	result := svc.BulkGenerate(context.Background(), userID, &projectID, "a post scheduler", 2)
	assert.True(t, result.Success)
	assert.Len(t, result.Stories, 1)
	assert.Equal(t, "saved 1 of 2 stories", result.Error)
}

func TestBulkService_NothingSaved(t *testing.T) {
	svc, client, stories := newBulkFixture(t)
	userID := uuid.New()
	projectID := uuid.New()

	client.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(bulkResponse(2), ai.UsageInfo{}, nil)
	stories.On("CreateStory", mock.Anything, userID, mock.Anything).
		Return(nil, errors.New("insert failed"))

	result := svc.BulkGenerate(context.Background(), userID, &projectID, "a post scheduler", 2)
	assert.False(t, result.Success)
	assert.Equal(t, "no stories could be saved", result.Error)
	assert.Empty(t, result.Stories)
}
