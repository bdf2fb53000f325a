package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyforge-server/internal/events"
	"storyforge-server/internal/models"
	"storyforge-server/internal/service"
	"storyforge-server/internal/service/mocks"
)

// testPolicy - быстрые таймауты, чтобы асинхронные ветки укладывались в тест.
func testPolicy() service.FlowPolicy {
	return service.FlowPolicy{
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
		GenerateTimeout: 250 * time.Millisecond,
		SafetyTimeout:   time.Second,
	}
}

func newFlowFixture(t *testing.T, policy service.FlowPolicy) (service.FlowService, *mocks.StoryService) {
	t.Helper()
	stories := new(mocks.StoryService)
	bus := events.NewBus(zap.NewNop())
	return service.NewFlowService(stories, bus, policy, zap.NewNop()), stories
}

// walkToLastStep проводит сессию по всем обязательным шагам до additionalNotes.
func walkToLastStep(t *testing.T, svc service.FlowService, userID, sessionID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	answers := []service.StepAnswer{
		{Text: "a marketing manager"},
		{Text: "schedule posts in advance"},
		{Text: "campaigns launch on time"},
		{Text: "High"},
		{Items: []string{"posts can be scheduled", "scheduled posts are published"}},
	}
	for i, answer := range answers {
		snap, err := svc.SubmitAnswer(ctx, userID, sessionID, answer)
		require.NoError(t, err, "step %d", i)
		require.Equal(t, i+1, snap.CurrentStepIndex)
	}
}

func waitForState(t *testing.T, svc service.FlowService, userID, sessionID uuid.UUID, want models.FlowState) *models.FlowSnapshot {
	t.Helper()
	var snap *models.FlowSnapshot
	require.Eventually(t, func() bool {
		s, err := svc.GetState(userID, sessionID)
		if err != nil {
			return false
		}
		snap = s
		return s.State == want && !s.IsLoading
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestFlowService_HappyPath(t *testing.T) {
	svc, stories := newFlowFixture(t, testPolicy())
	userID := uuid.New()
	projectID := uuid.New()

	project := &models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}
	stories.On("GetProject", mock.Anything, userID, projectID).Return(project, nil)

	generated := &models.UserStory{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: &projectID,
		Role:      "a marketing manager",
		Goal:      "schedule posts in advance",
		Benefit:   "campaigns launch on time",
		StoryText: models.ComposeStoryText("a marketing manager", "schedule posts in advance", "campaigns launch on time"),
		Priority:  models.PriorityHigh,
	}
	stories.On("CreateStory", mock.Anything, userID, mock.AnythingOfType("models.UserStoryInputs")).Return(generated, nil)

	snap, err := svc.StartSession(context.Background(), userID, &projectID)
	require.NoError(t, err)
	require.Equal(t, models.FlowStateAsking, snap.State)
	require.Equal(t, 0, snap.CurrentStepIndex)
	require.NotNil(t, snap.CurrentStep)
	require.Equal(t, "role", snap.CurrentStep.ID)

	walkToLastStep(t, svc, userID, snap.SessionID)

	// Опциональный шаг проходит и с пустым ответом.
	last, err := svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{})
	require.NoError(t, err)
	require.Equal(t, models.FlowStateGenerating, last.State)
	require.True(t, last.IsLoading)

	result := waitForState(t, svc, userID, snap.SessionID, models.FlowStateResults)
	require.NotNil(t, result.GeneratedStory)
	assert.Equal(t, "As a a marketing manager, I want to schedule posts in advance, so that campaigns launch on time.", result.GeneratedStory.StoryText)
	assert.True(t, result.IsResultsScreen)
	assert.Equal(t, len(models.FlowSteps), result.CurrentStepIndex)
	assert.Equal(t, 0, result.RetryCount)

	stories.AssertCalled(t, "CreateStory", mock.Anything, userID, mock.MatchedBy(func(inputs models.UserStoryInputs) bool {
		return inputs.Role == "a marketing manager" &&
			inputs.Priority == models.PriorityHigh &&
			len(inputs.AcceptanceCriteria) == 2 &&
			inputs.ProjectID != nil && *inputs.ProjectID == projectID
	}))
}

func TestFlowService_EmptyAnswerDoesNotAdvance(t *testing.T) {
	svc, _ := newFlowFixture(t, testPolicy())
	userID := uuid.New()

	snap, err := svc.StartSession(context.Background(), userID, nil)
	require.NoError(t, err)

	t.Run("пустой текст на обязательном шаге", func(t *testing.T) {
		got, err := svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{Text: "   "})
		assert.ErrorIs(t, err, models.ErrStepIncomplete)
		assert.Equal(t, 0, got.CurrentStepIndex)
		assert.Equal(t, models.FlowStateAsking, got.State)
		assert.Empty(t, got.Inputs.Role)
	})

	t.Run("пустой список критериев", func(t *testing.T) {
		for _, text := range []string{"a reader", "find posts", "save time", "Low"} {
			_, err := svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{Text: text})
			require.NoError(t, err)
		}
		got, err := svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{Items: []string{"  "}})
		assert.ErrorIs(t, err, models.ErrStepIncomplete)
		assert.Equal(t, 4, got.CurrentStepIndex)
		assert.Empty(t, got.Inputs.AcceptanceCriteria)
	})
}

func TestFlowService_BackNavigation(t *testing.T) {
	svc, _ := newFlowFixture(t, testPolicy())
	userID := uuid.New()

	snap, err := svc.StartSession(context.Background(), userID, nil)
	require.NoError(t, err)

	// С первого шага "назад" не уходит в минус, а подсказывает выбрать проект.
	got, err := svc.Back(userID, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStepIndex)
	assert.Equal(t, "Choose a project to continue.", got.Notice)

	_, err = svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{Text: "a reader"})
	require.NoError(t, err)

	got, err = svc.Back(userID, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStepIndex)
	assert.Empty(t, got.Notice)
	// Ранее введенный ответ сохраняется.
	assert.Equal(t, "a reader", got.Inputs.Role)
}

func TestFlowService_ProjectRequiredBeforeGeneration(t *testing.T) {
	svc, stories := newFlowFixture(t, testPolicy())
	userID := uuid.New()

	snap, err := svc.StartSession(context.Background(), userID, nil)
	require.NoError(t, err)
	walkToLastStep(t, svc, userID, snap.SessionID)

	got, err := svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{Text: "nice to have"})
	assert.ErrorIs(t, err, models.ErrProjectRequired)
	assert.Equal(t, models.FlowStateAsking, got.State)
	stories.AssertNotCalled(t, "CreateStory", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlowService_CancelGeneration(t *testing.T) {
	svc, stories := newFlowFixture(t, testPolicy())
	userID := uuid.New()
	projectID := uuid.New()

	stories.On("GetProject", mock.Anything, userID, projectID).
		Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)
	// Попытка висит до отмены собственного контекста.
	stories.On("CreateStory", mock.Anything, userID, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return(nil, context.Canceled)

	snap, err := svc.StartSession(context.Background(), userID, &projectID)
	require.NoError(t, err)
	walkToLastStep(t, svc, userID, snap.SessionID)

	got, err := svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{})
	require.NoError(t, err)
	require.Equal(t, models.FlowStateGenerating, got.State)

	t.Run("ответ во время генерации отклоняется", func(t *testing.T) {
		_, err := svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{Text: "late"})
		assert.ErrorIs(t, err, models.ErrGenerationInProgress)
	})

	got, err = svc.Cancel(userID, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.FlowStateCancelled, got.State)
	assert.False(t, got.IsLoading)
	assert.Equal(t, len(models.FlowSteps)-1, got.CurrentStepIndex)
	assert.Equal(t, "Generation cancelled.", got.Notice)

	t.Run("повторная отмена безвредна", func(t *testing.T) {
		again, err := svc.Cancel(userID, snap.SessionID)
		require.NoError(t, err)
		assert.Equal(t, models.FlowStateCancelled, again.State)
	})

	t.Run("после отмены сессия возобновляется с вопросов", func(t *testing.T) {
		resumed, err := svc.Back(userID, snap.SessionID)
		require.NoError(t, err)
		assert.Equal(t, models.FlowStateAsking, resumed.State)
		assert.Equal(t, len(models.FlowSteps)-2, resumed.CurrentStepIndex)
	})
}

func TestFlowService_RetriesAreBounded(t *testing.T) {
	policy := testPolicy()
	svc, stories := newFlowFixture(t, policy)
	userID := uuid.New()
	projectID := uuid.New()

	stories.On("GetProject", mock.Anything, userID, projectID).
		Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)
	stories.On("CreateStory", mock.Anything, userID, mock.Anything).
		Return(nil, errors.New("upstream unavailable"))

	snap, err := svc.StartSession(context.Background(), userID, &projectID)
	require.NoError(t, err)
	walkToLastStep(t, svc, userID, snap.SessionID)
	_, err = svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{})
	require.NoError(t, err)

	got := waitForState(t, svc, userID, snap.SessionID, models.FlowStateAsking)
	assert.Equal(t, len(models.FlowSteps)-1, got.CurrentStepIndex)
	assert.Equal(t, policy.MaxRetries, got.RetryCount)
	assert.Equal(t, "Story generation failed. Please try again.", got.Notice)

	// Исходная попытка плюс ровно MaxRetries повторов.
	stories.AssertNumberOfCalls(t, "CreateStory", policy.MaxRetries+1)
}

func TestFlowService_RetryCountResetsOnResubmit(t *testing.T) {
	policy := testPolicy()
	svc, stories := newFlowFixture(t, policy)
	userID := uuid.New()
	projectID := uuid.New()

	stories.On("GetProject", mock.Anything, userID, projectID).
		Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)
	stories.On("CreateStory", mock.Anything, userID, mock.Anything).
		Return(nil, errors.New("upstream unavailable"))

	snap, err := svc.StartSession(context.Background(), userID, &projectID)
	require.NoError(t, err)
	walkToLastStep(t, svc, userID, snap.SessionID)
	_, err = svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{})
	require.NoError(t, err)
	waitForState(t, svc, userID, snap.SessionID, models.FlowStateAsking)

	// Повторная отправка с последнего шага: счетчик повторов не должен
	// накапливаться между запусками генерации.
	_, err = svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{})
	require.NoError(t, err)
	got := waitForState(t, svc, userID, snap.SessionID, models.FlowStateAsking)

	assert.Equal(t, policy.MaxRetries, got.RetryCount)
	stories.AssertNumberOfCalls(t, "CreateStory", 2*(policy.MaxRetries+1))
}

func TestFlowService_FatalErrorSkipsRetries(t *testing.T) {
	svc, stories := newFlowFixture(t, testPolicy())
	userID := uuid.New()
	projectID := uuid.New()

	stories.On("GetProject", mock.Anything, userID, projectID).
		Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)
	stories.On("CreateStory", mock.Anything, userID, mock.Anything).
		Return(nil, models.ErrProjectNotFound)

	snap, err := svc.StartSession(context.Background(), userID, &projectID)
	require.NoError(t, err)
	walkToLastStep(t, svc, userID, snap.SessionID)
	_, err = svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{})
	require.NoError(t, err)

	got := waitForState(t, svc, userID, snap.SessionID, models.FlowStateAsking)
	assert.Equal(t, "The selected project no longer exists.", got.Notice)
	stories.AssertNumberOfCalls(t, "CreateStory", 1)
}

func TestFlowService_LateResultAfterCancelIsDropped(t *testing.T) {
	svc, stories := newFlowFixture(t, testPolicy())
	userID := uuid.New()
	projectID := uuid.New()
	release := make(chan struct{})

	stories.On("GetProject", mock.Anything, userID, projectID).
		Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)
	// Попытка игнорирует отмену и "успевает" уже после нее.
	stories.On("CreateStory", mock.Anything, userID, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&models.UserStory{ID: uuid.New(), UserID: userID}, nil)

	snap, err := svc.StartSession(context.Background(), userID, &projectID)
	require.NoError(t, err)
	walkToLastStep(t, svc, userID, snap.SessionID)
	_, err = svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{})
	require.NoError(t, err)

	_, err = svc.Cancel(userID, snap.SessionID)
	require.NoError(t, err)

	close(release)
	time.Sleep(50 * time.Millisecond)

	got, err := svc.GetState(userID, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.FlowStateCancelled, got.State)
	assert.Nil(t, got.GeneratedStory)
	assert.False(t, got.IsResultsScreen)
}

func TestFlowService_SafetyTimerClearsLoading(t *testing.T) {
	policy := testPolicy()
	policy.GenerateTimeout = 20 * time.Millisecond
	policy.SafetyTimeout = 50 * time.Millisecond
	svc, stories := newFlowFixture(t, policy)
	userID := uuid.New()
	projectID := uuid.New()
	release := make(chan struct{})

	stories.On("GetProject", mock.Anything, userID, projectID).
		Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)
	// Попытка зависает, игнорируя и свой таймаут, и отмену.
	stories.On("CreateStory", mock.Anything, userID, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(nil, errors.New("stuck"))
	defer close(release)

	snap, err := svc.StartSession(context.Background(), userID, &projectID)
	require.NoError(t, err)
	walkToLastStep(t, svc, userID, snap.SessionID)
	_, err = svc.SubmitAnswer(context.Background(), userID, snap.SessionID, service.StepAnswer{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := svc.GetState(userID, snap.SessionID)
		return err == nil && got.State == models.FlowStateGenerating && !got.IsLoading
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFlowService_Reset(t *testing.T) {
	svc, stories := newFlowFixture(t, testPolicy())
	userID := uuid.New()
	projectID := uuid.New()

	stories.On("GetProject", mock.Anything, userID, projectID).
		Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)

	snap, err := svc.StartSession(context.Background(), userID, &projectID)
	require.NoError(t, err)
	walkToLastStep(t, svc, userID, snap.SessionID)

	t.Run("с сохранением проекта", func(t *testing.T) {
		got, err := svc.Reset(userID, snap.SessionID, true)
		require.NoError(t, err)
		assert.Equal(t, 0, got.CurrentStepIndex)
		assert.Empty(t, got.Inputs.Role)
		require.NotNil(t, got.Inputs.ProjectID)
		assert.Equal(t, projectID, *got.Inputs.ProjectID)
	})

	t.Run("без сохранения проекта", func(t *testing.T) {
		got, err := svc.Reset(userID, snap.SessionID, false)
		require.NoError(t, err)
		assert.Nil(t, got.Inputs.ProjectID)
	})
}

func TestFlowService_SessionOwnership(t *testing.T) {
	svc, _ := newFlowFixture(t, testPolicy())
	owner := uuid.New()
	stranger := uuid.New()

	snap, err := svc.StartSession(context.Background(), owner, nil)
	require.NoError(t, err)

	_, err = svc.GetState(stranger, snap.SessionID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	_, err = svc.GetState(owner, uuid.New())
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	require.NoError(t, svc.DestroySession(owner, snap.SessionID))
	_, err = svc.GetState(owner, snap.SessionID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}
