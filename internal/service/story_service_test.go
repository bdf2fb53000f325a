package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyforge-server/internal/events"
	"storyforge-server/internal/models"
	repomocks "storyforge-server/internal/repository/mocks"
	"storyforge-server/internal/service"
)

type storyFixture struct {
	svc      service.StoryService
	projects *repomocks.ProjectRepository
	stories  *repomocks.UserStoryRepository
	txBegin  *repomocks.TxBeginner
	bus      *events.Bus
}

func newStoryFixture(t *testing.T) *storyFixture {
	t.Helper()
	f := &storyFixture{
		projects: new(repomocks.ProjectRepository),
		stories:  new(repomocks.UserStoryRepository),
		txBegin:  new(repomocks.TxBeginner),
		bus:      events.NewBus(zap.NewNop()),
	}
	f.svc = service.NewStoryService(new(repomocks.Tx), f.txBegin, f.projects, f.stories, f.bus, zap.NewNop())
	return f
}

func TestStoryService_CreateStory(t *testing.T) {
	userID := uuid.New()

	t.Run("текст истории собирается из частей", func(t *testing.T) {
		f := newStoryFixture(t)
		sub := f.bus.Subscribe(events.TopicStoryCreated, 1)
		defer sub.Unsubscribe()

		projectID := uuid.New()
		f.projects.On("GetByID", mock.Anything, mock.Anything, projectID, userID).
			Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)
		f.stories.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.UserStory")).Return(nil)

		story, err := f.svc.CreateStory(context.Background(), userID, models.UserStoryInputs{
			Role:      "marketing manager",
			Goal:      "schedule social media posts in advance",
			Benefit:   "campaigns go out on time without manual work",
			Priority:  models.PriorityHigh,
			ProjectID: &projectID,
		})
		require.NoError(t, err)
		assert.Equal(t,
			"As a marketing manager, I want to schedule social media posts in advance, so that campaigns go out on time without manual work.",
			story.StoryText,
		)
		assert.Equal(t, models.PriorityHigh, story.Priority)
		assert.NotNil(t, story.AcceptanceCriteria)

		select {
		case evt := <-sub.C:
			assert.Equal(t, events.TopicStoryCreated, evt.Topic)
			assert.Equal(t, userID, evt.UserID)
			require.NotNil(t, evt.StoryID)
			assert.Equal(t, story.ID, *evt.StoryID)
		default:
			t.Fatal("ожидалось событие storyCreated")
		}
	})

	t.Run("приоритет выводится из заметок", func(t *testing.T) {
		f := newStoryFixture(t)
		projectID := uuid.New()
		f.projects.On("GetByID", mock.Anything, mock.Anything, projectID, userID).
			Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)
		f.stories.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		cases := []struct {
			notes string
			want  models.Priority
		}{
			{"this one is urgent, ship it first", models.PriorityHigh},
			{"definitely high priority for Q3", models.PriorityHigh},
			{"nice to have, low priority", models.PriorityLow},
			{"no particular hints here", models.PriorityMedium},
		}
		for _, tc := range cases {
			story, err := f.svc.CreateStory(context.Background(), userID, models.UserStoryInputs{
				Role:            "a reader",
				Goal:            "filter posts",
				Benefit:         "find content faster",
				AdditionalNotes: tc.notes,
				ProjectID:       &projectID,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, story.Priority, "notes: %q", tc.notes)
		}
	})

	t.Run("пустые обязательные поля отклоняются", func(t *testing.T) {
		f := newStoryFixture(t)
		projectID := uuid.New()
		_, err := f.svc.CreateStory(context.Background(), userID, models.UserStoryInputs{
			Role: "a reader", Goal: "   ", Benefit: "less scrolling",
			ProjectID: &projectID,
		})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		f.stories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("история без проекта отклоняется", func(t *testing.T) {
		f := newStoryFixture(t)
		_, err := f.svc.CreateStory(context.Background(), userID, models.UserStoryInputs{
			Role: "a reader", Goal: "filter posts", Benefit: "find content faster",
		})
		assert.ErrorIs(t, err, models.ErrProjectRequired)
		f.stories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("несуществующий проект отклоняется", func(t *testing.T) {
		f := newStoryFixture(t)
		projectID := uuid.New()
		f.projects.On("GetByID", mock.Anything, mock.Anything, projectID, userID).
			Return(nil, models.ErrProjectNotFound)

		_, err := f.svc.CreateStory(context.Background(), userID, models.UserStoryInputs{
			Role: "a reader", Goal: "filter posts", Benefit: "find content faster",
			ProjectID: &projectID,
		})
		assert.ErrorIs(t, err, models.ErrProjectNotFound)
	})

	t.Run("имя проекта денормализуется", func(t *testing.T) {
		f := newStoryFixture(t)
		projectID := uuid.New()
		f.projects.On("GetByID", mock.Anything, mock.Anything, projectID, userID).
			Return(&models.Project{ID: projectID, UserID: userID, Name: "Scheduler"}, nil)
		f.stories.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		story, err := f.svc.CreateStory(context.Background(), userID, models.UserStoryInputs{
			Role: "a reader", Goal: "filter posts", Benefit: "find content faster",
			ProjectID: &projectID,
		})
		require.NoError(t, err)
		assert.Equal(t, "Scheduler", story.ProjectName)
	})
}

func TestStoryService_UpdateStory(t *testing.T) {
	f := newStoryFixture(t)
	userID := uuid.New()
	storyID := uuid.New()

	existing := &models.UserStory{
		ID:        storyID,
		UserID:    userID,
		Role:      "a reader",
		Goal:      "filter posts",
		Benefit:   "find content faster",
		StoryText: models.ComposeStoryText("a reader", "filter posts", "find content faster"),
		Priority:  models.PriorityLow,
	}
	f.stories.On("GetByID", mock.Anything, mock.Anything, storyID, userID).Return(existing, nil)
	f.stories.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	updated, err := f.svc.UpdateStory(context.Background(), userID, storyID, models.UserStoryInputs{
		Role:     "an editor",
		Goal:     "pin featured posts",
		Benefit:  "readers see the best content first",
		Priority: models.PriorityHigh,
	})
	require.NoError(t, err)
	// Производный текст пересчитывается из новых частей.
	assert.Equal(t, "As a an editor, I want to pin featured posts, so that readers see the best content first.", updated.StoryText)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
}

func TestStoryService_ListStoriesAppliesEffectivePriority(t *testing.T) {
	f := newStoryFixture(t)
	userID := uuid.New()

	f.stories.On("List", mock.Anything, mock.Anything, userID, (*uuid.UUID)(nil)).Return([]models.UserStory{
		{ID: uuid.New(), Priority: models.PriorityHigh},
		{ID: uuid.New(), AdditionalNotes: "urgent fix"},
		{ID: uuid.New()},
	}, nil)

	stories, err := f.svc.ListStories(context.Background(), userID, nil)
	require.NoError(t, err)
	require.Len(t, stories, 3)
	assert.Equal(t, models.PriorityHigh, stories[0].Priority)
	assert.Equal(t, models.PriorityHigh, stories[1].Priority)
	assert.Equal(t, models.PriorityMedium, stories[2].Priority)
}

func TestStoryService_DeleteProject(t *testing.T) {
	userID := uuid.New()
	projectID := uuid.New()

	t.Run("истории и проект удаляются в одной транзакции", func(t *testing.T) {
		f := newStoryFixture(t)
		sub := f.bus.Subscribe(events.TopicProjectChanged, 1)
		defer sub.Unsubscribe()

		tx := new(repomocks.Tx)
		f.txBegin.On("Begin", mock.Anything).Return(tx, nil)
		f.stories.On("DeleteByProject", mock.Anything, tx, projectID, userID).Return(nil)
		f.projects.On("Delete", mock.Anything, tx, projectID, userID).Return(nil)
		tx.On("Commit", mock.Anything).Return(nil)
		tx.On("Rollback", mock.Anything).Return(nil)

		require.NoError(t, f.svc.DeleteProject(context.Background(), userID, projectID))

		f.stories.AssertCalled(t, "DeleteByProject", mock.Anything, tx, projectID, userID)
		f.projects.AssertCalled(t, "Delete", mock.Anything, tx, projectID, userID)
		tx.AssertCalled(t, "Commit", mock.Anything)

		select {
		case evt := <-sub.C:
			assert.Equal(t, events.TopicProjectChanged, evt.Topic)
		default:
			t.Fatal("ожидалось событие projectChanged")
		}
	})

	t.Run("сбой каскада откатывает транзакцию", func(t *testing.T) {
		f := newStoryFixture(t)
		tx := new(repomocks.Tx)
		f.txBegin.On("Begin", mock.Anything).Return(tx, nil)
		f.stories.On("DeleteByProject", mock.Anything, tx, projectID, userID).
			Return(errors.New("deadlock"))
		tx.On("Rollback", mock.Anything).Return(nil)

		err := f.svc.DeleteProject(context.Background(), userID, projectID)
		require.Error(t, err)

		f.projects.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		tx.AssertNotCalled(t, "Commit", mock.Anything)
		tx.AssertCalled(t, "Rollback", mock.Anything)
	})

	t.Run("чужой проект не удаляется", func(t *testing.T) {
		f := newStoryFixture(t)
		tx := new(repomocks.Tx)
		f.txBegin.On("Begin", mock.Anything).Return(tx, nil)
		f.stories.On("DeleteByProject", mock.Anything, tx, projectID, userID).Return(nil)
		f.projects.On("Delete", mock.Anything, tx, projectID, userID).
			Return(models.ErrProjectNotFound)
		tx.On("Rollback", mock.Anything).Return(nil)

		err := f.svc.DeleteProject(context.Background(), userID, projectID)
		assert.ErrorIs(t, err, models.ErrProjectNotFound)
		tx.AssertNotCalled(t, "Commit", mock.Anything)
	})
}
