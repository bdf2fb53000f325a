package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"storyforge-server/internal/messaging"
	msgmocks "storyforge-server/internal/messaging/mocks"
	"storyforge-server/internal/models"
	"storyforge-server/internal/service"
)

func TestContactService_SubmitContactForm(t *testing.T) {
	t.Run("валидная форма ставится в очередь", func(t *testing.T) {
		publisher := new(msgmocks.EmailTaskPublisher)
		svc := service.NewContactService(publisher, zap.NewNop())

		publisher.On("PublishEmailTask", mock.Anything, mock.MatchedBy(func(task messaging.EmailTaskPayload) bool {
			return task.Kind == messaging.EmailKindContactForm &&
				task.ReplyTo == "bob@example.com" &&
				task.Fields["message"] == "The wizard lost my answers."
		})).Return(nil)

		queued, err := svc.SubmitContactForm(context.Background(), "Bob", "Bob@Example.com", "The wizard lost my answers.")
		assert.NoError(t, err)
		assert.True(t, queued)
		publisher.AssertExpectations(t)
	})

	t.Run("невалидный email отклоняется до публикации", func(t *testing.T) {
		publisher := new(msgmocks.EmailTaskPublisher)
		svc := service.NewContactService(publisher, zap.NewNop())

		queued, err := svc.SubmitContactForm(context.Background(), "Bob", "not-an-email", "hello")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		assert.False(t, queued)
		publisher.AssertNotCalled(t, "PublishEmailTask", mock.Anything, mock.Anything)
	})

	t.Run("сбой брокера не всплывает, но queued=false", func(t *testing.T) {
		publisher := new(msgmocks.EmailTaskPublisher)
		svc := service.NewContactService(publisher, zap.NewNop())
		publisher.On("PublishEmailTask", mock.Anything, mock.Anything).Return(assert.AnError)

		queued, err := svc.SubmitContactForm(context.Background(), "Bob", "bob@example.com", "hello")
		assert.NoError(t, err)
		assert.False(t, queued)
	})
}

func TestContactService_SubmitSupportRequest(t *testing.T) {
	publisher := new(msgmocks.EmailTaskPublisher)
	svc := service.NewContactService(publisher, zap.NewNop())
	user := &models.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}

	publisher.On("PublishEmailTask", mock.Anything, mock.MatchedBy(func(task messaging.EmailTaskPayload) bool {
		return task.Kind == messaging.EmailKindSupportRequest &&
			task.Fields["username"] == "alice" &&
			task.Fields["topic"] == "billing"
	})).Return(nil)

	queued, err := svc.SubmitSupportRequest(context.Background(), user, "billing", "charged twice")
	assert.NoError(t, err)
	assert.True(t, queued)

	queued, err = svc.SubmitSupportRequest(context.Background(), user, "   ", "charged twice")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.False(t, queued)
}
