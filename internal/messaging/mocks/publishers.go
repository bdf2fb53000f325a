package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storyforge-server/internal/messaging"
)

// Mock EmailTaskPublisher
type EmailTaskPublisher struct {
	mock.Mock
}

func (m *EmailTaskPublisher) PublishEmailTask(ctx context.Context, payload messaging.EmailTaskPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}
