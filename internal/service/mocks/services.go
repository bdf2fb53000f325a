package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"storyforge-server/internal/models"
)

// Mock StoryService
type StoryService struct {
	mock.Mock
}

func (m *StoryService) CreateStory(ctx context.Context, userID uuid.UUID, inputs models.UserStoryInputs) (*models.UserStory, error) {
	args := m.Called(ctx, userID, inputs)
	if s, ok := args.Get(0).(*models.UserStory); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoryService) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.UserStory, error) {
	args := m.Called(ctx, userID, storyID)
	if s, ok := args.Get(0).(*models.UserStory); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoryService) ListStories(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.UserStory, error) {
	args := m.Called(ctx, userID, projectID)
	if s, ok := args.Get(0).([]models.UserStory); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoryService) UpdateStory(ctx context.Context, userID, storyID uuid.UUID, inputs models.UserStoryInputs) (*models.UserStory, error) {
	args := m.Called(ctx, userID, storyID, inputs)
	if s, ok := args.Get(0).(*models.UserStory); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoryService) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	args := m.Called(ctx, userID, storyID)
	return args.Error(0)
}

func (m *StoryService) CreateProject(ctx context.Context, userID uuid.UUID, name, description string) (*models.Project, error) {
	args := m.Called(ctx, userID, name, description)
	if p, ok := args.Get(0).(*models.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoryService) GetProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, userID, projectID)
	if p, ok := args.Get(0).(*models.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoryService) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	args := m.Called(ctx, userID)
	if p, ok := args.Get(0).([]models.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoryService) UpdateProject(ctx context.Context, userID, projectID uuid.UUID, name, description string) (*models.Project, error) {
	args := m.Called(ctx, userID, projectID, name, description)
	if p, ok := args.Get(0).(*models.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoryService) DeleteProject(ctx context.Context, userID, projectID uuid.UUID) error {
	args := m.Called(ctx, userID, projectID)
	return args.Error(0)
}
