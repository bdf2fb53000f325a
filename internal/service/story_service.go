package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge-server/internal/events"
	"storyforge-server/internal/models"
	"storyforge-server/internal/repository"
)

// StoryService - доменные операции над историями и проектами.
// Все операции скоупированы по владельцу: чужие записи неотличимы
// от несуществующих.
type StoryService interface {
	CreateStory(ctx context.Context, userID uuid.UUID, inputs models.UserStoryInputs) (*models.UserStory, error)
	GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.UserStory, error)
	ListStories(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.UserStory, error)
	UpdateStory(ctx context.Context, userID, storyID uuid.UUID, inputs models.UserStoryInputs) (*models.UserStory, error)
	// DeleteStory молча завершается успехом, если истории нет или она чужая.
	DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error

	CreateProject(ctx context.Context, userID uuid.UUID, name, description string) (*models.Project, error)
	GetProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	UpdateProject(ctx context.Context, userID, projectID uuid.UUID, name, description string) (*models.Project, error)
	// DeleteProject удаляет проект и все его истории в одной транзакции.
	DeleteProject(ctx context.Context, userID, projectID uuid.UUID) error
}

type storyServiceImpl struct {
	db       repository.DBTX
	txBegin  repository.TxBeginner
	projects repository.ProjectRepository
	stories  repository.UserStoryRepository
	bus      *events.Bus
	logger   *zap.Logger
}

var _ StoryService = (*storyServiceImpl)(nil)

func NewStoryService(
	db repository.DBTX,
	txBegin repository.TxBeginner,
	projects repository.ProjectRepository,
	stories repository.UserStoryRepository,
	bus *events.Bus,
	logger *zap.Logger,
) StoryService {
	return &storyServiceImpl{
		db:       db,
		txBegin:  txBegin,
		projects: projects,
		stories:  stories,
		bus:      bus,
		logger:   logger.Named("StoryService"),
	}
}

// CreateStory сохраняет историю: текст всегда выводится из role/goal/benefit,
// клиентские значения storyText игнорируются. История всегда привязана к
// проекту владельца.
func (s *storyServiceImpl) CreateStory(ctx context.Context, userID uuid.UUID, inputs models.UserStoryInputs) (*models.UserStory, error) {
	if strings.TrimSpace(inputs.Role) == "" || strings.TrimSpace(inputs.Goal) == "" || strings.TrimSpace(inputs.Benefit) == "" {
		return nil, fmt.Errorf("%w: role, goal и benefit обязательны", models.ErrInvalidInput)
	}
	if inputs.ProjectID == nil {
		return nil, models.ErrProjectRequired
	}

	project, err := s.projects.GetByID(ctx, s.db, *inputs.ProjectID, userID)
	if err != nil {
		if errors.Is(err, models.ErrProjectNotFound) {
			return nil, models.ErrProjectNotFound
		}
		return nil, fmt.Errorf("ошибка проверки проекта: %w", err)
	}
	projectName := project.Name

	now := time.Now().UTC()
	story := &models.UserStory{
		ID:                 uuid.New(),
		UserID:             userID,
		ProjectID:          inputs.ProjectID,
		ProjectName:        projectName,
		Role:               strings.TrimSpace(inputs.Role),
		Goal:               strings.TrimSpace(inputs.Goal),
		Benefit:            strings.TrimSpace(inputs.Benefit),
		Priority:           inputs.Priority,
		AcceptanceCriteria: inputs.AcceptanceCriteria,
		AdditionalNotes:    inputs.AdditionalNotes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	story.StoryText = models.ComposeStoryText(story.Role, story.Goal, story.Benefit)
	if story.Priority == "" {
		story.Priority = models.InferPriorityFromNotes(story.AdditionalNotes)
	}
	if story.AcceptanceCriteria == nil {
		story.AcceptanceCriteria = []string{}
	}

	if err := s.stories.Create(ctx, s.db, story); err != nil {
		return nil, fmt.Errorf("ошибка сохранения истории: %w", err)
	}

	s.logger.Info("История создана",
		zap.String("storyID", story.ID.String()),
		zap.String("userID", userID.String()),
	)
	s.bus.Publish(events.Event{
		Topic:     events.TopicStoryCreated,
		UserID:    userID,
		ProjectID: story.ProjectID,
		StoryID:   &story.ID,
	})
	return story, nil
}

func (s *storyServiceImpl) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.UserStory, error) {
	return s.stories.GetByID(ctx, s.db, storyID, userID)
}

func (s *storyServiceImpl) ListStories(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID) ([]models.UserStory, error) {
	stories, err := s.stories.List(ctx, s.db, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка историй: %w", err)
	}
	// Приоритет историй, сохраненных до введения явного поля, выводим из заметок.
	for i := range stories {
		stories[i].Priority = stories[i].EffectivePriority()
	}
	return stories, nil
}

// UpdateStory перезаписывает изменяемые поля истории. storyText пересчитывается
// из новых role/goal/benefit, чтобы производное поле не разъехалось с частями.
func (s *storyServiceImpl) UpdateStory(ctx context.Context, userID, storyID uuid.UUID, inputs models.UserStoryInputs) (*models.UserStory, error) {
	story, err := s.stories.GetByID(ctx, s.db, storyID, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(inputs.Role) == "" || strings.TrimSpace(inputs.Goal) == "" || strings.TrimSpace(inputs.Benefit) == "" {
		return nil, fmt.Errorf("%w: role, goal и benefit обязательны", models.ErrInvalidInput)
	}

	if inputs.ProjectID != nil && (story.ProjectID == nil || *inputs.ProjectID != *story.ProjectID) {
		project, err := s.projects.GetByID(ctx, s.db, *inputs.ProjectID, userID)
		if err != nil {
			return nil, err
		}
		story.ProjectName = project.Name
	}
	story.ProjectID = inputs.ProjectID
	if inputs.ProjectID == nil {
		story.ProjectName = ""
	}

	story.Role = strings.TrimSpace(inputs.Role)
	story.Goal = strings.TrimSpace(inputs.Goal)
	story.Benefit = strings.TrimSpace(inputs.Benefit)
	story.StoryText = models.ComposeStoryText(story.Role, story.Goal, story.Benefit)
	story.Priority = inputs.Priority
	if story.Priority == "" {
		story.Priority = models.InferPriorityFromNotes(inputs.AdditionalNotes)
	}
	story.AcceptanceCriteria = inputs.AcceptanceCriteria
	if story.AcceptanceCriteria == nil {
		story.AcceptanceCriteria = []string{}
	}
	story.AdditionalNotes = inputs.AdditionalNotes
	story.UpdatedAt = time.Now().UTC()

	if err := s.stories.Update(ctx, s.db, story); err != nil {
		return nil, fmt.Errorf("ошибка обновления истории: %w", err)
	}
	return story, nil
}

func (s *storyServiceImpl) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	return s.stories.Delete(ctx, s.db, storyID, userID)
}

func (s *storyServiceImpl) CreateProject(ctx context.Context, userID uuid.UUID, name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: имя проекта обязательно", models.ErrInvalidInput)
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Create(ctx, s.db, project); err != nil {
		return nil, fmt.Errorf("ошибка создания проекта: %w", err)
	}

	s.bus.Publish(events.Event{
		Topic:     events.TopicProjectChanged,
		UserID:    userID,
		ProjectID: &project.ID,
	})
	return project, nil
}

func (s *storyServiceImpl) GetProject(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	return s.projects.GetByID(ctx, s.db, projectID, userID)
}

func (s *storyServiceImpl) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	return s.projects.List(ctx, s.db, userID)
}

func (s *storyServiceImpl) UpdateProject(ctx context.Context, userID, projectID uuid.UUID, name, description string) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, s.db, projectID, userID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: имя проекта обязательно", models.ErrInvalidInput)
	}
	project.Name = name
	project.Description = description
	project.UpdatedAt = time.Now().UTC()

	if err := s.projects.Update(ctx, s.db, project); err != nil {
		return nil, fmt.Errorf("ошибка обновления проекта: %w", err)
	}

	s.bus.Publish(events.Event{
		Topic:     events.TopicProjectChanged,
		UserID:    userID,
		ProjectID: &project.ID,
	})
	return project, nil
}

// DeleteProject удаляет истории проекта и сам проект в одной транзакции:
// частичный сбой не оставляет осиротевших историй.
func (s *storyServiceImpl) DeleteProject(ctx context.Context, userID, projectID uuid.UUID) error {
	tx, err := s.txBegin.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer func() {
		// Rollback после Commit безвреден.
		_ = tx.Rollback(ctx)
	}()

	if err := s.stories.DeleteByProject(ctx, tx, projectID, userID); err != nil {
		return fmt.Errorf("ошибка каскадного удаления историй: %w", err)
	}
	if err := s.projects.Delete(ctx, tx, projectID, userID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	s.logger.Info("Проект удален вместе с историями",
		zap.String("projectID", projectID.String()),
		zap.String("userID", userID.String()),
	)
	s.bus.Publish(events.Event{
		Topic:     events.TopicProjectChanged,
		UserID:    userID,
		ProjectID: &projectID,
	})
	return nil
}
