package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"storyforge-server/internal/models"
	"storyforge-server/internal/repository"
)

// Mock ProjectRepository
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) Create(ctx context.Context, q repository.DBTX, project *models.Project) error {
	args := m.Called(ctx, q, project)
	return args.Error(0)
}

func (m *ProjectRepository) GetByID(ctx context.Context, q repository.DBTX, id, userID uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, q, id, userID)
	if p, ok := args.Get(0).(*models.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) List(ctx context.Context, q repository.DBTX, userID uuid.UUID) ([]models.Project, error) {
	args := m.Called(ctx, q, userID)
	if p, ok := args.Get(0).([]models.Project); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) Update(ctx context.Context, q repository.DBTX, project *models.Project) error {
	args := m.Called(ctx, q, project)
	return args.Error(0)
}

func (m *ProjectRepository) Delete(ctx context.Context, q repository.DBTX, id, userID uuid.UUID) error {
	args := m.Called(ctx, q, id, userID)
	return args.Error(0)
}

// Mock UserStoryRepository
type UserStoryRepository struct {
	mock.Mock
}

func (m *UserStoryRepository) Create(ctx context.Context, q repository.DBTX, story *models.UserStory) error {
	args := m.Called(ctx, q, story)
	return args.Error(0)
}

func (m *UserStoryRepository) GetByID(ctx context.Context, q repository.DBTX, id, userID uuid.UUID) (*models.UserStory, error) {
	args := m.Called(ctx, q, id, userID)
	if s, ok := args.Get(0).(*models.UserStory); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserStoryRepository) List(ctx context.Context, q repository.DBTX, userID uuid.UUID, projectID *uuid.UUID) ([]models.UserStory, error) {
	args := m.Called(ctx, q, userID, projectID)
	if s, ok := args.Get(0).([]models.UserStory); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserStoryRepository) Update(ctx context.Context, q repository.DBTX, story *models.UserStory) error {
	args := m.Called(ctx, q, story)
	return args.Error(0)
}

func (m *UserStoryRepository) Delete(ctx context.Context, q repository.DBTX, id, userID uuid.UUID) error {
	args := m.Called(ctx, q, id, userID)
	return args.Error(0)
}

func (m *UserStoryRepository) DeleteByProject(ctx context.Context, q repository.DBTX, projectID, userID uuid.UUID) error {
	args := m.Called(ctx, q, projectID, userID)
	return args.Error(0)
}

// Mock UserRepository
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, q repository.DBTX, user *models.User) error {
	args := m.Called(ctx, q, user)
	return args.Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, q repository.DBTX, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, q, id)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByUsername(ctx context.Context, q repository.DBTX, username string) (*models.User, error) {
	args := m.Called(ctx, q, username)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, q repository.DBTX, email string) (*models.User, error) {
	args := m.Called(ctx, q, email)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) Update(ctx context.Context, q repository.DBTX, user *models.User) error {
	args := m.Called(ctx, q, user)
	return args.Error(0)
}

func (m *UserRepository) HasRole(ctx context.Context, q repository.DBTX, userID uuid.UUID, role string) (bool, error) {
	args := m.Called(ctx, q, userID, role)
	return args.Bool(0), args.Error(1)
}

// Mock BlogPostRepository
type BlogPostRepository struct {
	mock.Mock
}

func (m *BlogPostRepository) Create(ctx context.Context, q repository.DBTX, post *models.BlogPost) error {
	args := m.Called(ctx, q, post)
	return args.Error(0)
}

func (m *BlogPostRepository) GetBySlug(ctx context.Context, q repository.DBTX, slug string) (*models.BlogPost, error) {
	args := m.Called(ctx, q, slug)
	if p, ok := args.Get(0).(*models.BlogPost); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BlogPostRepository) GetByID(ctx context.Context, q repository.DBTX, id, authorID uuid.UUID) (*models.BlogPost, error) {
	args := m.Called(ctx, q, id, authorID)
	if p, ok := args.Get(0).(*models.BlogPost); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BlogPostRepository) ListPublished(ctx context.Context, q repository.DBTX, limit, offset int) ([]models.BlogPost, error) {
	args := m.Called(ctx, q, limit, offset)
	if p, ok := args.Get(0).([]models.BlogPost); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BlogPostRepository) ListByAuthor(ctx context.Context, q repository.DBTX, authorID uuid.UUID) ([]models.BlogPost, error) {
	args := m.Called(ctx, q, authorID)
	if p, ok := args.Get(0).([]models.BlogPost); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BlogPostRepository) Update(ctx context.Context, q repository.DBTX, post *models.BlogPost) error {
	args := m.Called(ctx, q, post)
	return args.Error(0)
}

func (m *BlogPostRepository) Delete(ctx context.Context, q repository.DBTX, id, authorID uuid.UUID) error {
	args := m.Called(ctx, q, id, authorID)
	return args.Error(0)
}

// Mock TokenRepository
type TokenRepository struct {
	mock.Mock
}

func (m *TokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	args := m.Called(ctx, userID, td)
	return args.Error(0)
}

func (m *TokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error) {
	args := m.Called(ctx, accessUUID)
	if id, ok := args.Get(0).(uuid.UUID); ok {
		return id, args.Error(1)
	}
	return uuid.Nil, args.Error(1)
}

func (m *TokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	args := m.Called(ctx, refreshUUID)
	if id, ok := args.Get(0).(uuid.UUID); ok {
		return id, args.Error(1)
	}
	return uuid.Nil, args.Error(1)
}

func (m *TokenRepository) DeleteTokens(ctx context.Context, accessUUID, refreshUUID string) error {
	args := m.Called(ctx, accessUUID, refreshUUID)
	return args.Error(0)
}

func (m *TokenRepository) DeleteAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// Mock Tx реализует repository.Tx. Exec/Query/QueryRow в сервисных тестах
// напрямую не вызываются: запросы исполняют мок-репозитории, которым
// транзакция передается как обычный DBTX.
type Tx struct {
	mock.Mock
}

func (m *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	called := m.Called(ctx, sql, args)
	return pgconn.CommandTag{}, called.Error(1)
}

func (m *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	called := m.Called(ctx, sql, args)
	if rows, ok := called.Get(0).(pgx.Rows); ok {
		return rows, called.Error(1)
	}
	return nil, called.Error(1)
}

func (m *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	called := m.Called(ctx, sql, args)
	row, _ := called.Get(0).(pgx.Row)
	return row
}

func (m *Tx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Tx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Mock TxBeginner
type TxBeginner struct {
	mock.Mock
}

func (m *TxBeginner) Begin(ctx context.Context) (repository.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(repository.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}
