package repository

import (
	"context"

	"storyforge-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX - минимальный интерфейс исполнителя запросов, который реализуют
// и *pgxpool.Pool, и pgx.Tx. Репозитории принимают его аргументом каждого
// вызова, поэтому один и тот же код работает внутри и вне транзакции.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProjectRepository управляет записями проектов, скоупированными по владельцу.
type ProjectRepository interface {
	Create(ctx context.Context, q DBTX, project *models.Project) error
	GetByID(ctx context.Context, q DBTX, id, userID uuid.UUID) (*models.Project, error)
	List(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.Project, error)
	Update(ctx context.Context, q DBTX, project *models.Project) error
	Delete(ctx context.Context, q DBTX, id, userID uuid.UUID) error
}

// UserStoryRepository управляет записями пользовательских историй.
type UserStoryRepository interface {
	Create(ctx context.Context, q DBTX, story *models.UserStory) error
	GetByID(ctx context.Context, q DBTX, id, userID uuid.UUID) (*models.UserStory, error)
	List(ctx context.Context, q DBTX, userID uuid.UUID, projectID *uuid.UUID) ([]models.UserStory, error)
	Update(ctx context.Context, q DBTX, story *models.UserStory) error
	// Delete молча завершается успехом, если записи нет или она чужая.
	Delete(ctx context.Context, q DBTX, id, userID uuid.UUID) error
	// DeleteByProject удаляет все истории проекта (каскад при удалении проекта).
	DeleteByProject(ctx context.Context, q DBTX, projectID, userID uuid.UUID) error
}

// UserRepository управляет учетными записями.
type UserRepository interface {
	Create(ctx context.Context, q DBTX, user *models.User) error
	GetByID(ctx context.Context, q DBTX, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, q DBTX, username string) (*models.User, error)
	GetByEmail(ctx context.Context, q DBTX, email string) (*models.User, error)
	Update(ctx context.Context, q DBTX, user *models.User) error
	// HasRole проверяет наличие роли по данным БД (аналог удаленной процедуры has_role).
	HasRole(ctx context.Context, q DBTX, userID uuid.UUID, role string) (bool, error)
}

// BlogPostRepository управляет записями блога.
type BlogPostRepository interface {
	Create(ctx context.Context, q DBTX, post *models.BlogPost) error
	GetBySlug(ctx context.Context, q DBTX, slug string) (*models.BlogPost, error)
	GetByID(ctx context.Context, q DBTX, id, authorID uuid.UUID) (*models.BlogPost, error)
	ListPublished(ctx context.Context, q DBTX, limit, offset int) ([]models.BlogPost, error)
	ListByAuthor(ctx context.Context, q DBTX, authorID uuid.UUID) ([]models.BlogPost, error)
	Update(ctx context.Context, q DBTX, post *models.BlogPost) error
	Delete(ctx context.Context, q DBTX, id, authorID uuid.UUID) error
}

// TokenRepository хранит выданные пары access/refresh токенов.
type TokenRepository interface {
	SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error
	GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error)
	GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error)
	DeleteTokens(ctx context.Context, accessUUID, refreshUUID string) error
	DeleteAllUserTokens(ctx context.Context, userID uuid.UUID) error
}
