package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyforge-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check
var _ ProjectRepository = (*pgProjectRepository)(nil)

type pgProjectRepository struct {
	logger *zap.Logger
}

// NewPgProjectRepository создает репозиторий проектов поверх PostgreSQL.
func NewPgProjectRepository(logger *zap.Logger) ProjectRepository {
	return &pgProjectRepository{logger: logger.Named("PgProjectRepo")}
}

func (r *pgProjectRepository) Create(ctx context.Context, q DBTX, project *models.Project) error {
	query := `
        INSERT INTO projects (id, user_id, name, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	logFields := []zap.Field{zap.String("projectID", project.ID.String()), zap.String("userID", project.UserID.String())}
	r.logger.Debug("Creating project", logFields...)

	_, err := q.Exec(ctx, query,
		project.ID, project.UserID, project.Name, project.Description,
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create project", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания проекта: %w", err)
	}
	r.logger.Info("Project created", logFields...)
	return nil
}

func (r *pgProjectRepository) GetByID(ctx context.Context, q DBTX, id, userID uuid.UUID) (*models.Project, error) {
	query := `
        SELECT id, user_id, name, description, created_at, updated_at
        FROM projects
        WHERE id = $1 AND user_id = $2
    `
	project := &models.Project{}
	err := q.QueryRow(ctx, query, id, userID).Scan(
		&project.ID, &project.UserID, &project.Name, &project.Description,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Project not found for user",
				zap.String("projectID", id.String()), zap.String("userID", userID.String()))
			return nil, models.ErrProjectNotFound
		}
		return nil, fmt.Errorf("ошибка чтения проекта: %w", err)
	}
	return project, nil
}

func (r *pgProjectRepository) List(ctx context.Context, q DBTX, userID uuid.UUID) ([]models.Project, error) {
	query := `
        SELECT id, user_id, name, description, created_at, updated_at
        FROM projects
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	var projects []models.Project
	if err := pgxscan.Select(ctx, q, &projects, query, userID); err != nil {
		r.logger.Error("Failed to list projects", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка проектов: %w", err)
	}
	return projects, nil
}

func (r *pgProjectRepository) Update(ctx context.Context, q DBTX, project *models.Project) error {
	query := `
        UPDATE projects
        SET name = $1, description = $2, updated_at = $3
        WHERE id = $4 AND user_id = $5
    `
	tag, err := q.Exec(ctx, query,
		project.Name, project.Description, time.Now().UTC(),
		project.ID, project.UserID,
	)
	if err != nil {
		r.logger.Error("Failed to update project", zap.String("projectID", project.ID.String()), zap.Error(err))
		return fmt.Errorf("ошибка обновления проекта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrProjectNotFound
	}
	return nil
}

func (r *pgProjectRepository) Delete(ctx context.Context, q DBTX, id, userID uuid.UUID) error {
	query := `DELETE FROM projects WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.String("projectID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка удаления проекта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrProjectNotFound
	}
	r.logger.Info("Project deleted", zap.String("projectID", id.String()), zap.String("userID", userID.String()))
	return nil
}
