package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyforge-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check
var _ UserStoryRepository = (*pgUserStoryRepository)(nil)

type pgUserStoryRepository struct {
	logger *zap.Logger
}

// NewPgUserStoryRepository создает репозиторий историй поверх PostgreSQL.
func NewPgUserStoryRepository(logger *zap.Logger) UserStoryRepository {
	return &pgUserStoryRepository{logger: logger.Named("PgUserStoryRepo")}
}

func (r *pgUserStoryRepository) Create(ctx context.Context, q DBTX, story *models.UserStory) error {
	query := `
        INSERT INTO user_stories
            (id, user_id, project_id, role, goal, benefit, story_text,
             priority, acceptance_criteria, additional_notes, created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	logFields := []zap.Field{zap.String("storyID", story.ID.String()), zap.String("userID", story.UserID.String())}
	r.logger.Debug("Creating user story", logFields...)

	_, err := q.Exec(ctx, query,
		story.ID, story.UserID, story.ProjectID,
		story.Role, story.Goal, story.Benefit, story.StoryText,
		story.Priority, story.AcceptanceCriteria, story.AdditionalNotes,
		story.CreatedAt, story.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания истории: %w", err)
	}
	r.logger.Info("User story created", logFields...)
	return nil
}

// storySelectColumns - общий список колонок с денормализованным именем
// проекта, подтягиваемым LEFT JOIN'ом на момент чтения.
const storySelectColumns = `
        s.id, s.user_id, s.project_id, COALESCE(p.name, ''),
        s.role, s.goal, s.benefit, s.story_text,
        s.priority, s.acceptance_criteria, s.additional_notes,
        s.created_at, s.updated_at
`

func scanStory(row pgx.Row) (*models.UserStory, error) {
	story := &models.UserStory{}
	err := row.Scan(
		&story.ID, &story.UserID, &story.ProjectID, &story.ProjectName,
		&story.Role, &story.Goal, &story.Benefit, &story.StoryText,
		&story.Priority, &story.AcceptanceCriteria, &story.AdditionalNotes,
		&story.CreatedAt, &story.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return story, nil
}

func (r *pgUserStoryRepository) GetByID(ctx context.Context, q DBTX, id, userID uuid.UUID) (*models.UserStory, error) {
	query := `
        SELECT ` + storySelectColumns + `
        FROM user_stories s
        LEFT JOIN projects p ON p.id = s.project_id
        WHERE s.id = $1 AND s.user_id = $2
    `
	story, err := scanStory(q.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStoryNotFound
		}
		return nil, fmt.Errorf("ошибка чтения истории: %w", err)
	}
	return story, nil
}

func (r *pgUserStoryRepository) List(ctx context.Context, q DBTX, userID uuid.UUID, projectID *uuid.UUID) ([]models.UserStory, error) {
	query := `
        SELECT ` + storySelectColumns + `
        FROM user_stories s
        LEFT JOIN projects p ON p.id = s.project_id
        WHERE s.user_id = $1 AND ($2::uuid IS NULL OR s.project_id = $2)
        ORDER BY s.created_at DESC
    `
	rows, err := q.Query(ctx, query, userID, projectID)
	if err != nil {
		r.logger.Error("Failed to list user stories", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка историй: %w", err)
	}
	defer rows.Close()

	var stories []models.UserStory
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории: %w", err)
		}
		stories = append(stories, *story)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк историй: %w", err)
	}
	return stories, nil
}

func (r *pgUserStoryRepository) Update(ctx context.Context, q DBTX, story *models.UserStory) error {
	query := `
        UPDATE user_stories
        SET project_id = $1, role = $2, goal = $3, benefit = $4,
            story_text = $5, priority = $6, acceptance_criteria = $7,
            additional_notes = $8, updated_at = $9
        WHERE id = $10 AND user_id = $11
    `
	tag, err := q.Exec(ctx, query,
		story.ProjectID, story.Role, story.Goal, story.Benefit,
		story.StoryText, story.Priority, story.AcceptanceCriteria,
		story.AdditionalNotes, time.Now().UTC(),
		story.ID, story.UserID,
	)
	if err != nil {
		r.logger.Error("Failed to update user story", zap.String("storyID", story.ID.String()), zap.Error(err))
		return fmt.Errorf("ошибка обновления истории: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

// Delete молча завершается успехом, если записи нет или она принадлежит
// другому пользователю: вызывающие не обязаны делать предварительную проверку.
func (r *pgUserStoryRepository) Delete(ctx context.Context, q DBTX, id, userID uuid.UUID) error {
	query := `DELETE FROM user_stories WHERE id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete user story", zap.String("storyID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка удаления истории: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("User story delete was a no-op",
			zap.String("storyID", id.String()), zap.String("userID", userID.String()))
	}
	return nil
}

func (r *pgUserStoryRepository) DeleteByProject(ctx context.Context, q DBTX, projectID, userID uuid.UUID) error {
	query := `DELETE FROM user_stories WHERE project_id = $1 AND user_id = $2`
	tag, err := q.Exec(ctx, query, projectID, userID)
	if err != nil {
		r.logger.Error("Failed to delete stories by project",
			zap.String("projectID", projectID.String()), zap.Error(err))
		return fmt.Errorf("ошибка каскадного удаления историй: %w", err)
	}
	r.logger.Info("Deleted stories for project",
		zap.String("projectID", projectID.String()),
		zap.Int64("count", tag.RowsAffected()),
	)
	return nil
}
