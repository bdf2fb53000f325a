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
var _ BlogPostRepository = (*pgBlogPostRepository)(nil)

type pgBlogPostRepository struct {
	logger *zap.Logger
}

// NewPgBlogPostRepository создает репозиторий блога поверх PostgreSQL.
func NewPgBlogPostRepository(logger *zap.Logger) BlogPostRepository {
	return &pgBlogPostRepository{logger: logger.Named("PgBlogPostRepo")}
}

func (r *pgBlogPostRepository) Create(ctx context.Context, q DBTX, post *models.BlogPost) error {
	query := `
        INSERT INTO blog_posts (id, author_id, title, slug, content, published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := q.Exec(ctx, query,
		post.ID, post.AuthorID, post.Title, post.Slug, post.Content,
		post.Published, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create blog post", zap.String("slug", post.Slug), zap.Error(err))
		return fmt.Errorf("ошибка создания поста: %w", err)
	}
	return nil
}

func (r *pgBlogPostRepository) GetBySlug(ctx context.Context, q DBTX, slug string) (*models.BlogPost, error) {
	query := `
        SELECT id, author_id, title, slug, content, published, created_at, updated_at
        FROM blog_posts WHERE slug = $1
    `
	post := &models.BlogPost{}
	err := q.QueryRow(ctx, query, slug).Scan(
		&post.ID, &post.AuthorID, &post.Title, &post.Slug,
		&post.Content, &post.Published, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPostNotFound
		}
		return nil, fmt.Errorf("ошибка чтения поста: %w", err)
	}
	return post, nil
}

func (r *pgBlogPostRepository) GetByID(ctx context.Context, q DBTX, id, authorID uuid.UUID) (*models.BlogPost, error) {
	query := `
        SELECT id, author_id, title, slug, content, published, created_at, updated_at
        FROM blog_posts WHERE id = $1 AND author_id = $2
    `
	post := &models.BlogPost{}
	err := q.QueryRow(ctx, query, id, authorID).Scan(
		&post.ID, &post.AuthorID, &post.Title, &post.Slug,
		&post.Content, &post.Published, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPostNotFound
		}
		return nil, fmt.Errorf("ошибка чтения поста: %w", err)
	}
	return post, nil
}

func (r *pgBlogPostRepository) ListPublished(ctx context.Context, q DBTX, limit, offset int) ([]models.BlogPost, error) {
	query := `
        SELECT id, author_id, title, slug, content, published, created_at, updated_at
        FROM blog_posts
        WHERE published = TRUE
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2
    `
	var posts []models.BlogPost
	if err := pgxscan.Select(ctx, q, &posts, query, limit, offset); err != nil {
		r.logger.Error("Failed to list published posts", zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка постов: %w", err)
	}
	return posts, nil
}

func (r *pgBlogPostRepository) ListByAuthor(ctx context.Context, q DBTX, authorID uuid.UUID) ([]models.BlogPost, error) {
	query := `
        SELECT id, author_id, title, slug, content, published, created_at, updated_at
        FROM blog_posts
        WHERE author_id = $1
        ORDER BY created_at DESC
    `
	var posts []models.BlogPost
	if err := pgxscan.Select(ctx, q, &posts, query, authorID); err != nil {
		r.logger.Error("Failed to list posts by author", zap.String("authorID", authorID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения постов автора: %w", err)
	}
	return posts, nil
}

func (r *pgBlogPostRepository) Update(ctx context.Context, q DBTX, post *models.BlogPost) error {
	query := `
        UPDATE blog_posts
        SET title = $1, slug = $2, content = $3, published = $4, updated_at = $5
        WHERE id = $6 AND author_id = $7
    `
	tag, err := q.Exec(ctx, query,
		post.Title, post.Slug, post.Content, post.Published,
		time.Now().UTC(), post.ID, post.AuthorID,
	)
	if err != nil {
		r.logger.Error("Failed to update blog post", zap.String("postID", post.ID.String()), zap.Error(err))
		return fmt.Errorf("ошибка обновления поста: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPostNotFound
	}
	return nil
}

func (r *pgBlogPostRepository) Delete(ctx context.Context, q DBTX, id, authorID uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM blog_posts WHERE id = $1 AND author_id = $2`, id, authorID)
	if err != nil {
		r.logger.Error("Failed to delete blog post", zap.String("postID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка удаления поста: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPostNotFound
	}
	return nil
}
