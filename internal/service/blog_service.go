package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge-server/internal/ai"
	"storyforge-server/internal/models"
	"storyforge-server/internal/repository"
)

const blogSystemPrompt = "You are a content writer for a product blog about agile requirements " +
	"and user stories. Write in markdown, without a top-level title heading."

// BlogService - записи блога. Создание и правка доступны только роли admin,
// чтение опубликованного - всем.
type BlogService interface {
	CreatePost(ctx context.Context, authorID uuid.UUID, title, content string, published bool) (*models.BlogPost, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	ListPublished(ctx context.Context, limit, offset int) ([]models.BlogPost, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.BlogPost, error)
	UpdatePost(ctx context.Context, authorID, postID uuid.UUID, title, content string, published bool) (*models.BlogPost, error)
	DeletePost(ctx context.Context, authorID, postID uuid.UUID) error
	// DraftContent генерирует черновик поста по теме. Сбой не фатален.
	DraftContent(ctx context.Context, topic string) SuggestionResult
}

type blogServiceImpl struct {
	db       repository.DBTX
	posts    repository.BlogPostRepository
	users    repository.UserRepository
	aiClient ai.Client
	logger   *zap.Logger
}

var _ BlogService = (*blogServiceImpl)(nil)

func NewBlogService(
	db repository.DBTX,
	posts repository.BlogPostRepository,
	users repository.UserRepository,
	aiClient ai.Client,
	logger *zap.Logger,
) BlogService {
	return &blogServiceImpl{
		db:       db,
		posts:    posts,
		users:    users,
		aiClient: aiClient,
		logger:   logger.Named("BlogService"),
	}
}

func (s *blogServiceImpl) CreatePost(ctx context.Context, authorID uuid.UUID, title, content string, published bool) (*models.BlogPost, error) {
	if err := s.requireAdmin(ctx, authorID); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: title и content обязательны", models.ErrInvalidInput)
	}

	now := time.Now().UTC()
	post := &models.BlogPost{
		ID:        uuid.New(),
		AuthorID:  authorID,
		Title:     title,
		Slug:      Slugify(title),
		Content:   content,
		Published: published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, s.db, post); err != nil {
		return nil, fmt.Errorf("ошибка создания поста: %w", err)
	}

	s.logger.Info("Пост создан",
		zap.String("postID", post.ID.String()),
		zap.String("slug", post.Slug),
	)
	return post, nil
}

func (s *blogServiceImpl) GetPostBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	post, err := s.posts.GetBySlug(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}
	if !post.Published {
		// Неопубликованный пост для читателя неотличим от отсутствующего.
		return nil, models.ErrPostNotFound
	}
	return post, nil
}

func (s *blogServiceImpl) ListPublished(ctx context.Context, limit, offset int) ([]models.BlogPost, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.posts.ListPublished(ctx, s.db, limit, offset)
}

func (s *blogServiceImpl) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.BlogPost, error) {
	return s.posts.ListByAuthor(ctx, s.db, authorID)
}

func (s *blogServiceImpl) UpdatePost(ctx context.Context, authorID, postID uuid.UUID, title, content string, published bool) (*models.BlogPost, error) {
	if err := s.requireAdmin(ctx, authorID); err != nil {
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, s.db, postID, authorID)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: title и content обязательны", models.ErrInvalidInput)
	}

	post.Title = title
	post.Slug = Slugify(title)
	post.Content = content
	post.Published = published
	post.UpdatedAt = time.Now().UTC()

	if err := s.posts.Update(ctx, s.db, post); err != nil {
		return nil, fmt.Errorf("ошибка обновления поста: %w", err)
	}
	return post, nil
}

func (s *blogServiceImpl) DeletePost(ctx context.Context, authorID, postID uuid.UUID) error {
	if err := s.requireAdmin(ctx, authorID); err != nil {
		return err
	}
	return s.posts.Delete(ctx, s.db, postID, authorID)
}

func (s *blogServiceImpl) DraftContent(ctx context.Context, topic string) SuggestionResult {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return SuggestionResult{Success: false, Error: "topic is required"}
	}

	prompt := fmt.Sprintf("Write a blog post about: %s", topic)
	text, _, err := s.aiClient.GenerateText(ctx, blogSystemPrompt, prompt, longFormMaxTokens)
	if err != nil {
		s.logger.Warn("Черновик поста не сгенерирован", zap.Error(err))
		return SuggestionResult{Success: false, Error: "draft generation failed"}
	}
	return SuggestionResult{Success: true, Text: strings.TrimSpace(text)}
}

// requireAdmin проверяет роль по данным БД, а не по полям токена.
func (s *blogServiceImpl) requireAdmin(ctx context.Context, userID uuid.UUID) error {
	isAdmin, err := s.users.HasRole(ctx, s.db, userID, "ROLE_ADMIN")
	if err != nil {
		return fmt.Errorf("ошибка проверки роли: %w", err)
	}
	if !isAdmin {
		return models.ErrForbidden
	}
	return nil
}

// Slugify превращает заголовок в URL-совместимый слаг.
func Slugify(title string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		case !prevDash && b.Len() > 0:
			b.WriteRune('-')
			prevDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
