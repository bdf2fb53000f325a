package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyforge-server/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Compile-time check
var _ UserRepository = (*pgUserRepository)(nil)

type pgUserRepository struct {
	logger *zap.Logger
}

// NewPgUserRepository создает репозиторий пользователей поверх PostgreSQL.
func NewPgUserRepository(logger *zap.Logger) UserRepository {
	return &pgUserRepository{logger: logger.Named("PgUserRepo")}
}

const userColumns = `id, username, display_name, email, password_hash, roles, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.Email,
		&user.PasswordHash, &user.Roles, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, q DBTX, user *models.User) error {
	query := `
        INSERT INTO users (id, username, display_name, email, password_hash, roles, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := q.Exec(ctx, query,
		user.ID, user.Username, user.DisplayName, user.Email,
		user.PasswordHash, user.Roles, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		// Нарушение уникальности превращаем в доменные ошибки
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return models.ErrEmailAlreadyExists
			}
			return models.ErrUserAlreadyExists
		}
		r.logger.Error("Failed to create user", zap.String("username", user.Username), zap.Error(err))
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	r.logger.Info("User created", zap.String("userID", user.ID.String()), zap.String("username", user.Username))
	return nil
}

func (r *pgUserRepository) GetByID(ctx context.Context, q DBTX, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) GetByUsername(ctx context.Context, q DBTX, username string) (*models.User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения пользователя по username: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) GetByEmail(ctx context.Context, q DBTX, email string) (*models.User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения пользователя по email: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) Update(ctx context.Context, q DBTX, user *models.User) error {
	query := `
        UPDATE users
        SET display_name = $1, email = $2, password_hash = $3, roles = $4, updated_at = $5
        WHERE id = $6
    `
	tag, err := q.Exec(ctx, query,
		user.DisplayName, user.Email, user.PasswordHash, user.Roles,
		time.Now().UTC(), user.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update user", zap.String("userID", user.ID.String()), zap.Error(err))
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// HasRole - серверная проверка роли по колонке roles (аналог хранимой
// процедуры has_role(user_id, role)).
func (r *pgUserRepository) HasRole(ctx context.Context, q DBTX, userID uuid.UUID, role string) (bool, error) {
	var has bool
	err := q.QueryRow(ctx, `SELECT $2 = ANY(roles) FROM users WHERE id = $1`, userID, role).Scan(&has)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, models.ErrUserNotFound
		}
		return false, fmt.Errorf("ошибка проверки роли: %w", err)
	}
	return has, nil
}
