package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyforge-server/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check
var _ TokenRepository = (*redisTokenRepository)(nil)

type redisTokenRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenRepository creates a new Redis-backed TokenRepository.
func NewRedisTokenRepository(client *redis.Client, logger *zap.Logger) TokenRepository {
	return &redisTokenRepository{
		client: client,
		logger: logger.Named("RedisTokenRepo"),
	}
}

func accessKey(accessUUID string) string   { return fmt.Sprintf("access_uuid:%s", accessUUID) }
func refreshKey(refreshUUID string) string { return fmt.Sprintf("refresh_uuid:%s", refreshUUID) }
func userSetKey(userID uuid.UUID) string   { return fmt.Sprintf("user_tokens:%s", userID.String()) }

// SetToken stores token details in Redis:
//  1. access_uuid:{AccessUUID}  -> UserID (access TTL)
//  2. refresh_uuid:{RefreshUUID} -> UserID (refresh TTL)
//
// plus both identifiers in a per-user set for bulk revocation.
func (r *redisTokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	now := time.Now()
	accessTTL := time.Unix(td.AtExpires, 0).Sub(now)
	refreshTTL := time.Unix(td.RtExpires, 0).Sub(now)
	userIDStr := userID.String()

	pipe := r.client.Pipeline()
	pipe.Set(ctx, accessKey(td.AccessUUID), userIDStr, accessTTL)
	pipe.Set(ctx, refreshKey(td.RefreshUUID), userIDStr, refreshTTL)
	pipe.SAdd(ctx, userSetKey(userID), accessKey(td.AccessUUID), refreshKey(td.RefreshUUID))
	pipe.Expire(ctx, userSetKey(userID), refreshTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to set token details in redis", zap.Error(err), zap.String("userID", userIDStr))
		return fmt.Errorf("ошибка сохранения токенов: %w", err)
	}
	r.logger.Debug("Tokens stored in redis",
		zap.String("userID", userIDStr),
		zap.Duration("accessTTL", accessTTL),
		zap.Duration("refreshTTL", refreshTTL),
	)
	return nil
}

func (r *redisTokenRepository) getUserID(ctx context.Context, key string) (uuid.UUID, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, models.ErrTokenNotFound
		}
		return uuid.Nil, fmt.Errorf("ошибка чтения токена из redis: %w", err)
	}
	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("некорректный userID в redis: %w", err)
	}
	return userID, nil
}

func (r *redisTokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error) {
	return r.getUserID(ctx, accessKey(accessUUID))
}

func (r *redisTokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	return r.getUserID(ctx, refreshKey(refreshUUID))
}

// DeleteTokens удаляет пару токенов (logout текущей сессии).
func (r *redisTokenRepository) DeleteTokens(ctx context.Context, accessUUID, refreshUUID string) error {
	pipe := r.client.Pipeline()
	if accessUUID != "" {
		pipe.Del(ctx, accessKey(accessUUID))
	}
	if refreshUUID != "" {
		pipe.Del(ctx, refreshKey(refreshUUID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to delete tokens from redis", zap.Error(err))
		return fmt.Errorf("ошибка удаления токенов: %w", err)
	}
	return nil
}

// DeleteAllUserTokens отзывает все сессии пользователя (logout everywhere).
func (r *redisTokenRepository) DeleteAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	setKey := userSetKey(userID)
	keys, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("ошибка чтения набора токенов пользователя: %w", err)
	}
	pipe := r.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}
	pipe.Del(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to revoke all user tokens", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("ошибка отзыва токенов пользователя: %w", err)
	}
	r.logger.Info("All user tokens revoked", zap.String("userID", userID.String()), zap.Int("count", len(keys)))
	return nil
}
