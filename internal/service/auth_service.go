package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storyforge-server/internal/config"
	"storyforge-server/internal/messaging"
	"storyforge-server/internal/models"
	"storyforge-server/internal/repository"
)

// AuthService - регистрация, вход и жизненный цикл токенов.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.TokenDetails, error)
	Logout(ctx context.Context, accessUUID, refreshTokenString string) error
	Refresh(ctx context.Context, refreshTokenString string) (*models.TokenDetails, error)
	VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, displayName, email string) (*models.User, error)
}

// Compile-time check to ensure authServiceImpl implements AuthService
var _ AuthService = (*authServiceImpl)(nil)

type authServiceImpl struct {
	db        repository.DBTX
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	publisher messaging.EmailTaskPublisher
	cfg       *config.Config
	logger    *zap.Logger
}

func NewAuthService(
	db repository.DBTX,
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	publisher messaging.EmailTaskPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) AuthService {
	return &authServiceImpl{
		db:        db,
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.Named("AuthService"),
	}
}

// Register creates a new user and queues a welcome email.
func (s *authServiceImpl) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	// Приводим email к нижнему регистру и убираем пробелы
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	logFields := []zap.Field{zap.String("username", username), zap.String("email", email)}
	s.logger.Info("Registering new user", logFields...)

	if _, err := mail.ParseAddress(email); err != nil {
		s.logger.Warn("Registration attempt with invalid email format", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("invalid email format: %w", models.ErrInvalidInput)
	}
	if username == "" || password == "" {
		s.logger.Warn("Registration attempt with empty username or password", logFields...)
		return nil, models.ErrInvalidInput
	}

	// Проверка существования пользователя по username
	existingUser, err := s.userRepo.GetByUsername(ctx, s.db, username)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		s.logger.Error("Error checking existing username during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("error checking existing username: %w", err)
	}
	if existingUser != nil {
		return nil, models.ErrUserAlreadyExists
	}

	// Проверка существования пользователя по email
	existingUser, err = s.userRepo.GetByEmail(ctx, s.db, email)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		s.logger.Error("Error checking existing email during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("error checking existing email: %w", err)
	}
	if existingUser != nil {
		return nil, models.ErrEmailAlreadyExists
	}

	hashedPassword, err := hashPassword(password, s.cfg.PasswordPepper)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		DisplayName:  username,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"ROLE_USER"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, s.db, user); err != nil {
		// Ошибки уникальности репозиторий уже привел к доменным.
		if !errors.Is(err, models.ErrUserAlreadyExists) && !errors.Is(err, models.ErrEmailAlreadyExists) {
			s.logger.Error("Failed to create user via repository", append(logFields, zap.Error(err))...)
		}
		return nil, err
	}

	s.logger.Info("User registered successfully", zap.String("userID", user.ID.String()), zap.String("username", user.Username))
	s.queueWelcomeEmail(user)
	return user, nil
}

// queueWelcomeEmail публикует задачу на приветственное письмо.
// Fire-and-forget: сбой логируется и никогда не откатывает регистрацию.
func (s *authServiceImpl) queueWelcomeEmail(user *models.User) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task := messaging.EmailTaskPayload{
		TaskID:    uuid.New().String(),
		Kind:      messaging.EmailKindWelcome,
		Recipient: user.Email,
		Fields: map[string]string{
			"display_name": user.DisplayName,
		},
	}
	if err := s.publisher.PublishEmailTask(ctx, task); err != nil {
		s.logger.Error("Non-critical: failed to queue welcome email",
			zap.String("userID", user.ID.String()),
			zap.Error(err),
		)
	}
}

// Login authenticates a user and returns token details.
func (s *authServiceImpl) Login(ctx context.Context, username, password string) (*models.TokenDetails, error) {
	s.logger.Info("Login attempt", zap.String("username", username))
	user, err := s.userRepo.GetByUsername(ctx, s.db, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.logger.Warn("Login failed: user not found", zap.String("username", username))
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("Login failed: error getting user from repository", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !checkPasswordHash(password, user.PasswordHash, s.cfg.PasswordPepper) {
		s.logger.Warn("Login failed: invalid password", zap.String("username", username))
		return nil, models.ErrInvalidCredentials
	}

	td, err := s.createTokens(user)
	if err != nil {
		s.logger.Error("Failed to create tokens during login", zap.Error(err), zap.String("userID", user.ID.String()))
		return nil, fmt.Errorf("failed to create tokens: %w", err)
	}

	if err := s.tokenRepo.SetToken(ctx, user.ID, td); err != nil {
		s.logger.Error("Failed to save token details during login", zap.Error(err), zap.String("userID", user.ID.String()))
		return nil, fmt.Errorf("failed to save token details: %w", err)
	}

	s.logger.Info("User logged in successfully", zap.String("userID", user.ID.String()))
	return td, nil
}

// Logout removes the access and refresh tokens from the store.
func (s *authServiceImpl) Logout(ctx context.Context, accessUUID, refreshTokenString string) error {
	log := s.logger.With(zap.String("accessUUID", accessUUID))

	// Refresh-токен может быть уже невалиден: выходу это не мешает.
	refreshUUID := ""
	if refreshTokenString != "" {
		if claims, err := s.parseClaims(refreshTokenString); err == nil {
			refreshUUID = claims.ID
		}
	}

	if err := s.tokenRepo.DeleteTokens(ctx, accessUUID, refreshUUID); err != nil {
		// Токены могли истечь сами: выход все равно успешен.
		log.Error("Failed to delete tokens during logout", zap.Error(err))
	}
	log.Info("User logged out")
	return nil
}

// Refresh issues new access and refresh tokens based on a valid refresh token.
func (s *authServiceImpl) Refresh(ctx context.Context, refreshTokenString string) (*models.TokenDetails, error) {
	s.logger.Info("Token refresh attempt") // Не логируем сам токен
	claims, err := s.parseClaims(refreshTokenString)
	if err != nil {
		return nil, err
	}

	refreshUUID := claims.ID
	userID, err := s.tokenRepo.GetUserIDByRefreshUUID(ctx, refreshUUID)
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			s.logger.Warn("Refresh attempt with invalid/revoked token in store", zap.String("refreshUUID", refreshUUID))
			return nil, models.ErrTokenNotFound
		}
		s.logger.Error("Error checking refresh token existence", zap.Error(err))
		return nil, fmt.Errorf("error checking refresh token existence: %w", err)
	}
	if userID != claims.UserID {
		s.logger.Error("Refresh token user ID mismatch",
			zap.String("tokenUserID", claims.UserID.String()),
			zap.String("storeUserID", userID.String()),
		)
		return nil, models.ErrTokenInvalid
	}

	user, err := s.userRepo.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user during refresh: %w", err)
	}

	newTd, err := s.createTokens(user)
	if err != nil {
		return nil, fmt.Errorf("failed to create new tokens during refresh: %w", err)
	}

	// Старую пару отзываем до сохранения новой; сбой некритичен.
	if err := s.tokenRepo.DeleteTokens(ctx, "", refreshUUID); err != nil {
		s.logger.Error("Non-critical: failed to delete old refresh token during refresh", zap.Error(err))
	}

	if err := s.tokenRepo.SetToken(ctx, userID, newTd); err != nil {
		s.logger.Error("Failed to save new token details during refresh", zap.Error(err))
		return nil, fmt.Errorf("failed to save new token details: %w", err)
	}

	s.logger.Info("Token refreshed successfully", zap.String("userID", userID.String()))
	return newTd, nil
}

// VerifyAccessToken parses the token and checks it against the token store.
func (s *authServiceImpl) VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error) {
	claims, err := s.parseClaims(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := s.tokenRepo.GetUserIDByAccessUUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			return nil, models.ErrTokenNotFound
		}
		return nil, fmt.Errorf("error checking access token existence: %w", err)
	}
	if userID != claims.UserID {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

func (s *authServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, s.db, userID)
}

// UpdateProfile меняет отображаемое имя и email профиля.
func (s *authServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName, email string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	displayName = strings.TrimSpace(displayName)
	email = strings.ToLower(strings.TrimSpace(email))
	if displayName == "" {
		return nil, fmt.Errorf("display name is required: %w", models.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email format: %w", models.ErrInvalidInput)
	}

	user.DisplayName = displayName
	user.Email = email
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, s.db, user); err != nil {
		return nil, err
	}
	s.logger.Info("Profile updated", zap.String("userID", userID.String()))
	return user, nil
}

// parseClaims разбирает и проверяет подпись JWT.
func (s *authServiceImpl) parseClaims(tokenString string) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, models.ErrTokenInvalid
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok || !token.Valid {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}

func applyPepper(password, pepper string) []byte {
	h := hmac.New(sha256.New, []byte(pepper))
	h.Write([]byte(password))
	return h.Sum(nil)
}

// hashPassword generates a bcrypt hash of the password after applying the pepper.
func hashPassword(password, pepper string) (string, error) {
	pepperedPassword := applyPepper(password, pepper)
	bytes, err := bcrypt.GenerateFromPassword(pepperedPassword, bcrypt.DefaultCost)
	return string(bytes), err
}

// checkPasswordHash compares a plain text password (after applying pepper) with a stored hash.
func checkPasswordHash(password, hash, pepper string) bool {
	pepperedPassword := applyPepper(password, pepper)
	err := bcrypt.CompareHashAndPassword([]byte(hash), pepperedPassword)
	return err == nil
}

// createTokens generates new access and refresh tokens for a user.
func (s *authServiceImpl) createTokens(user *models.User) (*models.TokenDetails, error) {
	td := &models.TokenDetails{}
	td.AtExpires = time.Now().Add(s.cfg.AccessTokenTTL).Unix()
	td.AccessUUID = uuid.New().String()
	td.RtExpires = time.Now().Add(s.cfg.RefreshTokenTTL).Unix()
	td.RefreshUUID = uuid.New().String()

	var err error
	td.AccessToken, err = s.signToken(user, td.AccessUUID, td.AtExpires)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	td.RefreshToken, err = s.signToken(user, td.RefreshUUID, td.RtExpires)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return td, nil
}

func (s *authServiceImpl) signToken(user *models.User, tokenUUID string, expiresAt int64) (string, error) {
	claims := &models.Claims{
		UserID: user.ID,
		Roles:  user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenUUID,
			ExpiresAt: jwt.NewNumericDate(time.Unix(expiresAt, 0)),
			Subject:   user.ID.String(),
			Issuer:    "storyforge-auth",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
