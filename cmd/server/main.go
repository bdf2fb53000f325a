package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"storyforge-server/internal/ai"
	"storyforge-server/internal/config"
	"storyforge-server/internal/events"
	"storyforge-server/internal/handler"
	"storyforge-server/internal/messaging"
	"storyforge-server/internal/repository"
	"storyforge-server/internal/service"
	"storyforge-server/migrations"
	"storyforge-server/pkg/logger"
	"storyforge-server/pkg/migration"
)

func main() {
	_ = godotenv.Load()
	log.Println("Запуск StoryForge Server...")

	// Загружаем конфиг ДО инициализации логгера
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)
	zapLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// Подключение к PostgreSQL
	dbPool, err := setupDatabase(cfg)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к БД", zap.Error(err))
	}
	defer dbPool.Close()
	zapLogger.Info("Успешное подключение к PostgreSQL", zap.String("dsn", cfg.GetMaskedDSN()))

	// Применяем миграции
	if err := migration.Up(dbPool, migrations.FS, "."); err != nil {
		zapLogger.Fatal("Не удалось применить миграции", zap.Error(err))
	}

	// Подключение к Redis (хранилище токенов)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zapLogger.Fatal("Не удалось подключиться к Redis", zap.Error(err))
		}
	}
	zapLogger.Info("Успешное подключение к Redis")

	// Подключение к RabbitMQ
	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()
	zapLogger.Info("Успешное подключение к RabbitMQ")

	// Клиент LLM
	aiClient, err := ai.NewClient(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать AI клиент", zap.Error(err))
	}

	// Репозитории
	projectRepo := repository.NewPgProjectRepository(zapLogger)
	storyRepo := repository.NewPgUserStoryRepository(zapLogger)
	userRepo := repository.NewPgUserRepository(zapLogger)
	blogRepo := repository.NewPgBlogPostRepository(zapLogger)
	tokenRepo := repository.NewRedisTokenRepository(redisClient, zapLogger)
	txBeginner := repository.NewPoolTxBeginner(dbPool)

	// Публикация email-задач
	emailPublisher, err := messaging.NewRabbitMQEmailPublisher(rabbitConn, cfg.EmailTaskQueue, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать EmailTaskPublisher", zap.Error(err))
	}

	// Шина событий и сервисы
	bus := events.NewBus(zapLogger)
	authService := service.NewAuthService(dbPool, userRepo, tokenRepo, emailPublisher, cfg, zapLogger)
	storyService := service.NewStoryService(dbPool, txBeginner, projectRepo, storyRepo, bus, zapLogger)
	flowService := service.NewFlowService(storyService, bus, service.FlowPolicy{
		MaxRetries:      cfg.FlowMaxRetries,
		RetryBackoff:    cfg.FlowRetryBackoff,
		GenerateTimeout: cfg.FlowGenerateTimeout,
		SafetyTimeout:   cfg.FlowSafetyTimeout,
	}, zapLogger)
	suggestionService := service.NewSuggestionService(aiClient, zapLogger)
	bulkService := service.NewBulkService(aiClient, storyService, zapLogger)
	blogService := service.NewBlogService(dbPool, blogRepo, userRepo, aiClient, zapLogger)
	contactService := service.NewContactService(emailPublisher, zapLogger)

	h := handler.NewHandler(
		authService, storyService, flowService,
		suggestionService, bulkService, blogService, contactService,
		bus, zapLogger,
	)

	// Настройка Gin
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	prom := ginprometheus.NewPrometheus("storyforge")
	prom.Use(router)

	h.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		zapLogger.Info("HTTP сервер запущен", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Ошибка запуска HTTP сервера", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Ошибка при graceful shutdown HTTP сервера", zap.Error(err))
	}

	log.Println("StoryForge Server успешно остановлен")
}

// setupDatabase инициализирует и возвращает пул соединений с БД
func setupDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул соединений: %w", err)
	}
	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД (ping failed): %w", err)
	}
	return dbPool, nil
}

// connectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
