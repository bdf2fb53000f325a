package config

import (
	"fmt"
	"log"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	RabbitMQ          RabbitMQConfig
	SMTP              SMTPConfig
	Log               LogConfig
	EmailQueueName    string `yaml:"email_queue_name" env:"EMAIL_QUEUE_NAME" env-default:"email_tasks"`
	WorkerConcurrency int    `yaml:"worker_concurrency" env:"WORKER_CONCURRENCY" env-default:"5"`
}

type RabbitMQConfig struct {
	URI string `yaml:"uri" env:"RABBITMQ_URI" env-required:"true"`
}

type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-required:"true"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM" env-required:"true"`
	// Адрес, на который приходят контактные формы и обращения в поддержку.
	SupportInbox string `yaml:"support_inbox" env:"SMTP_SUPPORT_INBOX"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

func LoadConfig() (*Config, error) {
	configPath := "config.yml" // Путь по умолчанию

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v. Попытка чтения из переменных окружения.", configPath, err)
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
		}
	}

	log.Printf("Конфигурация notifier загружена. Email Queue: %s, SMTP Host: %s", cfg.EmailQueueName, cfg.SMTP.Host)
	return &cfg, nil
}
