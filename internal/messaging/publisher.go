package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EmailTaskPublisher defines the interface for publishing email tasks.
type EmailTaskPublisher interface {
	PublishEmailTask(ctx context.Context, payload EmailTaskPayload) error
}

// rabbitMQEmailPublisher implements EmailTaskPublisher for RabbitMQ.
type rabbitMQEmailPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQEmailPublisher открывает канал и объявляет очередь email-задач.
// Паблишер объявляет очередь сам, чтобы система не зависела от порядка
// запуска сервисов; параметры должны совпадать с консьюмером.
func NewRabbitMQEmailPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (EmailTaskPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("email publisher: не удалось открыть канал: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("email publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}
	logger.Info("EmailTaskPublisher: очередь объявлена", zap.String("queue", queueName))
	return &rabbitMQEmailPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("EmailPublisher"),
	}, nil
}

// PublishEmailTask публикует задачу в очередь. Вызывающие обязаны трактовать
// ошибку как "частичный успех" первичного действия, не как его провал.
func (p *rabbitMQEmailPublisher) PublishEmailTask(ctx context.Context, payload EmailTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("email publisher: ошибка сериализации payload: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(publishCtx,
		"",          // exchange (default)
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			MessageId:    payload.TaskID,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish email task",
			zap.String("taskID", payload.TaskID),
			zap.String("kind", string(payload.Kind)),
			zap.Error(err),
		)
		return fmt.Errorf("email publisher: ошибка публикации: %w", err)
	}
	p.logger.Debug("Email task published",
		zap.String("taskID", payload.TaskID),
		zap.String("kind", string(payload.Kind)),
	)
	return nil
}
