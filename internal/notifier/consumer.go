package notifier

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storyforge-server/internal/messaging"
)

// Consumer читает email-задачи из очереди RabbitMQ и раздаёт их пулу воркеров.
type Consumer struct {
	conn        *amqp.Connection
	sender      EmailSender
	queueName   string
	concurrency int
	logger      *zap.Logger
}

func NewConsumer(conn *amqp.Connection, sender EmailSender, queueName string, concurrency int, logger *zap.Logger) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{
		conn:        conn,
		sender:      sender,
		queueName:   queueName,
		concurrency: concurrency,
		logger:      logger.Named("EmailConsumer"),
	}
}

// Run блокируется до отмены контекста или закрытия канала доставки.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		c.logger.Error("Не удалось открыть канал RabbitMQ", zap.Error(err))
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		c.logger.Error("Не удалось объявить очередь", zap.String("queue", c.queueName), zap.Error(err))
		return err
	}

	// Не выдаём воркеру новых сообщений, пока он не подтвердил текущие.
	if err := ch.Qos(c.concurrency, 0, false); err != nil {
		c.logger.Error("Не удалось установить QoS", zap.Error(err))
		return err
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",    // consumer tag
		false, // autoAck - подтверждаем вручную
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.logger.Error("Не удалось начать потребление", zap.Error(err))
		return err
	}

	c.logger.Info("Потребление email-задач запущено",
		zap.String("queue", q.Name),
		zap.Int("concurrency", c.concurrency),
	)

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, workerID, deliveries)
		}(i)
	}

	<-ctx.Done()
	c.logger.Info("Остановка потребителя email-задач...")
	// Закрытие канала завершает deliveries, воркеры выходят из цикла.
	_ = ch.Close()
	wg.Wait()
	return nil
}

func (c *Consumer) worker(ctx context.Context, workerID int, deliveries <-chan amqp.Delivery) {
	log := c.logger.With(zap.Int("worker_id", workerID))
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("Канал доставки закрыт, воркер завершается")
				return
			}
			c.handleDelivery(log, d)
		}
	}
}

func (c *Consumer) handleDelivery(log *zap.Logger, d amqp.Delivery) {
	var task messaging.EmailTaskPayload
	if err := json.Unmarshal(d.Body, &task); err != nil {
		log.Error("Не удалось разобрать email-задачу, сообщение отброшено", zap.Error(err))
		// Повторная доставка не поможет: тело не меняется.
		_ = d.Nack(false, false)
		return
	}

	log.Info("Получена email-задача",
		zap.String("task_id", task.TaskID),
		zap.String("kind", string(task.Kind)),
	)

	if err := c.sender.Send(task); err != nil {
		log.Error("Ошибка отправки письма",
			zap.String("task_id", task.TaskID),
			zap.Error(err),
		)
		// Один повтор через requeue; при повторной ошибке сообщение отбрасывается.
		_ = d.Nack(false, !d.Redelivered)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("Не удалось подтвердить сообщение", zap.String("task_id", task.TaskID), zap.Error(err))
	}
}
