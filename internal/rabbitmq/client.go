package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoArmGo/PhotoApp/internal/config"
	"github.com/GoArmGo/PhotoApp/internal/core/ports"
	"github.com/GoArmGo/PhotoApp/internal/domain"
	"github.com/GoArmGo/PhotoApp/internal/messaging/payloads"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client представляет собой клиент RabbitMQ для очереди ремонта производных
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	log     *slog.Logger
}

var (
	_ ports.PhotoRepairPublisher = (*Client)(nil)
	_ ports.PhotoRepairConsumer  = (*Client)(nil)
)

// NewClient создает и инициализирует новый клиент RabbitMQ
func NewClient(cfg *config.Config, log *slog.Logger) (*Client, error) {
	client := &Client{log: log}

	// Подключение к RabbitMQ
	conn, err := amqp.Dial(cfg.RabbitMQ.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	client.conn = conn

	// Открытие канала
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	client.channel = ch

	// Один необработанный ремонт на потребителя
	if err := ch.Qos(1, 0, false); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	// Объявление очереди идемпотентно
	q, err := ch.QueueDeclare(
		cfg.RabbitMQ.RabbitMQQueueName, // name
		true,                           // durable - очередь будет сохраняться при перезапуске RabbitMQ
		false,                          // delete when unused
		false,                          // exclusive
		false,                          // no-wait
		nil,                            // arguments
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to declare a queue: %w", err)
	}
	client.queue = q
	log.Info("rabbitmq queue declared", "queue", q.Name, "messages", q.Messages)

	return client, nil
}

// Close закрывает соединение и канал RabbitMQ
func (c *Client) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.log.Warn("error closing RabbitMQ channel", "error", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}
	c.log.Info("rabbitmq connection closed")
	return nil
}

// PublishPhotoRepairRequest публикует задачу на восстановление качества фото.
func (c *Client) PublishPhotoRepairRequest(ctx context.Context, payload payloads.PhotoRepairPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload to JSON: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		publishCtx,
		"",           // exchange
		c.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}
	c.log.Info("repair request published", "queue", c.queue.Name, "photo_id", payload.PhotoID, "quality", payload.Quality)
	return nil
}

// StartConsumingPhotoRepairRequests начинает потребление сообщений из очереди.
// Обработка идет в отдельной горутине до отмены ctx или закрытия канала.
func (c *Client) StartConsumingPhotoRepairRequests(ctx context.Context, handler func(context.Context, payloads.PhotoRepairPayload) error) error {
	msgs, err := c.channel.Consume(
		c.queue.Name, // queue
		"",           // consumer
		false,        // auto-ack (подтверждаем вручную)
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	c.log.Info("consumer registered", "queue", c.queue.Name)

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					c.log.Info("rabbitmq channel closed, stopping consumer")
					return
				}
				handleDelivery(ctx, c.log, msg, handler)
			case <-ctx.Done():
				c.log.Info("context cancelled, stopping rabbitmq consumer")
				return
			}
		}
	}()

	return nil
}

// handleDelivery разбирает сообщение, вызывает обработчик и подтверждает доставку.
// Неразборчивые сообщения и постоянные ошибки отбрасываются; временная ошибка
// возвращает сообщение в очередь один раз.
func handleDelivery(ctx context.Context, log *slog.Logger, msg amqp.Delivery, handler func(context.Context, payloads.PhotoRepairPayload) error) {
	var payload payloads.PhotoRepairPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		log.Warn("error unmarshalling message", "error", err, "body", string(msg.Body))
		if err := msg.Nack(false, false); err != nil {
			log.Error("error NACKing message after unmarshal failure", "error", err)
		}
		return
	}

	start := time.Now()
	err := handler(ctx, payload)
	if err == nil {
		if err := msg.Ack(false); err != nil {
			log.Error("error ACKing message", "error", err)
		}
		log.Info("repair request processed",
			"photo_id", payload.PhotoID,
			"quality", payload.Quality,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	requeue := !msg.Redelivered && !permanent(err)
	log.Error("error processing repair request",
		"photo_id", payload.PhotoID,
		"quality", payload.Quality,
		"requeue", requeue,
		"error", err,
	)
	if err := msg.Nack(false, requeue); err != nil {
		log.Error("error NACKing message after processing failure", "error", err)
	}
}

func permanent(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindBadInput, domain.KindNotFound:
		return true
	}
	return false
}
