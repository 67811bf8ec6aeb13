package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// StatRecomputePublisher defines the interface for publishing stat recompute
// triggers after committed ledger and leveling writes.
type StatRecomputePublisher interface {
	PublishStatRecompute(ctx context.Context, payload StatRecomputePayload) error
}

// ClientUpdatePublisher defines the interface for publishing turn updates to
// connected clients.
type ClientUpdatePublisher interface {
	PublishTurnUpdate(ctx context.Context, payload ClientTurnUpdatePayload) error
}

// rabbitMQPublisher implements both publisher interfaces for RabbitMQ.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQStatRecomputePublisher creates a new StatRecomputePublisher.
// Паблишер объявляет очередь сам, чтобы не зависеть от порядка запуска сервисов.
// Важно, чтобы параметры очереди совпадали с теми, что у консьюмера.
func NewRabbitMQStatRecomputePublisher(conn *amqp.Connection, logger *zap.Logger) (StatRecomputePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("stat recompute publisher: не удалось открыть канал: %w", err)
	}
	_, err = ch.QueueDeclare(StatRecomputeQueue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("stat recompute publisher: не удалось объявить очередь '%s': %w", StatRecomputeQueue, err)
	}
	logger.Info("StatRecomputePublisher: очередь успешно объявлена/найдена", zap.String("queue", StatRecomputeQueue))
	return &rabbitMQPublisher{channel: ch, queueName: StatRecomputeQueue, logger: logger.Named("StatRecomputePublisher")}, nil
}

// NewRabbitMQClientUpdatePublisher creates a new ClientUpdatePublisher.
func NewRabbitMQClientUpdatePublisher(conn *amqp.Connection, logger *zap.Logger) (ClientUpdatePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("client update publisher: не удалось открыть канал: %w", err)
	}
	_, err = ch.QueueDeclare(ClientUpdateQueue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("client update publisher: не удалось объявить очередь '%s': %w", ClientUpdateQueue, err)
	}
	logger.Info("ClientUpdatePublisher: очередь успешно объявлена/найдена", zap.String("queue", ClientUpdateQueue))
	return &rabbitMQPublisher{channel: ch, queueName: ClientUpdateQueue, logger: logger.Named("ClientUpdatePublisher")}, nil
}

// PublishStatRecompute publishes a stat recompute trigger.
func (p *rabbitMQPublisher) PublishStatRecompute(ctx context.Context, payload StatRecomputePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Ошибка сериализации StatRecomputePayload", zap.Error(err), zap.String("characterID", payload.CharacterID.String()))
		return fmt.Errorf("ошибка подготовки сообщения StatRecompute: %w", err)
	}
	return p.publishMessage(ctx, body)
}

// PublishTurnUpdate publishes a turn update for connected clients.
func (p *rabbitMQPublisher) PublishTurnUpdate(ctx context.Context, payload ClientTurnUpdatePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Ошибка сериализации ClientTurnUpdatePayload", zap.Error(err), zap.String("encounterID", payload.EncounterID.String()))
		return fmt.Errorf("ошибка подготовки сообщения ClientTurnUpdate: %w", err)
	}
	return p.publishMessage(ctx, body)
}

// publishMessage is a helper method for publishing a message.
func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		p.logger.Error("Ошибка публикации: канал RabbitMQ не инициализирован (nil)")
		return errors.New("канал RabbitMQ не инициализирован")
	}
	// Устанавливаем таймаут на публикацию
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	// Попытка публикации с retry до 3 раз
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (используем default)
			p.queueName, // routing key (имя очереди)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "campaign-server",
			},
		)
		if err == nil {
			break
		}
		p.logger.Warn("Ошибка публикации, повтор",
			zap.Int("attempt", attempt),
			zap.String("queue", p.queueName),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("ошибка публикации в очередь %s после retries: %w", p.queueName, err)
	}
	p.logger.Debug("Сообщение успешно опубликовано", zap.String("queue", p.queueName))
	return nil
}
