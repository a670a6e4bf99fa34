package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Caseflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeInstanceStart MessageType = "instance.start"
	MessageTypeStepTimeout   MessageType = "step.timeout"
	MessageTypeWorkflowEvent MessageType = "workflow.event"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload json.RawMessage `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// InstanceStartPayload — запрос на запуск instance через очередь.
// Публикуется таймером по расписанию или внешними системами.
type InstanceStartPayload struct {
	// DefinitionName — имя процесса; запуск идёт по активной версии.
	DefinitionName string `json:"definition_name"`

	// CaseRef — внешняя ссылка на кейс.
	CaseRef string `json:"case_ref"`

	// Priority — приоритет кейса.
	Priority string `json:"priority,omitempty"`

	// Context — стартовый контекст instance.
	Context map[string]any `json:"context,omitempty"`

	// StartedBy — инициатор ("scheduler", имя внешней системы).
	StartedBy string `json:"started_by,omitempty"`

	// ScheduleID — расписание-источник, если запуск по расписанию.
	ScheduleID *uuid.UUID `json:"schedule_id,omitempty"`
}

// StepTimeoutPayload — уведомление об истёкшем таймауте wait шага.
type StepTimeoutPayload struct {
	InstanceID     uuid.UUID `json:"instance_id"`
	StepInstanceID uuid.UUID `json:"step_instance_id"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishInstanceStart публикует запрос на запуск instance.
// Потребитель: Engine.
func (p *Publisher) PublishInstanceStart(ctx context.Context, payload InstanceStartPayload) error {
	return p.publishJSON(ctx, ExchangeInstances, RoutingKeyStart, MessageTypeInstanceStart, payload)
}

// PublishStepTimeout публикует уведомление об истёкшем таймауте wait шага.
// Потребитель: Engine. Обработка идемпотентна — дубликаты безопасны.
func (p *Publisher) PublishStepTimeout(ctx context.Context, instanceID, stepInstanceID uuid.UUID) error {
	payload := StepTimeoutPayload{
		InstanceID:     instanceID,
		StepInstanceID: stepInstanceID,
	}
	return p.publishJSON(ctx, ExchangeTimeouts, RoutingKeyTimeout, MessageTypeStepTimeout, payload)
}

// PublishEvent публикует событие журнала в fanout обменник.
// Потребители: внешние системы со своими очередями.
func (p *Publisher) PublishEvent(ctx context.Context, ev *domain.WorkflowEvent) error {
	return p.publishJSON(ctx, ExchangeEvents, "", MessageTypeWorkflowEvent, ev)
}

// publishJSON сериализует payload и публикует сообщение.
func (p *Publisher) publishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
