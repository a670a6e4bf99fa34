package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
)

// Store — хранилище событий.
type Store interface {
	Insert(ctx context.Context, ev *domain.WorkflowEvent) error
	List(ctx context.Context, filter Filter) ([]domain.WorkflowEvent, error)
	Timeline(ctx context.Context, from, to time.Time) ([]TimelineBucket, error)
	Stats(ctx context.Context, filter Filter) (*Stats, error)
}

// Publisher публикует событие во внешний fan-out (RabbitMQ).
type Publisher interface {
	PublishEvent(ctx context.Context, ev *domain.WorkflowEvent) error
}

// Filter — параметры выборки событий.
type Filter struct {
	InstanceID     *uuid.UUID
	StepInstanceID *uuid.UUID
	Types          []domain.EventType
	Since          time.Time
	Until          time.Time
	Limit          int
	Offset         int
}

// TimelineBucket — количество событий за один день.
type TimelineBucket struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// Stats — агрегированная статистика журнала.
type Stats struct {
	Total  int64            `json:"total"`
	ByType map[string]int64 `json:"by_type"`
}

// Log — журнал событий workflow.
//
// Запись fire-and-forget: Record не возвращает ошибку, отказ хранилища
// или брокера логируется и глотается. Выполнение workflow никогда не
// зависит от доступности журнала.
type Log struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

// Config — конфигурация Log.
type Config struct {
	// Store — хранилище событий (обязательно).
	Store Store

	// Publisher — fan-out во внешние системы. Nil — публикация выключена.
	Publisher Publisher

	// Logger — логгер.
	Logger *slog.Logger
}

// NewLog создаёт журнал событий.
func NewLog(cfg Config) *Log {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}

// Record записывает событие в журнал и публикует его во внешний fan-out.
//
// Отказ любой из сторон не возвращается вызывающему.
func (l *Log) Record(ctx context.Context, ev *domain.WorkflowEvent) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	if err := l.store.Insert(ctx, ev); err != nil {
		l.logger.Error("failed to persist workflow event",
			"event_type", ev.Type,
			"instance_id", ev.InstanceID,
			"error", err,
		)
	}

	if l.publisher != nil {
		if err := l.publisher.PublishEvent(ctx, ev); err != nil {
			l.logger.Warn("failed to publish workflow event",
				"event_type", ev.Type,
				"instance_id", ev.InstanceID,
				"error", err,
			)
		}
	}
}

// Workflow записывает событие уровня instance.
func (l *Log) Workflow(ctx context.Context, instanceID uuid.UUID, eventType domain.EventType, actor string, payload map[string]any) {
	l.Record(ctx, &domain.WorkflowEvent{
		InstanceID: instanceID,
		Type:       eventType,
		Actor:      actor,
		Payload:    payload,
	})
}

// Step записывает событие уровня шага.
func (l *Log) Step(ctx context.Context, instanceID, stepInstanceID uuid.UUID, eventType domain.EventType, actor string, payload map[string]any) {
	l.Record(ctx, &domain.WorkflowEvent{
		InstanceID:     instanceID,
		StepInstanceID: &stepInstanceID,
		Type:           eventType,
		Actor:          actor,
		Payload:        payload,
	})
}

// List возвращает события по фильтру, новые первыми.
func (l *Log) List(ctx context.Context, filter Filter) ([]domain.WorkflowEvent, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return l.store.List(ctx, filter)
}

// Timeline возвращает количество событий по дням за период.
func (l *Log) Timeline(ctx context.Context, from, to time.Time) ([]TimelineBucket, error) {
	return l.store.Timeline(ctx, from, to)
}

// Stats возвращает агрегированную статистику журнала.
func (l *Log) Stats(ctx context.Context, filter Filter) (*Stats, error) {
	return l.store.Stats(ctx, filter)
}
