package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/events"
)

// EventRepo — репозиторий append-only журнала событий.
type EventRepo struct {
	pool *pgxpool.Pool
}

// NewEventRepo создаёт новый EventRepo.
func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Insert добавляет событие в журнал. События никогда не обновляются.
func (r *EventRepo) Insert(ctx context.Context, ev *domain.WorkflowEvent) error {
	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO workflow_events
			(id, instance_id, step_instance_id, type, payload, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = dbFrom(ctx, r.pool).Exec(ctx, query,
		ev.ID,
		ev.InstanceID,
		ev.StepInstanceID,
		ev.Type,
		payloadJSON,
		nullString(ev.Actor),
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List возвращает события по фильтру, новые первыми.
func (r *EventRepo) List(ctx context.Context, filter events.Filter) ([]domain.WorkflowEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	types := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		types = append(types, string(t))
	}

	query := `
		SELECT id, instance_id, step_instance_id, type, payload, actor, created_at
		FROM workflow_events
		WHERE ($1::uuid IS NULL OR instance_id = $1)
		  AND ($2::uuid IS NULL OR step_instance_id = $2)
		  AND ($3::text[] IS NULL OR type = ANY($3))
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
		ORDER BY created_at DESC, id DESC
		LIMIT $6 OFFSET $7
	`
	rows, err := dbFrom(ctx, r.pool).Query(ctx, query,
		nullUUID(filter.InstanceID),
		nullUUID(filter.StepInstanceID),
		nullStrings(types),
		nullTime(filter.Since),
		nullTime(filter.Until),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.WorkflowEvent
	for rows.Next() {
		ev, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// Timeline возвращает количество событий по дням за период.
func (r *EventRepo) Timeline(ctx context.Context, from, to time.Time) ([]events.TimelineBucket, error) {
	query := `
		SELECT date_trunc('day', created_at) AS day, COUNT(*)
		FROM workflow_events
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day
	`
	rows, err := dbFrom(ctx, r.pool).Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("event timeline: %w", err)
	}
	defer rows.Close()

	var buckets []events.TimelineBucket
	for rows.Next() {
		var b events.TimelineBucket
		if err := rows.Scan(&b.Day, &b.Count); err != nil {
			return nil, fmt.Errorf("scan timeline bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// Stats возвращает агрегированную статистику журнала.
func (r *EventRepo) Stats(ctx context.Context, filter events.Filter) (*events.Stats, error) {
	query := `
		SELECT type, COUNT(*)
		FROM workflow_events
		WHERE ($1::uuid IS NULL OR instance_id = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		GROUP BY type
	`
	rows, err := dbFrom(ctx, r.pool).Query(ctx, query,
		nullUUID(filter.InstanceID),
		nullTime(filter.Since),
		nullTime(filter.Until),
	)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	defer rows.Close()

	stats := &events.Stats{ByType: make(map[string]int64)}
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("scan event stats: %w", err)
		}
		stats.ByType[eventType] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// scanEvent сканирует событие из строки результата.
func (r *EventRepo) scanEvent(row pgx.Row) (*domain.WorkflowEvent, error) {
	var ev domain.WorkflowEvent
	var actor *string
	var payloadJSON []byte

	err := row.Scan(
		&ev.ID,
		&ev.InstanceID,
		&ev.StepInstanceID,
		&ev.Type,
		&payloadJSON,
		&actor,
		&ev.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	if actor != nil {
		ev.Actor = *actor
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &ev.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &ev, nil
}
