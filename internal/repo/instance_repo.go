package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Caseflow/internal/domain"
)

// InstanceRepo — репозиторий для работы с workflow instances.
type InstanceRepo struct {
	pool *pgxpool.Pool
}

// NewInstanceRepo создаёт новый InstanceRepo.
func NewInstanceRepo(pool *pgxpool.Pool) *InstanceRepo {
	return &InstanceRepo{pool: pool}
}

const instanceColumns = `
	id, definition_id, definition_version, case_ref, status, priority,
	context, started_by, started_at, completed_at, created_at
`

// Create создаёт новый instance.
func (r *InstanceRepo) Create(ctx context.Context, inst *domain.WorkflowInstance) error {
	contextJSON, err := json.Marshal(inst.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		INSERT INTO workflow_instances
			(id, definition_id, definition_version, case_ref, status, priority,
			 context, started_by, started_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = dbFrom(ctx, r.pool).Exec(ctx, query,
		inst.ID,
		inst.DefinitionID,
		inst.DefinitionVersion,
		inst.CaseRef,
		inst.Status,
		nullString(inst.Priority),
		contextJSON,
		nullString(inst.StartedBy),
		inst.StartedAt,
		inst.CompletedAt,
		inst.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// GetByID возвращает instance по ID.
func (r *InstanceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE id = $1
	`
	return r.scanInstance(dbFrom(ctx, r.pool).QueryRow(ctx, query, id))
}

// Update обновляет статус, контекст и времена instance.
func (r *InstanceRepo) Update(ctx context.Context, inst *domain.WorkflowInstance) error {
	contextJSON, err := json.Marshal(inst.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		UPDATE workflow_instances
		SET status = $2, context = $3, completed_at = $4
		WHERE id = $1
	`
	result, err := dbFrom(ctx, r.pool).Exec(ctx, query,
		inst.ID,
		inst.Status,
		contextJSON,
		inst.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InstanceFilter — параметры фильтрации instances.
type InstanceFilter struct {
	DefinitionID *uuid.UUID
	CaseRef      string
	Status       domain.InstanceStatus
	Limit        int
	Offset       int
}

// List возвращает список instances с фильтрацией.
func (r *InstanceRepo) List(ctx context.Context, filter InstanceFilter) ([]domain.WorkflowInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE ($1::uuid IS NULL OR definition_id = $1)
		  AND ($2::text IS NULL OR case_ref = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := dbFrom(ctx, r.pool).Query(ctx, query,
		nullUUID(filter.DefinitionID),
		nullString(filter.CaseRef),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []domain.WorkflowInstance
	for rows.Next() {
		inst, err := r.scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, *inst)
	}
	return instances, rows.Err()
}

// scanInstance сканирует instance из строки результата.
func (r *InstanceRepo) scanInstance(row pgx.Row) (*domain.WorkflowInstance, error) {
	var inst domain.WorkflowInstance
	var priority, startedBy *string
	var contextJSON []byte

	err := row.Scan(
		&inst.ID,
		&inst.DefinitionID,
		&inst.DefinitionVersion,
		&inst.CaseRef,
		&inst.Status,
		&priority,
		&contextJSON,
		&startedBy,
		&inst.StartedAt,
		&inst.CompletedAt,
		&inst.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan instance: %w", err)
	}

	if priority != nil {
		inst.Priority = *priority
	}
	if startedBy != nil {
		inst.StartedBy = *startedBy
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &inst.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	return &inst, nil
}
