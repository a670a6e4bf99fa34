package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Caseflow/internal/domain"
)

// StepRepo — репозиторий для работы с step instances.
type StepRepo struct {
	pool *pgxpool.Pool
}

// NewStepRepo создаёт новый StepRepo.
func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

const stepColumns = `
	id, instance_id, step_name, type, config, status,
	activated_by, activated_at, completed_by, completed_at,
	execution_data, comment, error_message, created_at
`

// CreateBatch создаёт step instances одним батчем.
func (r *StepRepo) CreateBatch(ctx context.Context, steps []domain.WorkflowStepInstance) error {
	if len(steps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range steps {
		si := &steps[i]

		configJSON, err := json.Marshal(si.Config)
		if err != nil {
			return fmt.Errorf("marshal config for step %s: %w", si.StepName, err)
		}

		batch.Queue(`
			INSERT INTO workflow_step_instances
				(id, instance_id, step_name, type, config, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			si.ID,
			si.InstanceID,
			si.StepName,
			si.Type,
			configJSON,
			si.Status,
			si.CreatedAt,
		)
	}

	results := dbFrom(ctx, r.pool).SendBatch(ctx, batch)
	defer results.Close()

	for range steps {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert step instance: %w", err)
		}
	}
	return nil
}

// GetByID возвращает step instance по ID.
func (r *StepRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStepInstance, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM workflow_step_instances
		WHERE id = $1
	`
	return r.scanStep(dbFrom(ctx, r.pool).QueryRow(ctx, query, id))
}

// ListByInstance возвращает все step instances одного instance.
func (r *StepRepo) ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]domain.WorkflowStepInstance, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM workflow_step_instances
		WHERE instance_id = $1
		ORDER BY created_at, step_name
	`
	rows, err := dbFrom(ctx, r.pool).Query(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list step instances: %w", err)
	}
	defer rows.Close()

	var steps []domain.WorkflowStepInstance
	for rows.Next() {
		si, err := r.scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *si)
	}
	return steps, rows.Err()
}

// Update обновляет состояние step instance.
func (r *StepRepo) Update(ctx context.Context, step *domain.WorkflowStepInstance) error {
	dataJSON, err := json.Marshal(step.ExecutionData)
	if err != nil {
		return fmt.Errorf("marshal execution data: %w", err)
	}

	query := `
		UPDATE workflow_step_instances
		SET status = $2, activated_by = $3, activated_at = $4,
		    completed_by = $5, completed_at = $6,
		    execution_data = $7, comment = $8, error_message = $9
		WHERE id = $1
	`
	result, err := dbFrom(ctx, r.pool).Exec(ctx, query,
		step.ID,
		step.Status,
		nullString(step.ActivatedBy),
		step.ActivatedAt,
		nullString(step.CompletedBy),
		step.CompletedAt,
		dataJSON,
		nullString(step.Comment),
		nullString(step.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("update step instance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDueWaitSteps возвращает активные wait шаги с истёкшим таймаутом.
//
// Учитываются только шаги running instances: таймауты приостановленных
// instances не срабатывают.
func (r *StepRepo) ListDueWaitSteps(ctx context.Context, before time.Time, limit int) ([]domain.WorkflowStepInstance, error) {
	query := `
		SELECT s.id, s.instance_id, s.step_name, s.type, s.config, s.status,
		       s.activated_by, s.activated_at, s.completed_by, s.completed_at,
		       s.execution_data, s.comment, s.error_message, s.created_at
		FROM workflow_step_instances s
		JOIN workflow_instances i ON i.id = s.instance_id
		WHERE s.type = 'wait'
		  AND s.status = 'active'
		  AND i.status = 'running'
		  AND (s.config->>'timeout_minutes')::int > 0
		  AND s.activated_at + ((s.config->>'timeout_minutes')::int * interval '1 minute') <= $1
		ORDER BY s.activated_at
		LIMIT $2
	`
	rows, err := dbFrom(ctx, r.pool).Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list due wait steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.WorkflowStepInstance
	for rows.Next() {
		si, err := r.scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *si)
	}
	return steps, rows.Err()
}

// scanStep сканирует step instance из строки результата.
func (r *StepRepo) scanStep(row pgx.Row) (*domain.WorkflowStepInstance, error) {
	var si domain.WorkflowStepInstance
	var activatedBy, completedBy, comment, errorMessage *string
	var configJSON, dataJSON []byte

	err := row.Scan(
		&si.ID,
		&si.InstanceID,
		&si.StepName,
		&si.Type,
		&configJSON,
		&si.Status,
		&activatedBy,
		&si.ActivatedAt,
		&completedBy,
		&si.CompletedAt,
		&dataJSON,
		&comment,
		&errorMessage,
		&si.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step instance: %w", err)
	}

	if activatedBy != nil {
		si.ActivatedBy = *activatedBy
	}
	if completedBy != nil {
		si.CompletedBy = *completedBy
	}
	if comment != nil {
		si.Comment = *comment
	}
	if errorMessage != nil {
		si.ErrorMessage = *errorMessage
	}
	if err := json.Unmarshal(configJSON, &si.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &si.ExecutionData); err != nil {
			return nil, fmt.Errorf("unmarshal execution data: %w", err)
		}
	}
	return &si, nil
}
