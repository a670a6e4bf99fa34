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

// DefinitionRepo — репозиторий для работы с workflow definitions.
type DefinitionRepo struct {
	pool *pgxpool.Pool
}

// NewDefinitionRepo создаёт новый DefinitionRepo.
func NewDefinitionRepo(pool *pgxpool.Pool) *DefinitionRepo {
	return &DefinitionRepo{pool: pool}
}

const definitionColumns = `
	id, name, version, status, description,
	device_types, service_types, customer_tiers,
	steps, metadata, created_by, created_at
`

// Create создаёт новую версию definition.
//
// Номер версии вычисляется внутри: MAX(version)+1 по имени. Новая версия
// всегда создаётся в статусе draft.
func (r *DefinitionRepo) Create(ctx context.Context, def *domain.WorkflowDefinition) error {
	stepsJSON, err := json.Marshal(def.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	metadataJSON, err := json.Marshal(def.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now()
	}
	def.Status = domain.DefinitionStatusDraft

	err = r.pool.QueryRow(ctx, `
		INSERT INTO workflow_definitions
			(id, name, version, status, description,
			 device_types, service_types, customer_tiers,
			 steps, metadata, created_by, created_at)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM workflow_definitions WHERE name = $2),
			$3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING version
	`,
		def.ID,
		def.Name,
		def.Status,
		nullString(def.Description),
		def.DeviceTypes,
		def.ServiceTypes,
		def.CustomerTiers,
		stepsJSON,
		metadataJSON,
		nullString(def.CreatedBy),
		def.CreatedAt,
	).Scan(&def.Version)
	if err != nil {
		return fmt.Errorf("insert definition: %w", err)
	}
	return nil
}

// GetByID возвращает версию definition по ID.
func (r *DefinitionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflow_definitions
		WHERE id = $1
	`
	return r.scanDefinition(r.pool.QueryRow(ctx, query, id))
}

// GetActiveByName возвращает активную версию definition по имени.
func (r *DefinitionRepo) GetActiveByName(ctx context.Context, name string) (*domain.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflow_definitions
		WHERE name = $1 AND status = 'active'
	`
	return r.scanDefinition(r.pool.QueryRow(ctx, query, name))
}

// GetByNameVersion возвращает конкретную версию definition.
func (r *DefinitionRepo) GetByNameVersion(ctx context.Context, name string, version int) (*domain.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflow_definitions
		WHERE name = $1 AND version = $2
	`
	return r.scanDefinition(r.pool.QueryRow(ctx, query, name, version))
}

// DefinitionFilter — параметры фильтрации definitions.
type DefinitionFilter struct {
	Name   string
	Status domain.DefinitionStatus
	Limit  int
	Offset int
}

// List возвращает список definitions с фильтрацией.
func (r *DefinitionRepo) List(ctx context.Context, filter DefinitionFilter) ([]domain.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflow_definitions
		WHERE ($1::text IS NULL OR name = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY name, version DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Name),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var defs []domain.WorkflowDefinition
	for rows.Next() {
		def, err := r.scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, rows.Err()
}

// ListVersions возвращает все версии definition по имени.
func (r *DefinitionRepo) ListVersions(ctx context.Context, name string) ([]domain.WorkflowDefinition, error) {
	return r.List(ctx, DefinitionFilter{Name: name, Limit: 1000})
}

// Activate активирует версию definition.
//
// В одной транзакции архивирует текущую активную версию того же имени и
// активирует указанную: в любой момент активна не более одной версии
// на имя.
func (r *DefinitionRepo) Activate(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var name string
	var status domain.DefinitionStatus
	err = tx.QueryRow(ctx, `
		SELECT name, status FROM workflow_definitions WHERE id = $1 FOR UPDATE
	`, id).Scan(&name, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock definition: %w", err)
	}

	if status == domain.DefinitionStatusArchived {
		return fmt.Errorf("%w: archived version cannot be activated", ErrInvalidState)
	}
	if status == domain.DefinitionStatusActive {
		return nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE workflow_definitions
		SET status = 'archived'
		WHERE name = $1 AND status = 'active'
	`, name)
	if err != nil {
		return fmt.Errorf("archive previous active: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE workflow_definitions
		SET status = 'active'
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("activate definition: %w", err)
	}

	return tx.Commit(ctx)
}

// Archive архивирует версию definition.
func (r *DefinitionRepo) Archive(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE workflow_definitions SET status = 'archived' WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("archive definition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanDefinition сканирует definition из строки результата.
func (r *DefinitionRepo) scanDefinition(row pgx.Row) (*domain.WorkflowDefinition, error) {
	var def domain.WorkflowDefinition
	var description, createdBy *string
	var stepsJSON, metadataJSON []byte

	err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Version,
		&def.Status,
		&description,
		&def.DeviceTypes,
		&def.ServiceTypes,
		&def.CustomerTiers,
		&stepsJSON,
		&metadataJSON,
		&createdBy,
		&def.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan definition: %w", err)
	}

	if description != nil {
		def.Description = *description
	}
	if createdBy != nil {
		def.CreatedBy = *createdBy
	}
	if err := json.Unmarshal(stepsJSON, &def.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &def.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &def, nil
}
