package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
)

// TxRunner атомарно выполняет fn: все записи хранилищ внутри fn видны
// снаружи либо целиком, либо никак.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DefinitionStore — хранилище definitions, нужное движку.
type DefinitionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error)
	GetActiveByName(ctx context.Context, name string) (*domain.WorkflowDefinition, error)
}

// InstanceStore — хранилище instances.
type InstanceStore interface {
	Create(ctx context.Context, inst *domain.WorkflowInstance) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowInstance, error)
	Update(ctx context.Context, inst *domain.WorkflowInstance) error
}

// StepStore — хранилище step instances.
type StepStore interface {
	CreateBatch(ctx context.Context, steps []domain.WorkflowStepInstance) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStepInstance, error)
	ListByInstance(ctx context.Context, instanceID uuid.UUID) ([]domain.WorkflowStepInstance, error)
	Update(ctx context.Context, step *domain.WorkflowStepInstance) error

	// ListDueWaitSteps возвращает активные wait шаги с истёкшим таймаутом.
	ListDueWaitSteps(ctx context.Context, before time.Time, limit int) ([]domain.WorkflowStepInstance, error)
}
