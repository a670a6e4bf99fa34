package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события audit trail.
type EventType string

// Типы событий.
const (
	EventWorkflowStarted    EventType = "workflow_started"
	EventWorkflowCompleted  EventType = "workflow_completed"
	EventWorkflowSuspended  EventType = "workflow_suspended"
	EventWorkflowResumed    EventType = "workflow_resumed"
	EventWorkflowCancelled  EventType = "workflow_cancelled"
	EventStepActivated      EventType = "step_activated"
	EventStepCompleted      EventType = "step_completed"
	EventStepFailed         EventType = "step_failed"
	EventStepSkipped        EventType = "step_skipped"
	EventStepTimeout        EventType = "step_timeout"
	EventTransitionExecuted EventType = "transition_executed"
)

// WorkflowEvent — запись append-only журнала событий.
//
// События пишутся движком на каждое изменение состояния и никогда не
// изменяются и не удаляются (политика retention — внешняя забота).
type WorkflowEvent struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// InstanceID — instance, к которому относится событие.
	InstanceID uuid.UUID `json:"instance_id"`

	// StepInstanceID — step instance, если событие относится к шагу.
	StepInstanceID *uuid.UUID `json:"step_instance_id,omitempty"`

	// Type — тип события.
	Type EventType `json:"type"`

	// Payload — детали события.
	Payload map[string]any `json:"payload,omitempty"`

	// Actor — инициатор изменения (пользователь, "engine", "timer").
	Actor string `json:"actor,omitempty"`

	// CreatedAt — время события.
	CreatedAt time.Time `json:"created_at"`
}
