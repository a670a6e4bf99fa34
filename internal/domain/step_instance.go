package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStepInstance — состояние одного шага внутри instance.
//
// При старте instance создаётся по одному step instance на каждый шаг
// definition, все в статусе pending. Config шага снимается снапшотом на
// момент создания — последующие версии definition на него не влияют.
type WorkflowStepInstance struct {
	// ID — уникальный идентификатор step instance.
	ID uuid.UUID `json:"id"`

	// InstanceID — ссылка на родительский instance.
	InstanceID uuid.UUID `json:"instance_id"`

	// StepName — имя шага из definition.
	StepName string `json:"step_name"`

	// Type — тип шага (копия из definition).
	Type StepType `json:"type"`

	// Config — снапшот конфигурации шага на момент создания instance.
	Config StepConfig `json:"config"`

	// Status — текущий статус шага.
	Status StepStatus `json:"status"`

	// ActivatedBy — кто активировал шаг (пользователь или "engine").
	ActivatedBy string `json:"activated_by,omitempty"`

	// ActivatedAt — время активации.
	ActivatedAt *time.Time `json:"activated_at,omitempty"`

	// CompletedBy — кто завершил шаг.
	CompletedBy string `json:"completed_by,omitempty"`

	// CompletedAt — время завершения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ExecutionData — данные, переданные при выполнении шага.
	// Вливаются в контекст instance.
	ExecutionData map[string]any `json:"execution_data,omitempty"`

	// Comment — комментарий исполнителя.
	Comment string `json:"comment,omitempty"`

	// ErrorMessage — текст ошибки, если шаг failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// MarkActive активирует шаг.
func (s *WorkflowStepInstance) MarkActive(actor string) {
	now := time.Now()
	s.Status = StepStatusActive
	s.ActivatedBy = actor
	s.ActivatedAt = &now
}

// MarkCompleted завершает шаг с данными выполнения.
func (s *WorkflowStepInstance) MarkCompleted(actor string, data map[string]any, comment string) {
	now := time.Now()
	s.Status = StepStatusCompleted
	s.CompletedBy = actor
	s.CompletedAt = &now
	s.ExecutionData = data
	s.Comment = comment
}

// MarkFailed помечает шаг как failed с текстом ошибки.
func (s *WorkflowStepInstance) MarkFailed(errMsg string) {
	now := time.Now()
	s.Status = StepStatusFailed
	s.CompletedAt = &now
	s.ErrorMessage = errMsg
}

// MarkSuspended приостанавливает активный шаг.
func (s *WorkflowStepInstance) MarkSuspended() {
	s.Status = StepStatusSuspended
}

// MarkResumed возвращает приостановленный шаг в active.
func (s *WorkflowStepInstance) MarkResumed() {
	s.Status = StepStatusActive
}

// MarkCancelled отменяет шаг.
func (s *WorkflowStepInstance) MarkCancelled() {
	now := time.Now()
	s.Status = StepStatusCancelled
	s.CompletedAt = &now
}

// TimeoutAt возвращает момент истечения таймаута wait шага.
// Нулевое время — таймаут не применим (не wait, нет таймаута, не активен).
func (s *WorkflowStepInstance) TimeoutAt() time.Time {
	if s.Type != StepTypeWait || s.Config.TimeoutMinutes <= 0 {
		return time.Time{}
	}
	if s.Status != StepStatusActive || s.ActivatedAt == nil {
		return time.Time{}
	}
	return s.ActivatedAt.Add(time.Duration(s.Config.TimeoutMinutes) * time.Minute)
}
