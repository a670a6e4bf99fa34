package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowInstance — один запуск definition, привязанный к внешнему кейсу.
//
// Instance создаётся движком при start() и живёт до терминального статуса.
// Движок никогда не удаляет instances.
type WorkflowInstance struct {
	// ID — уникальный идентификатор instance.
	ID uuid.UUID `json:"id"`

	// DefinitionID — версия definition, по которой идёт выполнение.
	DefinitionID uuid.UUID `json:"definition_id"`

	// DefinitionVersion — номер версии definition (копия для удобства).
	DefinitionVersion int `json:"definition_version"`

	// CaseRef — внешняя ссылка на кейс (заявка, инцидент).
	CaseRef string `json:"case_ref"`

	// Status — текущий статус выполнения.
	Status InstanceStatus `json:"status"`

	// Priority — приоритет кейса (low, normal, high, urgent).
	Priority string `json:"priority,omitempty"`

	// Context — изменяемый набор переменных instance. Заполняется из данных
	// кейса при старте и пополняется execution data каждого шага.
	Context map[string]any `json:"context,omitempty"`

	// StartedBy — инициатор запуска.
	StartedBy string `json:"started_by,omitempty"`

	// StartedAt — время запуска.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время перехода в терминальный статус.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// IsFinished возвращает true, если instance в терминальном статусе.
func (i *WorkflowInstance) IsFinished() bool {
	return i.Status.IsTerminal()
}

// MergeContext вливает data в контекст instance. Ключи data перекрывают
// существующие.
func (i *WorkflowInstance) MergeContext(data map[string]any) {
	if len(data) == 0 {
		return
	}
	if i.Context == nil {
		i.Context = make(map[string]any, len(data))
	}
	for k, v := range data {
		i.Context[k] = v
	}
}

// MarkCompleted переводит instance в статус completed.
func (i *WorkflowInstance) MarkCompleted() {
	now := time.Now()
	i.Status = InstanceStatusCompleted
	i.CompletedAt = &now
}

// MarkCancelled переводит instance в статус cancelled.
func (i *WorkflowInstance) MarkCancelled() {
	now := time.Now()
	i.Status = InstanceStatusCancelled
	i.CompletedAt = &now
}

// MarkFailed переводит instance в статус failed.
func (i *WorkflowInstance) MarkFailed() {
	now := time.Now()
	i.Status = InstanceStatusFailed
	i.CompletedAt = &now
}

// MarkSuspended переводит instance в статус suspended.
func (i *WorkflowInstance) MarkSuspended() {
	i.Status = InstanceStatusSuspended
}

// MarkResumed возвращает instance в статус running.
func (i *WorkflowInstance) MarkResumed() {
	i.Status = InstanceStatusRunning
}
