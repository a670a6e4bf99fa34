package domain

// DefinitionStatus — статус версии workflow definition.
//
// Жизненный цикл:
//
//	draft → active → archived
//
// В любой момент времени активна ровно одна версия на имя.
// Активация новой версии архивирует предыдущую.
type DefinitionStatus string

const (
	// DefinitionStatusDraft — черновик, можно редактировать через новые версии.
	DefinitionStatusDraft DefinitionStatus = "draft"

	// DefinitionStatusActive — активная версия, по ней запускаются instances.
	DefinitionStatusActive DefinitionStatus = "active"

	// DefinitionStatusArchived — архивная версия, запуск запрещён.
	DefinitionStatusArchived DefinitionStatus = "archived"
)

// InstanceStatus — статус выполнения workflow instance.
//
// Жизненный цикл:
//
//	running → completed
//	        ↘ failed
//	running ⇄ suspended
//	running/suspended → cancelled
type InstanceStatus string

const (
	// InstanceStatusRunning — instance выполняется.
	InstanceStatusRunning InstanceStatus = "running"

	// InstanceStatusSuspended — instance приостановлен оператором.
	InstanceStatusSuspended InstanceStatus = "suspended"

	// InstanceStatusCompleted — все активные шаги завершены.
	InstanceStatusCompleted InstanceStatus = "completed"

	// InstanceStatusCancelled — instance отменён оператором.
	InstanceStatusCancelled InstanceStatus = "cancelled"

	// InstanceStatusFailed — instance завершился с фатальной ошибкой.
	InstanceStatusFailed InstanceStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный (instance завершён).
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case InstanceStatusCompleted, InstanceStatusCancelled, InstanceStatusFailed:
		return true
	default:
		return false
	}
}

// StepStatus — статус step instance.
//
// Допустимые переходы:
//
//	pending → active
//	active → completed | failed | skipped | suspended | cancelled
//	suspended → active | cancelled
type StepStatus string

const (
	// StepStatusPending — шаг создан, но ещё не активирован.
	StepStatusPending StepStatus = "pending"

	// StepStatusActive — шаг активен и ожидает выполнения.
	StepStatusActive StepStatus = "active"

	// StepStatusCompleted — шаг успешно выполнен.
	StepStatusCompleted StepStatus = "completed"

	// StepStatusFailed — выполнение шага завершилось ошибкой.
	StepStatusFailed StepStatus = "failed"

	// StepStatusSkipped — шаг пропущен (условие перехода не выполнилось).
	StepStatusSkipped StepStatus = "skipped"

	// StepStatusSuspended — шаг приостановлен вместе с instance.
	StepStatusSuspended StepStatus = "suspended"

	// StepStatusCancelled — шаг отменён вместе с instance.
	StepStatusCancelled StepStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped, StepStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition проверяет, допустим ли переход в статус to.
func (s StepStatus) CanTransition(to StepStatus) bool {
	switch s {
	case StepStatusPending:
		return to == StepStatusActive
	case StepStatusActive:
		switch to {
		case StepStatusCompleted, StepStatusFailed, StepStatusSkipped,
			StepStatusSuspended, StepStatusCancelled:
			return true
		}
		return false
	case StepStatusSuspended:
		return to == StepStatusActive || to == StepStatusCancelled
	default:
		return false
	}
}

// StepType — тип шага workflow.
type StepType string

const (
	// StepTypeManual — шаг выполняется человеком (исполнитель по assignee rule).
	StepTypeManual StepType = "manual"

	// StepTypeAutomatic — шаг выполняется движком автоматически при активации.
	StepTypeAutomatic StepType = "automatic"

	// StepTypeDecision — точка ветвления, требует ≥2 исходящих переходов.
	StepTypeDecision StepType = "decision"

	// StepTypeParallel — точка разветвления на параллельные ветки.
	StepTypeParallel StepType = "parallel"

	// StepTypeWait — шаг ожидания с опциональным таймаутом.
	StepTypeWait StepType = "wait"
)

// ValidStepTypes — допустимые типы шагов.
var ValidStepTypes = map[StepType]bool{
	StepTypeManual:    true,
	StepTypeAutomatic: true,
	StepTypeDecision:  true,
	StepTypeParallel:  true,
	StepTypeWait:      true,
}
