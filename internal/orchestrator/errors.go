package orchestrator

import (
	"errors"
	"fmt"
)

// Ошибки движка.
var (
	// ErrDefinitionNotFound — definition не найден.
	ErrDefinitionNotFound = errors.New("definition not found")

	// ErrDefinitionNotActive — у definition нет активной версии.
	ErrDefinitionNotActive = errors.New("definition has no active version")

	// ErrNotApplicable — активная версия не применима к кейсу
	// (device type / service type / customer tier вне фильтров).
	ErrNotApplicable = errors.New("definition is not applicable to the case")

	// ErrInstanceNotFound — instance не найден.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrStepInstanceNotFound — step instance не найден в instance.
	ErrStepInstanceNotFound = errors.New("step instance not found")

	// ErrEngineStopped — движок остановлен.
	ErrEngineStopped = errors.New("engine stopped")
)

// PreconditionError — операция отвергнута из-за текущего состояния
// instance или шага. Состояние при этом не меняется.
type PreconditionError struct {
	// Op — имя отвергнутой операции.
	Op string

	// Reason — причина отказа.
	Reason string
}

// Error реализует error.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// precondition создаёт PreconditionError.
func precondition(op, format string, args ...any) *PreconditionError {
	return &PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsPrecondition возвращает true, если err — отказ по предусловию.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
