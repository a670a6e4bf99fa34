package engine

import (
	"fmt"
)

// Коды ошибок валидации definition.
const (
	CodeRequired        = "required"
	CodeTooLong         = "too_long"
	CodeEmptySet        = "empty_set"
	CodeTooManySteps    = "too_many_steps"
	CodeDuplicateStep   = "duplicate_step"
	CodeUnknownType     = "unknown_type"
	CodeInvalidPosition = "invalid_position"
	CodeInvalidConfig   = "invalid_config"
	CodeUnknownTarget   = "unknown_target"
	CodeInvalidOperator = "invalid_operator"
	CodeMissingValue    = "missing_value"
	CodeArrayValue      = "array_value_required"
	CodeUnknownAction   = "unknown_action"
	CodeNoStartStep     = "no_start_step"
	CodeNoEndStep       = "no_end_step"
	CodeUnreachable     = "unreachable_step"
	CodeCycle           = "cycle_detected"
	CodeAutoAssignee    = "auto_assignee"
	CodeTooFewBranches  = "too_few_branches"
)

// FieldError — одно нарушение правил валидации.
type FieldError struct {
	// Field — путь к полю ("steps[2].transitions[0].target_step").
	Field string `json:"field"`

	// Code — машиночитаемый код нарушения.
	Code string `json:"code"`

	// Message — человекочитаемое описание.
	Message string `json:"message"`
}

// ValidationError — ошибка валидации со списком всех нарушений.
//
// Валидатор не останавливается на первой ошибке — caller получает полный
// список и может показать все проблемы за один проход.
type ValidationError struct {
	Errors []FieldError
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation failed: %d violations (first: %s: %s)",
		len(e.Errors), e.Errors[0].Field, e.Errors[0].Message)
}

// AsError оборачивает список нарушений в ValidationError.
// Возвращает nil, если список пуст.
func AsError(errs []FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}
