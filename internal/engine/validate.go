package engine

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/shaiso/Caseflow/internal/domain"
)

// Лимиты валидации по умолчанию.
const (
	defaultMaxNameLen        = 100
	defaultMaxDescriptionLen = 1000
	defaultMaxSteps          = 50
)

// Limits — лимиты валидации definition.
//
// Передаются явно при конструировании — глобального изменяемого состояния
// у валидатора нет.
type Limits struct {
	// MaxNameLen — максимальная длина имени definition (default: 100).
	MaxNameLen int

	// MaxDescriptionLen — максимальная длина описания (default: 1000).
	MaxDescriptionLen int

	// MaxSteps — максимальное количество шагов (default: 50).
	MaxSteps int
}

// Validator валидирует workflow definitions.
//
// Валидатор накапливает все нарушения вместо остановки на первом,
// чтобы авторинг мог показать полный список проблем за один проход.
type Validator struct {
	limits Limits
}

// NewValidator создаёт Validator с лимитами.
// Нулевые лимиты заменяются значениями по умолчанию.
func NewValidator(limits Limits) *Validator {
	if limits.MaxNameLen <= 0 {
		limits.MaxNameLen = defaultMaxNameLen
	}
	if limits.MaxDescriptionLen <= 0 {
		limits.MaxDescriptionLen = defaultMaxDescriptionLen
	}
	if limits.MaxSteps <= 0 {
		limits.MaxSteps = defaultMaxSteps
	}
	return &Validator{limits: limits}
}

// Validate выполняет полную структурную валидацию definition.
// Возвращает список всех нарушений (пустой — definition валиден).
func (v *Validator) Validate(def *domain.WorkflowDefinition) []FieldError {
	var errs []FieldError

	errs = append(errs, v.validateFields(def)...)
	errs = append(errs, v.validateSteps(def)...)
	errs = append(errs, v.validateGraph(def)...)

	return errs
}

// ValidateForActivation выполняет валидацию Validate плюс проверки,
// обязательные только для активации:
//   - хотя бы один конечный шаг (без исходящих переходов)
//   - каждый manual шаг имеет конкретного исполнителя (не auto)
//   - каждый decision шаг имеет ≥2 исходящих переходов
func (v *Validator) ValidateForActivation(def *domain.WorkflowDefinition) []FieldError {
	errs := v.Validate(def)

	if len(def.Steps) > 0 && len(EndStepNames(def)) == 0 {
		errs = append(errs, FieldError{
			Field:   "steps",
			Code:    CodeNoEndStep,
			Message: "workflow must have at least one end step (no outgoing transitions)",
		})
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		field := fmt.Sprintf("steps[%d]", i)

		if step.Type == domain.StepTypeManual {
			if step.Config.AssigneeType == domain.AssigneeTypeAuto || step.Config.AssigneeValue == "" {
				errs = append(errs, FieldError{
					Field:   field + ".config.assignee_value",
					Code:    CodeAutoAssignee,
					Message: fmt.Sprintf("manual step %q must have a concrete assignee before activation", step.Name),
				})
			}
		}

		if step.Type == domain.StepTypeDecision && len(step.Transitions) < 2 {
			errs = append(errs, FieldError{
				Field:   field + ".transitions",
				Code:    CodeTooFewBranches,
				Message: fmt.Sprintf("decision step %q must have at least 2 outgoing transitions", step.Name),
			})
		}
	}

	return errs
}

// validateFields проверяет поля уровня definition.
func (v *Validator) validateFields(def *domain.WorkflowDefinition) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(def.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Code: CodeRequired, Message: "name is required"})
	} else if len(def.Name) > v.limits.MaxNameLen {
		errs = append(errs, FieldError{
			Field:   "name",
			Code:    CodeTooLong,
			Message: fmt.Sprintf("name exceeds %d characters", v.limits.MaxNameLen),
		})
	}

	if len(def.Description) > v.limits.MaxDescriptionLen {
		errs = append(errs, FieldError{
			Field:   "description",
			Code:    CodeTooLong,
			Message: fmt.Sprintf("description exceeds %d characters", v.limits.MaxDescriptionLen),
		})
	}

	if len(def.DeviceTypes) == 0 {
		errs = append(errs, FieldError{Field: "device_types", Code: CodeEmptySet, Message: "at least one device type is required"})
	}
	if len(def.ServiceTypes) == 0 {
		errs = append(errs, FieldError{Field: "service_types", Code: CodeEmptySet, Message: "at least one service type is required"})
	}
	if len(def.CustomerTiers) == 0 {
		errs = append(errs, FieldError{Field: "customer_tiers", Code: CodeEmptySet, Message: "at least one customer tier is required"})
	}

	if len(def.Steps) == 0 {
		errs = append(errs, FieldError{Field: "steps", Code: CodeRequired, Message: "at least one step is required"})
	} else if len(def.Steps) > v.limits.MaxSteps {
		errs = append(errs, FieldError{
			Field:   "steps",
			Code:    CodeTooManySteps,
			Message: fmt.Sprintf("step count %d exceeds limit %d", len(def.Steps), v.limits.MaxSteps),
		})
	}

	return errs
}

// validateSteps проверяет каждый шаг и его переходы.
func (v *Validator) validateSteps(def *domain.WorkflowDefinition) []FieldError {
	var errs []FieldError

	names := make(map[string]bool, len(def.Steps))
	for i := range def.Steps {
		names[def.Steps[i].Name] = true
	}

	seen := make(map[string]bool, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		field := fmt.Sprintf("steps[%d]", i)

		if strings.TrimSpace(step.Name) == "" {
			errs = append(errs, FieldError{Field: field + ".name", Code: CodeRequired, Message: "step name is required"})
		} else if seen[step.Name] {
			errs = append(errs, FieldError{
				Field:   field + ".name",
				Code:    CodeDuplicateStep,
				Message: fmt.Sprintf("duplicate step name: %s", step.Name),
			})
		}
		seen[step.Name] = true

		if !domain.ValidStepTypes[step.Type] {
			errs = append(errs, FieldError{
				Field:   field + ".type",
				Code:    CodeUnknownType,
				Message: fmt.Sprintf("unknown step type: %s", step.Type),
			})
		}

		if math.IsNaN(step.Position.X) || math.IsInf(step.Position.X, 0) ||
			math.IsNaN(step.Position.Y) || math.IsInf(step.Position.Y, 0) {
			errs = append(errs, FieldError{
				Field:   field + ".position",
				Code:    CodeInvalidPosition,
				Message: "position coordinates must be finite numbers",
			})
		}

		errs = append(errs, v.validateStepConfig(step, field)...)

		for j := range step.Transitions {
			errs = append(errs, v.validateTransition(&step.Transitions[j],
				fmt.Sprintf("%s.transitions[%d]", field, j), names)...)
		}
	}

	return errs
}

// validateStepConfig проверяет типоспецифичную конфигурацию шага.
func (v *Validator) validateStepConfig(step *domain.WorkflowStep, field string) []FieldError {
	var errs []FieldError
	cfg := &step.Config

	if step.Type == domain.StepTypeManual {
		switch cfg.AssigneeType {
		case domain.AssigneeTypeRole, domain.AssigneeTypeUser:
			if cfg.AssigneeValue == "" {
				errs = append(errs, FieldError{
					Field:   field + ".config.assignee_value",
					Code:    CodeRequired,
					Message: fmt.Sprintf("assignee value is required for assignee type %q", cfg.AssigneeType),
				})
			}
		case domain.AssigneeTypeAuto:
			// auto допустим для draft, активация потребует конкретного исполнителя
		default:
			errs = append(errs, FieldError{
				Field:   field + ".config.assignee_type",
				Code:    CodeInvalidConfig,
				Message: "assignee type must be one of: role, user, auto",
			})
		}
	}

	if cfg.TimeoutMinutes < 0 {
		errs = append(errs, FieldError{
			Field:   field + ".config.timeout_minutes",
			Code:    CodeInvalidConfig,
			Message: "timeout must be a positive number of minutes",
		})
	}

	for j, cond := range cfg.AutoAdvanceConditions {
		errs = append(errs, v.validateCondition(cond,
			fmt.Sprintf("%s.config.auto_advance_conditions[%d]", field, j))...)
	}

	return errs
}

// validateTransition проверяет один переход.
func (v *Validator) validateTransition(tr *domain.WorkflowTransition, field string, stepNames map[string]bool) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(tr.Name) == "" {
		errs = append(errs, FieldError{Field: field + ".name", Code: CodeRequired, Message: "transition name is required"})
	}

	if strings.TrimSpace(tr.TargetStepName) == "" {
		errs = append(errs, FieldError{Field: field + ".target_step", Code: CodeRequired, Message: "transition target is required"})
	} else if !stepNames[tr.TargetStepName] {
		errs = append(errs, FieldError{
			Field:   field + ".target_step",
			Code:    CodeUnknownTarget,
			Message: fmt.Sprintf("transition targets unknown step: %s", tr.TargetStepName),
		})
	}

	for j, cond := range tr.Conditions {
		errs = append(errs, v.validateCondition(cond, fmt.Sprintf("%s.conditions[%d]", field, j))...)
	}

	for j, act := range tr.Actions {
		if !domain.ValidActionTypes[act.Type] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("%s.actions[%d].type", field, j),
				Code:    CodeUnknownAction,
				Message: fmt.Sprintf("unknown action type: %s", act.Type),
			})
		}
	}

	return errs
}

// validateCondition проверяет форму одного условия.
func (v *Validator) validateCondition(cond domain.Condition, field string) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cond.Field) == "" {
		errs = append(errs, FieldError{Field: field + ".field", Code: CodeRequired, Message: "condition field is required"})
	}

	if !domain.ValidOperators[cond.Operator] {
		errs = append(errs, FieldError{
			Field:   field + ".operator",
			Code:    CodeInvalidOperator,
			Message: fmt.Sprintf("unknown operator: %s", cond.Operator),
		})
		return errs
	}

	if cond.Operator.RequiresValue() && cond.Value == nil {
		errs = append(errs, FieldError{
			Field:   field + ".value",
			Code:    CodeMissingValue,
			Message: fmt.Sprintf("operator %s requires a value", cond.Operator),
		})
	}

	if cond.Operator.RequiresArrayValue() && cond.Value != nil {
		kind := reflect.ValueOf(cond.Value).Kind()
		if kind != reflect.Slice && kind != reflect.Array {
			errs = append(errs, FieldError{
				Field:   field + ".value",
				Code:    CodeArrayValue,
				Message: fmt.Sprintf("operator %s requires an array value", cond.Operator),
			})
		}
	}

	return errs
}

// validateGraph проверяет свойства графа целиком.
// Пропускается, если шагов нет (это уже отдельная ошибка).
func (v *Validator) validateGraph(def *domain.WorkflowDefinition) []FieldError {
	if len(def.Steps) == 0 {
		return nil
	}

	var errs []FieldError

	if len(StartStepNames(def)) == 0 {
		errs = append(errs, FieldError{
			Field:   "steps",
			Code:    CodeNoStartStep,
			Message: "workflow must have at least one start step (no incoming transitions)",
		})
	}

	// Недостижимый шаг — жёсткая ошибка, а не предупреждение
	for _, name := range UnreachableSteps(def) {
		errs = append(errs, FieldError{
			Field:   "steps",
			Code:    CodeUnreachable,
			Message: fmt.Sprintf("step %q is not reachable from any start step", name),
		})
	}

	if cycle := FindCycle(def); cycle != nil {
		errs = append(errs, FieldError{
			Field:   "steps",
			Code:    CodeCycle,
			Message: fmt.Sprintf("workflow graph contains a cycle: %s", strings.Join(cycle, " -> ")),
		})
	}

	return errs
}
