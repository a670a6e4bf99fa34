package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowDefinition — версионированный шаблон бизнес-процесса.
//
// Definition — это "рецепт": направленный ациклический граф типизированных
// шагов с условными переходами. Один definition идентифицируется именем и
// имеет множество версий; instances запускаются только по активной версии.
//
// После активации definition неизменяем — любое изменение оформляется как
// новая версия, активация которой архивирует предыдущую.
type WorkflowDefinition struct {
	// ID — уникальный идентификатор версии definition.
	ID uuid.UUID `json:"id"`

	// Name — имя процесса. Версии с одним Name образуют одну линейку.
	Name string `json:"name"`

	// Version — номер версии (монотонный в рамках Name).
	Version int `json:"version"`

	// Status — статус версии: draft, active, archived.
	Status DefinitionStatus `json:"status"`

	// Description — описание назначения процесса.
	Description string `json:"description,omitempty"`

	// DeviceTypes — типы устройств, к которым применим процесс. Непустой.
	DeviceTypes []string `json:"device_types"`

	// ServiceTypes — типы сервисных заявок. Непустой.
	ServiceTypes []string `json:"service_types"`

	// CustomerTiers — уровни клиентов. Непустой.
	CustomerTiers []string `json:"customer_tiers"`

	// Steps — упорядоченный список шагов процесса.
	Steps []WorkflowStep `json:"steps"`

	// Metadata — произвольные метаданные авторинга.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedBy — автор версии.
	CreatedBy string `json:"created_by,omitempty"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}

// FindStep возвращает шаг по имени или nil, если шаг не найден.
func (d *WorkflowDefinition) FindStep(name string) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].Name == name {
			return &d.Steps[i]
		}
	}
	return nil
}

// StartSteps возвращает стартовые шаги — шаги без входящих переходов.
func (d *WorkflowDefinition) StartSteps() []WorkflowStep {
	incoming := make(map[string]int, len(d.Steps))
	for i := range d.Steps {
		for _, tr := range d.Steps[i].Transitions {
			incoming[tr.TargetStepName]++
		}
	}

	starts := make([]WorkflowStep, 0, 1)
	for i := range d.Steps {
		if incoming[d.Steps[i].Name] == 0 {
			starts = append(starts, d.Steps[i])
		}
	}
	return starts
}

// WorkflowStep — узел графа процесса.
type WorkflowStep struct {
	// Name — имя шага, уникальное в рамках definition.
	Name string `json:"name"`

	// Type — тип шага: manual, automatic, decision, parallel, wait.
	Type StepType `json:"type"`

	// Position — координаты шага на холсте авторинга.
	Position Position `json:"position"`

	// Config — типоспецифичная конфигурация шага.
	Config StepConfig `json:"config"`

	// Transitions — исходящие переходы.
	Transitions []WorkflowTransition `json:"transitions,omitempty"`
}

// Position — координаты шага для визуального редактора.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Типы исполнителей manual шагов.
const (
	AssigneeTypeRole = "role"
	AssigneeTypeUser = "user"
	AssigneeTypeAuto = "auto"
)

// StepConfig — конфигурация шага. Набор значимых полей зависит от типа:
//   - manual: AssigneeType/AssigneeValue, RequiredFields, AllowedActions
//   - wait: TimeoutMinutes
//   - automatic: AutomaticType + Params
//   - любой тип: AutoAdvanceConditions
type StepConfig struct {
	// AssigneeType — правило назначения исполнителя: role, user, auto.
	AssigneeType string `json:"assignee_type,omitempty"`

	// AssigneeValue — конкретная роль или пользователь.
	// Обязателен, если AssigneeType != auto.
	AssigneeValue string `json:"assignee_value,omitempty"`

	// TimeoutMinutes — таймаут wait шага в минутах. Если > 0, по истечении
	// таймаута шаг принудительно завершается таймером.
	TimeoutMinutes int `json:"timeout_minutes,omitempty"`

	// RequiredFields — поля, обязательные при выполнении шага.
	RequiredFields []string `json:"required_fields,omitempty"`

	// AllowedActions — действия, разрешённые исполнителю шага.
	AllowedActions []string `json:"allowed_actions,omitempty"`

	// AutoAdvanceConditions — если непустой и условия истинны на текущем
	// контексте, шаг завершается сразу после активации.
	AutoAdvanceConditions []Condition `json:"auto_advance_conditions,omitempty"`

	// AutomaticType — подтип automatic шага:
	// status_check, data_validation, calculation, integration.
	AutomaticType string `json:"automatic_type,omitempty"`

	// Params — произвольные параметры automatic шага.
	Params map[string]any `json:"params,omitempty"`
}

// WorkflowTransition — направленное ребро графа с охранными условиями.
//
// При завершении шага-источника движок вычисляет Conditions (AND-семантика,
// пустой список — всегда true); если условия истинны, выполняются Actions
// и активируется целевой шаг.
type WorkflowTransition struct {
	// Name — имя перехода (например, "approve", "reject", "escalate").
	Name string `json:"name"`

	// TargetStepName — имя целевого шага в том же definition.
	TargetStepName string `json:"target_step"`

	// Conditions — охранные условия, объединяются по AND.
	Conditions []Condition `json:"conditions,omitempty"`

	// Actions — побочные действия, выполняются при срабатывании перехода
	// независимо друг от друга.
	Actions []ActionDef `json:"actions,omitempty"`
}

// Condition — предикат field/operator/value над контекстом instance.
type Condition struct {
	// Field — dot-path к полю контекста (например, "case.priority").
	Field string `json:"field"`

	// Operator — оператор сравнения.
	Operator Operator `json:"operator"`

	// Value — правый операнд. Не требуется для exists/not_exists/is_empty/is_not_empty.
	Value any `json:"value,omitempty"`
}

// Operator — оператор охранного условия.
type Operator string

// Операторы условий.
const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpGreaterThan        Operator = "greater_than"
	OpLessThan           Operator = "less_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThanOrEqual    Operator = "less_than_or_equal"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpStartsWith         Operator = "starts_with"
	OpEndsWith           Operator = "ends_with"
	OpExists             Operator = "exists"
	OpNotExists          Operator = "not_exists"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
	OpRegex              Operator = "regex"
	OpIsEmpty            Operator = "is_empty"
	OpIsNotEmpty         Operator = "is_not_empty"
)

// ValidOperators — допустимые операторы условий.
var ValidOperators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true,
	OpGreaterThan: true, OpLessThan: true,
	OpGreaterThanOrEqual: true, OpLessThanOrEqual: true,
	OpContains: true, OpNotContains: true,
	OpStartsWith: true, OpEndsWith: true,
	OpExists: true, OpNotExists: true,
	OpIn: true, OpNotIn: true,
	OpRegex: true, OpIsEmpty: true, OpIsNotEmpty: true,
}

// RequiresValue возвращает true, если оператору нужен правый операнд.
func (o Operator) RequiresValue() bool {
	switch o {
	case OpExists, OpNotExists, OpIsEmpty, OpIsNotEmpty:
		return false
	default:
		return true
	}
}

// RequiresArrayValue возвращает true, если правый операнд должен быть массивом.
func (o Operator) RequiresArrayValue() bool {
	return o == OpIn || o == OpNotIn
}

// ActionType — тип побочного действия перехода.
type ActionType string

// Типы действий.
const (
	ActionNotification    ActionType = "notification"
	ActionAssignment      ActionType = "assignment"
	ActionStatusUpdate    ActionType = "status_update"
	ActionFieldUpdate     ActionType = "field_update"
	ActionWebhook         ActionType = "webhook"
	ActionEmail           ActionType = "email"
	ActionSMS             ActionType = "sms"
	ActionCreateDocument  ActionType = "create_document"
	ActionUpdateInventory ActionType = "update_inventory"
)

// ValidActionTypes — допустимые типы действий.
var ValidActionTypes = map[ActionType]bool{
	ActionNotification: true, ActionAssignment: true,
	ActionStatusUpdate: true, ActionFieldUpdate: true,
	ActionWebhook: true, ActionEmail: true, ActionSMS: true,
	ActionCreateDocument: true, ActionUpdateInventory: true,
}

// ActionDef — описание действия в definition.
type ActionDef struct {
	// Type — тип действия.
	Type ActionType `json:"type"`

	// Config — конфигурация действия. Строковые значения поддерживают
	// интерполяцию {{dot.path}} по контексту instance.
	Config map[string]any `json:"config,omitempty"`
}
