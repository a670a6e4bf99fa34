package engine

import (
	"testing"

	"github.com/shaiso/Caseflow/internal/domain"
)

// validDefinition — минимальный валидный definition для тестов.
func validDefinition() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		Name:          "repair-flow",
		DeviceTypes:   []string{"pump"},
		ServiceTypes:  []string{"repair"},
		CustomerTiers: []string{"gold"},
		Steps: []domain.WorkflowStep{
			{
				Name: "triage",
				Type: domain.StepTypeManual,
				Config: domain.StepConfig{
					AssigneeType:  domain.AssigneeTypeRole,
					AssigneeValue: "dispatcher",
				},
				Transitions: []domain.WorkflowTransition{
					{Name: "done", TargetStepName: "close"},
				},
			},
			{
				Name: "close",
				Type: domain.StepTypeManual,
				Config: domain.StepConfig{
					AssigneeType:  domain.AssigneeTypeRole,
					AssigneeValue: "manager",
				},
			},
		},
	}
}

func hasCode(errs []FieldError, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func TestValidate_ValidDefinition(t *testing.T) {
	v := NewValidator(Limits{})

	errs := v.Validate(validDefinition())
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_AccumulatesAllViolations(t *testing.T) {
	v := NewValidator(Limits{})

	def := validDefinition()
	def.Name = ""
	def.DeviceTypes = nil
	def.Steps[0].Transitions[0].TargetStepName = "nowhere"

	errs := v.Validate(def)
	if len(errs) < 3 {
		t.Errorf("expected at least 3 accumulated errors, got %d: %v", len(errs), errs)
	}
	if !hasCode(errs, CodeRequired) || !hasCode(errs, CodeEmptySet) || !hasCode(errs, CodeUnknownTarget) {
		t.Errorf("expected required, empty_set and unknown_target codes, got %v", errs)
	}
}

func TestValidate_DuplicateStepNames(t *testing.T) {
	v := NewValidator(Limits{})

	def := validDefinition()
	def.Steps[1].Name = "triage"

	errs := v.Validate(def)
	if !hasCode(errs, CodeDuplicateStep) {
		t.Errorf("expected duplicate_step error, got %v", errs)
	}
}

func TestValidate_UnknownTransitionTarget(t *testing.T) {
	v := NewValidator(Limits{})

	def := validDefinition()
	def.Steps[0].Transitions[0].TargetStepName = "ghost"

	errs := v.Validate(def)
	if !hasCode(errs, CodeUnknownTarget) {
		t.Errorf("expected unknown_target error, got %v", errs)
	}
}

func TestValidate_NoStartStep(t *testing.T) {
	v := NewValidator(Limits{})

	// A → B → A: нет шага без входящих переходов
	def := validDefinition()
	def.Steps[0].Transitions = []domain.WorkflowTransition{{Name: "fwd", TargetStepName: "close"}}
	def.Steps[1].Transitions = []domain.WorkflowTransition{{Name: "back", TargetStepName: "triage"}}

	errs := v.Validate(def)
	if !hasCode(errs, CodeNoStartStep) {
		t.Errorf("expected no_start_step error, got %v", errs)
	}
	if !hasCode(errs, CodeCycle) {
		t.Errorf("expected cycle error, got %v", errs)
	}
}

func TestValidate_Cycle(t *testing.T) {
	v := NewValidator(Limits{})

	// start → a → b → a
	def := validDefinition()
	def.Steps = append(def.Steps, domain.WorkflowStep{
		Name:   "loop",
		Type:   domain.StepTypeWait,
		Config: domain.StepConfig{},
		Transitions: []domain.WorkflowTransition{
			{Name: "back", TargetStepName: "close"},
		},
	})
	def.Steps[1].Transitions = []domain.WorkflowTransition{
		{Name: "again", TargetStepName: "loop"},
	}

	errs := v.Validate(def)
	if !hasCode(errs, CodeCycle) {
		t.Errorf("expected cycle_detected error, got %v", errs)
	}
}

func TestValidate_UnreachableStepIsHardError(t *testing.T) {
	v := NewValidator(Limits{})

	def := validDefinition()
	// Остров из двух шагов, недостижимый от стартовых, но сам имеющий старт?
	// Нет: шаг с входящим переходом только от недостижимого шага.
	def.Steps = append(def.Steps,
		domain.WorkflowStep{
			Name: "island",
			Type: domain.StepTypeWait,
			Transitions: []domain.WorkflowTransition{
				{Name: "go", TargetStepName: "island2"},
			},
		},
		domain.WorkflowStep{
			Name: "island2",
			Type: domain.StepTypeWait,
			Transitions: []domain.WorkflowTransition{
				{Name: "back", TargetStepName: "island"},
			},
		},
	)

	errs := v.Validate(def)
	if !hasCode(errs, CodeUnreachable) {
		t.Errorf("expected unreachable_step error, got %v", errs)
	}
}

func TestValidate_ManualStepConfig(t *testing.T) {
	v := NewValidator(Limits{})

	def := validDefinition()
	def.Steps[0].Config.AssigneeType = "team"
	errs := v.Validate(def)
	if !hasCode(errs, CodeInvalidConfig) {
		t.Errorf("expected invalid_config for bad assignee type, got %v", errs)
	}

	def = validDefinition()
	def.Steps[0].Config.AssigneeType = domain.AssigneeTypeRole
	def.Steps[0].Config.AssigneeValue = ""
	errs = v.Validate(def)
	if !hasCode(errs, CodeRequired) {
		t.Errorf("expected required assignee_value, got %v", errs)
	}
}

func TestValidate_NegativeTimeout(t *testing.T) {
	v := NewValidator(Limits{})

	def := validDefinition()
	def.Steps[1].Type = domain.StepTypeWait
	def.Steps[1].Config = domain.StepConfig{TimeoutMinutes: -5}

	errs := v.Validate(def)
	if !hasCode(errs, CodeInvalidConfig) {
		t.Errorf("expected invalid_config for negative timeout, got %v", errs)
	}
}

func TestValidate_ConditionShape(t *testing.T) {
	v := NewValidator(Limits{})

	def := validDefinition()
	def.Steps[0].Transitions[0].Conditions = []domain.Condition{
		{Field: "x", Operator: "between", Value: 1},            // неизвестный оператор
		{Field: "y", Operator: domain.OpEquals},                // нет значения
		{Field: "z", Operator: domain.OpIn, Value: "not-list"}, // in требует массив
		{Field: "ok", Operator: domain.OpExists},               // валидно без значения
	}

	errs := v.Validate(def)
	if !hasCode(errs, CodeInvalidOperator) {
		t.Errorf("expected invalid_operator, got %v", errs)
	}
	if !hasCode(errs, CodeMissingValue) {
		t.Errorf("expected missing_value, got %v", errs)
	}
	if !hasCode(errs, CodeArrayValue) {
		t.Errorf("expected array_value_required, got %v", errs)
	}
}

func TestValidate_StepCeiling(t *testing.T) {
	v := NewValidator(Limits{MaxSteps: 2})

	def := validDefinition()
	def.Steps = append(def.Steps, domain.WorkflowStep{Name: "extra", Type: domain.StepTypeWait})
	def.Steps[1].Transitions = []domain.WorkflowTransition{{Name: "go", TargetStepName: "extra"}}

	errs := v.Validate(def)
	if !hasCode(errs, CodeTooManySteps) {
		t.Errorf("expected too_many_steps, got %v", errs)
	}
}

func TestValidateForActivation(t *testing.T) {
	v := NewValidator(Limits{})

	// Валидный definition проходит активацию
	errs := v.ValidateForActivation(validDefinition())
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}

	// auto-assignee у manual шага блокирует активацию
	def := validDefinition()
	def.Steps[1].Config = domain.StepConfig{AssigneeType: domain.AssigneeTypeAuto}
	errs = v.ValidateForActivation(def)
	if !hasCode(errs, CodeAutoAssignee) {
		t.Errorf("expected auto_assignee, got %v", errs)
	}
	// ...но обычная валидация его пропускает (draft допустим)
	if baseErrs := v.Validate(def); len(baseErrs) != 0 {
		t.Errorf("draft validation should allow auto assignee, got %v", baseErrs)
	}

	// decision с одним переходом блокирует активацию
	def = validDefinition()
	def.Steps[0].Type = domain.StepTypeDecision
	errs = v.ValidateForActivation(def)
	if !hasCode(errs, CodeTooFewBranches) {
		t.Errorf("expected too_few_branches, got %v", errs)
	}
}

func TestValidateForActivation_NoEndStep(t *testing.T) {
	v := NewValidator(Limits{})

	// Каждый шаг имеет исходящий переход — конечного шага нет.
	// Такой граф циклический, но активация должна репортить обе проблемы.
	def := validDefinition()
	def.Steps[1].Transitions = []domain.WorkflowTransition{
		{Name: "reopen", TargetStepName: "close"},
	}

	errs := v.ValidateForActivation(def)
	if !hasCode(errs, CodeNoEndStep) {
		t.Errorf("expected no_end_step, got %v", errs)
	}
}

func TestStartAndEndStepNames(t *testing.T) {
	def := validDefinition()

	starts := StartStepNames(def)
	if len(starts) != 1 || starts[0] != "triage" {
		t.Errorf("expected start step triage, got %v", starts)
	}

	ends := EndStepNames(def)
	if len(ends) != 1 || ends[0] != "close" {
		t.Errorf("expected end step close, got %v", ends)
	}
}

func TestValidationError_Wrapping(t *testing.T) {
	if AsError(nil) != nil {
		t.Error("empty list should wrap to nil")
	}

	err := AsError([]FieldError{{Field: "name", Code: CodeRequired, Message: "name is required"}})
	if err == nil {
		t.Fatal("expected error")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Errors) != 1 {
		t.Errorf("expected 1 violation, got %d", len(verr.Errors))
	}
}
