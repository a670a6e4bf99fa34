package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/events"
	"github.com/shaiso/Caseflow/internal/repo"
)

// --- In-memory фейки хранилищ ---

type memDefs struct {
	defs map[uuid.UUID]*domain.WorkflowDefinition
}

func (d *memDefs) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkflowDefinition, error) {
	def, ok := d.defs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return def, nil
}

func (d *memDefs) GetActiveByName(_ context.Context, name string) (*domain.WorkflowDefinition, error) {
	for _, def := range d.defs {
		if def.Name == name && def.Status == domain.DefinitionStatusActive {
			return def, nil
		}
	}
	return nil, repo.ErrNotFound
}

type memInstances struct {
	mu sync.Mutex
	m  map[uuid.UUID]domain.WorkflowInstance
}

func (s *memInstances) Create(_ context.Context, inst *domain.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[inst.ID] = *inst
	return nil
}

func (s *memInstances) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkflowInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.m[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := inst
	return &c, nil
}

func (s *memInstances) Update(_ context.Context, inst *domain.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[inst.ID]; !ok {
		return repo.ErrNotFound
	}
	s.m[inst.ID] = *inst
	return nil
}

type memSteps struct {
	mu sync.Mutex
	m  map[uuid.UUID]domain.WorkflowStepInstance
}

func (s *memSteps) CreateBatch(_ context.Context, steps []domain.WorkflowStepInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, si := range steps {
		s.m[si.ID] = si
	}
	return nil
}

func (s *memSteps) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkflowStepInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	si, ok := s.m[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := si
	return &c, nil
}

func (s *memSteps) ListByInstance(_ context.Context, instanceID uuid.UUID) ([]domain.WorkflowStepInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WorkflowStepInstance
	for _, si := range s.m {
		if si.InstanceID == instanceID {
			out = append(out, si)
		}
	}
	return out, nil
}

func (s *memSteps) Update(_ context.Context, step *domain.WorkflowStepInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[step.ID]; !ok {
		return repo.ErrNotFound
	}
	s.m[step.ID] = *step
	return nil
}

func (s *memSteps) ListDueWaitSteps(_ context.Context, before time.Time, limit int) ([]domain.WorkflowStepInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WorkflowStepInstance
	for _, si := range s.m {
		due := si.TimeoutAt()
		if !due.IsZero() && due.Before(before) {
			out = append(out, si)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

type memEvents struct {
	mu     sync.Mutex
	events []domain.WorkflowEvent
}

func (s *memEvents) Insert(_ context.Context, ev *domain.WorkflowEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return nil
}

func (s *memEvents) List(_ context.Context, _ events.Filter) ([]domain.WorkflowEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.WorkflowEvent(nil), s.events...), nil
}

func (s *memEvents) Timeline(_ context.Context, _, _ time.Time) ([]events.TimelineBucket, error) {
	return nil, nil
}

func (s *memEvents) Stats(_ context.Context, _ events.Filter) (*events.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &events.Stats{Total: int64(len(s.events))}, nil
}

func (s *memEvents) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *memEvents) countByType(t domain.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// memTx считает транзакционные блоки; сами фейки атомарны и без неё.
type memTx struct {
	mu    sync.Mutex
	calls int
}

func (t *memTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return fn(ctx)
}

func (t *memTx) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// --- Тестовая обвязка ---

type testEnv struct {
	engine    *Engine
	defs      *memDefs
	instances *memInstances
	steps     *memSteps
	events    *memEvents
	tx        *memTx
}

func newTestEnv(defs ...*domain.WorkflowDefinition) *testEnv {
	env := &testEnv{
		defs:      &memDefs{defs: make(map[uuid.UUID]*domain.WorkflowDefinition)},
		instances: &memInstances{m: make(map[uuid.UUID]domain.WorkflowInstance)},
		steps:     &memSteps{m: make(map[uuid.UUID]domain.WorkflowStepInstance)},
		events:    &memEvents{},
		tx:        &memTx{},
	}
	for _, def := range defs {
		env.defs.defs[def.ID] = def
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.engine = New(Config{
		Definitions: env.defs,
		Instances:   env.instances,
		Steps:       env.steps,
		EventLog:    events.NewLog(events.Config{Store: env.events, Logger: logger}),
		Tx:          env.tx,
		Logger:      logger,
	})
	return env
}

func activeDefinition(name string, steps ...domain.WorkflowStep) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		ID:            uuid.New(),
		Name:          name,
		Version:       1,
		Status:        domain.DefinitionStatusActive,
		DeviceTypes:   []string{"router", "switch"},
		ServiceTypes:  []string{"repair"},
		CustomerTiers: []string{"standard", "premium"},
		Steps:         steps,
		CreatedAt:     time.Now(),
	}
}

func manualStep(name string, transitions ...domain.WorkflowTransition) domain.WorkflowStep {
	return domain.WorkflowStep{
		Name: name,
		Type: domain.StepTypeManual,
		Config: domain.StepConfig{
			AssigneeType:  domain.AssigneeTypeRole,
			AssigneeValue: "dispatcher",
		},
		Transitions: transitions,
	}
}

func (env *testEnv) stepByName(t *testing.T, instanceID uuid.UUID, name string) *domain.WorkflowStepInstance {
	t.Helper()
	for _, si := range env.steps.m {
		if si.InstanceID == instanceID && si.StepName == name {
			c := si
			return &c
		}
	}
	t.Fatalf("step instance %q not found", name)
	return nil
}

func (env *testEnv) execute(t *testing.T, instanceID uuid.UUID, stepName, actor string, data map[string]any) *domain.WorkflowInstance {
	t.Helper()
	si := env.stepByName(t, instanceID, stepName)
	inst, err := env.engine.ExecuteStep(context.Background(), ExecuteStepRequest{
		InstanceID:     instanceID,
		StepInstanceID: si.ID,
		Actor:          actor,
		Data:           data,
	})
	if err != nil {
		t.Fatalf("execute step %q: %v", stepName, err)
	}
	return inst
}

// --- Запуск ---

func TestStartWorkflow_SingleManualStep(t *testing.T) {
	def := activeDefinition("intake", manualStep("review"))
	env := newTestEnv(def)

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "intake",
		CaseRef:        "CASE-1",
		StartedBy:      "user-1",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if inst.Status != domain.InstanceStatusRunning {
		t.Errorf("expected running, got %s", inst.Status)
	}
	if inst.DefinitionVersion != 1 {
		t.Errorf("expected version snapshot 1, got %d", inst.DefinitionVersion)
	}

	review := env.stepByName(t, inst.ID, "review")
	if review.Status != domain.StepStatusActive {
		t.Errorf("start step should be active, got %s", review.Status)
	}
	if env.events.countByType(domain.EventWorkflowStarted) != 1 {
		t.Error("expected workflow_started event")
	}
	if env.events.countByType(domain.EventStepActivated) != 1 {
		t.Error("expected step_activated event")
	}
}

func TestStartWorkflow_NoActiveDefinition(t *testing.T) {
	def := activeDefinition("intake", manualStep("review"))
	def.Status = domain.DefinitionStatusDraft
	env := newTestEnv(def)

	_, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "intake",
		CaseRef:        "CASE-1",
	})
	if !errors.Is(err, ErrDefinitionNotActive) {
		t.Errorf("expected ErrDefinitionNotActive, got %v", err)
	}
}

func TestStartWorkflow_NotApplicable(t *testing.T) {
	env := newTestEnv(activeDefinition("intake", manualStep("review")))

	_, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "intake",
		CaseRef:        "CASE-1",
		DeviceType:     "mainframe",
	})
	if !errors.Is(err, ErrNotApplicable) {
		t.Errorf("expected ErrNotApplicable, got %v", err)
	}
}

// Scenario: единственный manual стартовый шаг без исходящих переходов.
// executeStep на нём сразу завершает instance — активных шагов не остаётся.
func TestExecuteStep_LastStepCompletesInstance(t *testing.T) {
	env := newTestEnv(activeDefinition("intake", manualStep("review")))

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "intake",
		CaseRef:        "CASE-1",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	updated := env.execute(t, inst.ID, "review", "user-1", map[string]any{"resolution": "fixed"})

	if updated.Status != domain.InstanceStatusCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Error("completed instance should have completion timestamp")
	}
	if updated.Context["resolution"] != "fixed" {
		t.Error("execution data should be merged into context")
	}
	if env.events.countByType(domain.EventWorkflowCompleted) != 1 {
		t.Error("expected workflow_completed event")
	}
}

// Scenario: условные переходы. Сработавший guard активирует свою цель,
// несработавший оставляет цель pending навсегда.
func TestExecuteStep_ConditionalBranching(t *testing.T) {
	def := activeDefinition("triage",
		manualStep("assess",
			domain.WorkflowTransition{
				Name:           "high",
				TargetStepName: "escalate",
				Conditions: []domain.Condition{
					{Field: "x", Operator: domain.OpGreaterThan, Value: 5},
				},
			},
			domain.WorkflowTransition{
				Name:           "low",
				TargetStepName: "routine",
				Conditions: []domain.Condition{
					{Field: "x", Operator: domain.OpLessThanOrEqual, Value: 5},
				},
			},
		),
		manualStep("escalate"),
		manualStep("routine"),
	)
	env := newTestEnv(def)

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "triage",
		CaseRef:        "CASE-2",
		Context:        map[string]any{"x": 10},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	updated := env.execute(t, inst.ID, "assess", "user-1", nil)

	if got := env.stepByName(t, inst.ID, "escalate").Status; got != domain.StepStatusActive {
		t.Errorf("escalate should be active, got %s", got)
	}
	if got := env.stepByName(t, inst.ID, "routine").Status; got != domain.StepStatusPending {
		t.Errorf("routine should stay pending, got %s", got)
	}
	if updated.Status != domain.InstanceStatusRunning {
		t.Errorf("instance should stay running, got %s", updated.Status)
	}
	if env.events.countByType(domain.EventTransitionExecuted) != 1 {
		t.Error("expected exactly one transition_executed event")
	}
}

// Scenario: таймаут wait шага, пришедший после его завершения — no-op.
func TestHandleStepTimeout_Idempotent(t *testing.T) {
	def := activeDefinition("waiting",
		domain.WorkflowStep{
			Name:   "cooldown",
			Type:   domain.StepTypeWait,
			Config: domain.StepConfig{TimeoutMinutes: 1},
			Transitions: []domain.WorkflowTransition{
				{Name: "done", TargetStepName: "followup"},
			},
		},
		manualStep("followup"),
	)
	env := newTestEnv(def)

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "waiting",
		CaseRef:        "CASE-3",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	cooldown := env.stepByName(t, inst.ID, "cooldown")
	if cooldown.Status != domain.StepStatusActive {
		t.Fatalf("wait step should be active, got %s", cooldown.Status)
	}

	// Оператор завершает шаг вручную до истечения таймаута
	env.execute(t, inst.ID, "cooldown", "user-1", nil)

	eventsBefore := env.events.count()

	// Запоздавший таймаут — молча игнорируется
	if err := env.engine.HandleStepTimeout(context.Background(), inst.ID, cooldown.ID); err != nil {
		t.Fatalf("late timeout should be no-op, got %v", err)
	}

	if got := env.stepByName(t, inst.ID, "cooldown").Status; got != domain.StepStatusCompleted {
		t.Errorf("step should stay completed, got %s", got)
	}
	if env.events.count() != eventsBefore {
		t.Error("late timeout should not produce events")
	}
	if env.events.countByType(domain.EventStepTimeout) != 0 {
		t.Error("no step_timeout event expected")
	}
}

func TestHandleStepTimeout_ForcesWaitStep(t *testing.T) {
	def := activeDefinition("waiting",
		domain.WorkflowStep{
			Name:   "cooldown",
			Type:   domain.StepTypeWait,
			Config: domain.StepConfig{TimeoutMinutes: 1},
			Transitions: []domain.WorkflowTransition{
				{Name: "done", TargetStepName: "followup"},
			},
		},
		manualStep("followup"),
	)
	env := newTestEnv(def)

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "waiting",
		CaseRef:        "CASE-3",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	cooldown := env.stepByName(t, inst.ID, "cooldown")
	if err := env.engine.HandleStepTimeout(context.Background(), inst.ID, cooldown.ID); err != nil {
		t.Fatalf("timeout: %v", err)
	}

	cooldown = env.stepByName(t, inst.ID, "cooldown")
	if cooldown.Status != domain.StepStatusCompleted {
		t.Errorf("timed out step should be completed, got %s", cooldown.Status)
	}
	if cooldown.CompletedBy != actorTimer {
		t.Errorf("timed out step should be completed by timer, got %q", cooldown.CompletedBy)
	}
	if got := env.stepByName(t, inst.ID, "followup").Status; got != domain.StepStatusActive {
		t.Errorf("followup should be active, got %s", got)
	}
	if env.events.countByType(domain.EventStepTimeout) != 1 {
		t.Error("expected step_timeout event")
	}
}

// Scenario: отказ automatic шага локален шагу — instance остаётся
// running, параллельная ветка не затронута.
func TestAutomaticStepFailure_IsLocal(t *testing.T) {
	def := activeDefinition("parallel-work",
		manualStep("dispatch",
			domain.WorkflowTransition{Name: "calc", TargetStepName: "estimate"},
			domain.WorkflowTransition{Name: "human", TargetStepName: "inspect"},
		),
		domain.WorkflowStep{
			Name: "estimate",
			Type: domain.StepTypeAutomatic,
			Config: domain.StepConfig{
				AutomaticType: "calculation",
				Params: map[string]any{
					"operation": "sum",
					"fields":    []any{"missing_field"},
				},
			},
		},
		manualStep("inspect"),
	)
	env := newTestEnv(def)

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "parallel-work",
		CaseRef:        "CASE-4",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	updated := env.execute(t, inst.ID, "dispatch", "user-1", nil)

	estimate := env.stepByName(t, inst.ID, "estimate")
	if estimate.Status != domain.StepStatusFailed {
		t.Errorf("automatic step should be failed, got %s", estimate.Status)
	}
	if estimate.ErrorMessage == "" {
		t.Error("failed step should capture the error")
	}

	if got := env.stepByName(t, inst.ID, "inspect").Status; got != domain.StepStatusActive {
		t.Errorf("sibling branch should be active, got %s", got)
	}
	if updated.Status != domain.InstanceStatusRunning {
		t.Errorf("instance should stay running, got %s", updated.Status)
	}
	if env.events.countByType(domain.EventStepFailed) != 1 {
		t.Error("expected step_failed event")
	}
}

func TestAutomaticChain_RunsToCompletion(t *testing.T) {
	def := activeDefinition("billing",
		domain.WorkflowStep{
			Name: "total",
			Type: domain.StepTypeAutomatic,
			Config: domain.StepConfig{
				AutomaticType: "calculation",
				Params: map[string]any{
					"operation": "sum",
					"fields":    []any{"parts", "labor"},
					"output":    "total",
				},
			},
			Transitions: []domain.WorkflowTransition{
				{Name: "next", TargetStepName: "verify"},
			},
		},
		domain.WorkflowStep{
			Name: "verify",
			Type: domain.StepTypeAutomatic,
			Config: domain.StepConfig{
				AutomaticType: "status_check",
				Params: map[string]any{
					"field":    "total",
					"expected": 150.0,
				},
			},
		},
	)
	env := newTestEnv(def)

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "billing",
		CaseRef:        "CASE-5",
		Context:        map[string]any{"parts": 100.0, "labor": 50.0},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Вся цепочка automatic шагов выполняется синхронно при запуске
	if inst.Status != domain.InstanceStatusCompleted {
		t.Errorf("expected completed, got %s", inst.Status)
	}
	if inst.Context["total"] != 150.0 {
		t.Errorf("calculation output should be merged into context, got %v", inst.Context["total"])
	}
	if inst.Context["matched"] != true {
		t.Errorf("status check output should be merged, got %v", inst.Context["matched"])
	}
}

func TestAutoAdvance_SkipsManualStep(t *testing.T) {
	def := activeDefinition("fastpath",
		domain.WorkflowStep{
			Name: "approval",
			Type: domain.StepTypeManual,
			Config: domain.StepConfig{
				AssigneeType:  domain.AssigneeTypeRole,
				AssigneeValue: "manager",
				AutoAdvanceConditions: []domain.Condition{
					{Field: "preapproved", Operator: domain.OpEquals, Value: true},
				},
			},
		},
	)
	env := newTestEnv(def)

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "fastpath",
		CaseRef:        "CASE-6",
		Context:        map[string]any{"preapproved": true},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if inst.Status != domain.InstanceStatusCompleted {
		t.Errorf("pre-approved flow should complete at start, got %s", inst.Status)
	}
	if got := env.stepByName(t, inst.ID, "approval").Status; got != domain.StepStatusCompleted {
		t.Errorf("approval should be auto-completed, got %s", got)
	}
}

// --- Предусловия ---

func TestExecuteStep_DoubleExecutionRejected(t *testing.T) {
	def := activeDefinition("triage",
		manualStep("assess",
			domain.WorkflowTransition{Name: "next", TargetStepName: "resolve"},
		),
		manualStep("resolve"),
	)
	env := newTestEnv(def)

	inst, _ := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "triage",
		CaseRef:        "CASE-7",
	})

	assess := env.stepByName(t, inst.ID, "assess")
	env.execute(t, inst.ID, "assess", "user-1", nil)

	_, err := env.engine.ExecuteStep(context.Background(), ExecuteStepRequest{
		InstanceID:     inst.ID,
		StepInstanceID: assess.ID,
		Actor:          "user-2",
	})
	if !IsPrecondition(err) {
		t.Errorf("double execution should be a precondition failure, got %v", err)
	}
}

func TestExecuteStep_RequiredFields(t *testing.T) {
	def := activeDefinition("forms",
		domain.WorkflowStep{
			Name: "fill",
			Type: domain.StepTypeManual,
			Config: domain.StepConfig{
				AssigneeType:   domain.AssigneeTypeRole,
				AssigneeValue:  "tech",
				RequiredFields: []string{"diagnosis", "parts_used"},
			},
		},
	)
	env := newTestEnv(def)

	inst, _ := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "forms",
		CaseRef:        "CASE-8",
	})
	fill := env.stepByName(t, inst.ID, "fill")

	_, err := env.engine.ExecuteStep(context.Background(), ExecuteStepRequest{
		InstanceID:     inst.ID,
		StepInstanceID: fill.ID,
		Actor:          "tech-1",
		Data:           map[string]any{"diagnosis": "bad psu"},
	})
	if !IsPrecondition(err) {
		t.Fatalf("missing required field should be a precondition failure, got %v", err)
	}

	// Шаг остался active — состояние не изменилось
	if got := env.stepByName(t, inst.ID, "fill").Status; got != domain.StepStatusActive {
		t.Errorf("step should stay active after rejection, got %s", got)
	}
}

// --- Suspend / resume / cancel ---

func TestSuspendResumeCancel(t *testing.T) {
	def := activeDefinition("lifecycle", manualStep("work"))
	env := newTestEnv(def)

	inst, _ := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "lifecycle",
		CaseRef:        "CASE-9",
	})
	work := env.stepByName(t, inst.ID, "work")

	if err := env.engine.Suspend(context.Background(), inst.ID, "admin"); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if got := env.stepByName(t, inst.ID, "work").Status; got != domain.StepStatusSuspended {
		t.Errorf("active step should be suspended, got %s", got)
	}

	// executeStep на приостановленном instance отвергается
	_, err := env.engine.ExecuteStep(context.Background(), ExecuteStepRequest{
		InstanceID:     inst.ID,
		StepInstanceID: work.ID,
		Actor:          "user-1",
	})
	if !IsPrecondition(err) {
		t.Errorf("execute on suspended instance should fail precondition, got %v", err)
	}

	// Повторный suspend отвергается
	if err := env.engine.Suspend(context.Background(), inst.ID, "admin"); !IsPrecondition(err) {
		t.Errorf("double suspend should fail precondition, got %v", err)
	}

	if err := env.engine.Resume(context.Background(), inst.ID, "admin"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := env.stepByName(t, inst.ID, "work").Status; got != domain.StepStatusActive {
		t.Errorf("suspended step should be active after resume, got %s", got)
	}

	if err := env.engine.Cancel(context.Background(), inst.ID, "admin", "duplicate case"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := env.instances.GetByID(context.Background(), inst.ID)
	if got.Status != domain.InstanceStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if s := env.stepByName(t, inst.ID, "work").Status; s != domain.StepStatusCancelled {
		t.Errorf("step should be cancelled, got %s", s)
	}

	// Терминальный статус окончателен
	if err := env.engine.Cancel(context.Background(), inst.ID, "admin", ""); !IsPrecondition(err) {
		t.Errorf("cancel of terminal instance should fail precondition, got %v", err)
	}
}

// Scenario: cancel затрагивает только active и suspended шаги. Pending
// шаги, до которых не дошёл ни один переход, остаются pending.
func TestCancel_LeavesPendingStepsPending(t *testing.T) {
	def := activeDefinition("chain",
		manualStep("first",
			domain.WorkflowTransition{Name: "next", TargetStepName: "second"},
		),
		manualStep("second"),
	)
	env := newTestEnv(def)

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "chain",
		CaseRef:        "CASE-11",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := env.engine.Cancel(context.Background(), inst.ID, "admin", "wrong queue"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if got := env.stepByName(t, inst.ID, "first").Status; got != domain.StepStatusCancelled {
		t.Errorf("active step should be cancelled, got %s", got)
	}
	if got := env.stepByName(t, inst.ID, "second").Status; got != domain.StepStatusPending {
		t.Errorf("pending step should stay pending, got %s", got)
	}
}

// Каждая мутирующая операция движка проходит одним транзакционным блоком:
// завершение шага и активация целей не видны снаружи по отдельности.
func TestEngine_MutationsRunInSingleTransaction(t *testing.T) {
	env := newTestEnv(activeDefinition("intake", manualStep("review")))

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "intake",
		CaseRef:        "CASE-12",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := env.tx.count(); got != 1 {
		t.Errorf("start should run in one transaction, got %d", got)
	}

	env.execute(t, inst.ID, "review", "user-1", nil)
	if got := env.tx.count(); got != 2 {
		t.Errorf("execute should run in one transaction, got %d", got)
	}

	// Cancel терминального instance отвергается до открытия транзакции
	if err := env.engine.Cancel(context.Background(), inst.ID, "admin", ""); !IsPrecondition(err) {
		t.Fatalf("cancel of terminal instance should fail precondition, got %v", err)
	}
	if got := env.tx.count(); got != 2 {
		t.Errorf("rejected cancel should not open a transaction, got %d", got)
	}
}

// Scenario: параллельные ветки завершаются из разных горутин. Per-instance
// блокировка сериализует вызовы: instance завершается ровно один раз и
// только после завершения обеих веток.
func TestExecuteStep_ConcurrentSiblingsCompleteOnce(t *testing.T) {
	def := activeDefinition("fanout",
		manualStep("split",
			domain.WorkflowTransition{Name: "a", TargetStepName: "left"},
			domain.WorkflowTransition{Name: "b", TargetStepName: "right"},
		),
		manualStep("left"),
		manualStep("right"),
	)
	env := newTestEnv(def)

	inst, err := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "fanout",
		CaseRef:        "CASE-13",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	env.execute(t, inst.ID, "split", "user-1", nil)

	left := env.stepByName(t, inst.ID, "left")
	right := env.stepByName(t, inst.ID, "right")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []uuid.UUID{left.ID, right.ID} {
		wg.Add(1)
		go func(stepID uuid.UUID) {
			defer wg.Done()
			_, err := env.engine.ExecuteStep(context.Background(), ExecuteStepRequest{
				InstanceID:     inst.ID,
				StepInstanceID: stepID,
				Actor:          "user-1",
			})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent execute: %v", err)
		}
	}

	got, _ := env.instances.GetByID(context.Background(), inst.ID)
	if got.Status != domain.InstanceStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if n := env.events.countByType(domain.EventWorkflowCompleted); n != 1 {
		t.Errorf("expected exactly one workflow_completed event, got %d", n)
	}
}

func TestHandleStepTimeout_SkippedWhileSuspended(t *testing.T) {
	def := activeDefinition("waiting",
		domain.WorkflowStep{
			Name:   "cooldown",
			Type:   domain.StepTypeWait,
			Config: domain.StepConfig{TimeoutMinutes: 1},
		},
	)
	env := newTestEnv(def)

	inst, _ := env.engine.StartWorkflow(context.Background(), StartRequest{
		DefinitionName: "waiting",
		CaseRef:        "CASE-10",
	})
	cooldown := env.stepByName(t, inst.ID, "cooldown")

	if err := env.engine.Suspend(context.Background(), inst.ID, "admin"); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	if err := env.engine.HandleStepTimeout(context.Background(), inst.ID, cooldown.ID); err != nil {
		t.Fatalf("timeout on suspended instance should be no-op, got %v", err)
	}
	if got := env.stepByName(t, inst.ID, "cooldown").Status; got != domain.StepStatusSuspended {
		t.Errorf("step should stay suspended, got %s", got)
	}
}
