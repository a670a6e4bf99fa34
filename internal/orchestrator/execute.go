package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/engine"
	"github.com/shaiso/Caseflow/internal/repo"
	"github.com/shaiso/Caseflow/internal/telemetry"
)

// Actor движка для шагов, завершённых без участия человека.
const (
	actorEngine = "engine"
	actorTimer  = "timer"
)

// execState — загруженное состояние instance на время одной операции.
// Операции сериализованы per-instance блокировкой, поэтому state не
// может измениться под ногами.
type execState struct {
	def    *domain.WorkflowDefinition
	inst   *domain.WorkflowInstance
	byName map[string]*domain.WorkflowStepInstance
	byID   map[uuid.UUID]*domain.WorkflowStepInstance
}

// loadState загружает instance, его definition и все step instances.
func (e *Engine) loadState(ctx context.Context, instanceID uuid.UUID) (*execState, error) {
	inst, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
		}
		return nil, fmt.Errorf("load instance: %w", err)
	}

	def, err := e.definitions.GetByID(ctx, inst.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition %s: %w", inst.DefinitionID, err)
	}

	stepList, err := e.steps.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load step instances: %w", err)
	}

	st := &execState{
		def:    def,
		inst:   inst,
		byName: make(map[string]*domain.WorkflowStepInstance, len(stepList)),
		byID:   make(map[uuid.UUID]*domain.WorkflowStepInstance, len(stepList)),
	}
	for i := range stepList {
		si := &stepList[i]
		st.byName[si.StepName] = si
		st.byID[si.ID] = si
	}
	return st, nil
}

// ExecuteStepRequest — запрос на выполнение активного шага.
type ExecuteStepRequest struct {
	// InstanceID — instance, которому принадлежит шаг.
	InstanceID uuid.UUID

	// StepInstanceID — выполняемый step instance.
	StepInstanceID uuid.UUID

	// Actor — исполнитель.
	Actor string

	// Data — данные выполнения. Вливаются в контекст instance.
	Data map[string]any

	// Comment — комментарий исполнителя.
	Comment string
}

// ExecuteStep завершает активный шаг и продвигает instance дальше.
//
// Предусловия (нарушение — PreconditionError, состояние не меняется):
//   - instance в статусе running
//   - шаг в статусе active
//   - все required fields шага присутствуют в data
//
// После завершения шага движок вычисляет условия каждого исходящего
// перехода на обновлённом контексте; сработавшие переходы выполняют
// действия (best-effort) и активируют целевые шаги. Цепочки automatic
// шагов выполняются до первого шага, ожидающего внешнего участия.
func (e *Engine) ExecuteStep(ctx context.Context, req ExecuteStepRequest) (*domain.WorkflowInstance, error) {
	if e.IsStopped() {
		return nil, ErrEngineStopped
	}

	unlock := e.lockInstance(req.InstanceID)
	defer unlock()

	st, err := e.loadState(ctx, req.InstanceID)
	if err != nil {
		return nil, err
	}

	if st.inst.Status != domain.InstanceStatusRunning {
		return nil, precondition("execute step", "instance is %s", st.inst.Status)
	}

	si, ok := st.byID[req.StepInstanceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepInstanceNotFound, req.StepInstanceID)
	}
	if si.Status != domain.StepStatusActive {
		return nil, precondition("execute step", "step %q is %s", si.StepName, si.Status)
	}

	if missing := missingRequiredFields(si.Config.RequiredFields, req.Data); len(missing) > 0 {
		return nil, precondition("execute step", "missing required fields: %s", strings.Join(missing, ", "))
	}

	err = e.inTx(ctx, func(ctx context.Context) error {
		targets, err := e.completeStep(ctx, st, si, req.Actor, req.Data, req.Comment)
		if err != nil {
			return err
		}
		if err := e.runQueue(ctx, st, targets); err != nil {
			return err
		}
		return e.finalize(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	return st.inst, nil
}

// missingRequiredFields возвращает required fields, отсутствующие в data.
func missingRequiredFields(required []string, data map[string]any) []string {
	var missing []string
	for _, field := range required {
		if _, ok := engine.ResolvePath(data, field); !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// HandleStepTimeout принудительно завершает wait шаг по истечении таймаута.
//
// Обработка идемпотентна: если шаг уже не активен (завершён раньше,
// отменён, instance приостановлен или завершён), уведомление молча
// игнорируется. Дубликаты от таймера и polling fallback безопасны.
func (e *Engine) HandleStepTimeout(ctx context.Context, instanceID, stepInstanceID uuid.UUID) error {
	unlock := e.lockInstance(instanceID)
	defer unlock()

	st, err := e.loadState(ctx, instanceID)
	if err != nil {
		return err
	}

	if st.inst.Status != domain.InstanceStatusRunning {
		e.logger.Debug("step timeout ignored, instance not running",
			"instance_id", instanceID,
			"status", st.inst.Status,
		)
		return nil
	}

	si, ok := st.byID[stepInstanceID]
	if !ok {
		e.logger.Warn("step timeout for unknown step instance",
			"instance_id", instanceID,
			"step_instance_id", stepInstanceID,
		)
		return nil
	}
	if si.Type != domain.StepTypeWait || si.Status != domain.StepStatusActive {
		e.logger.Debug("step timeout ignored, step not in waiting state",
			"step", si.StepName,
			"status", si.Status,
		)
		return nil
	}

	e.eventLog.Step(ctx, instanceID, si.ID, domain.EventStepTimeout, actorTimer, map[string]any{
		"step":            si.StepName,
		"timeout_minutes": si.Config.TimeoutMinutes,
	})
	telemetry.StepTimeouts.Inc()

	e.logger.Info("wait step timed out",
		"instance_id", instanceID,
		"step", si.StepName,
	)

	return e.inTx(ctx, func(ctx context.Context) error {
		targets, err := e.completeStep(ctx, st, si, actorTimer, map[string]any{"timed_out": true}, "")
		if err != nil {
			return err
		}
		if err := e.runQueue(ctx, st, targets); err != nil {
			return err
		}
		return e.finalize(ctx, st)
	})
}

// runQueue активирует шаги из очереди, пока она не опустеет.
//
// Активация целей идёт через явную очередь, а не рекурсию: длинные
// цепочки automatic шагов не растят стек.
func (e *Engine) runQueue(ctx context.Context, st *execState, queue []string) error {
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		targets, err := e.activateStep(ctx, st, name)
		if err != nil {
			return err
		}
		queue = append(queue, targets...)
	}
	return nil
}

// activateStep активирует pending шаг по имени.
//
// Возвращает имена шагов, которые нужно активировать следом (если шаг
// завершился сразу: automatic выполнение или auto-advance).
func (e *Engine) activateStep(ctx context.Context, st *execState, name string) ([]string, error) {
	si, ok := st.byName[name]
	if !ok {
		e.logger.Warn("activation target has no step instance",
			"instance_id", st.inst.ID,
			"step", name,
		)
		return nil, nil
	}
	if si.Status != domain.StepStatusPending {
		// Второй входящий переход на уже активированный шаг — не ошибка
		e.logger.Debug("step already activated, skipping",
			"instance_id", st.inst.ID,
			"step", name,
			"status", si.Status,
		)
		return nil, nil
	}

	si.MarkActive(actorEngine)
	if err := e.steps.Update(ctx, si); err != nil {
		return nil, fmt.Errorf("activate step %s: %w", name, err)
	}

	e.eventLog.Step(ctx, st.inst.ID, si.ID, domain.EventStepActivated, actorEngine, map[string]any{
		"step": si.StepName,
		"type": string(si.Type),
	})
	telemetry.StepsActivated.WithLabelValues(string(si.Type)).Inc()

	// Auto-advance: шаг любого типа завершается сразу, если его условия
	// истинны на текущем контексте
	if len(si.Config.AutoAdvanceConditions) > 0 &&
		engine.EvaluateConditions(si.Config.AutoAdvanceConditions, st.inst.Context) {
		e.logger.Debug("step auto-advanced", "instance_id", st.inst.ID, "step", name)
		return e.completeStep(ctx, st, si, actorEngine, nil, "")
	}

	if si.Type == domain.StepTypeAutomatic {
		return e.executeAutomatic(ctx, st, si)
	}

	// manual, decision, parallel ждут executeStep; wait ждёт таймер
	return nil, nil
}

// executeAutomatic выполняет логику automatic шага.
//
// Ошибка выполнения локальна шагу: шаг помечается failed, instance и
// параллельные ветки продолжают жить.
func (e *Engine) executeAutomatic(ctx context.Context, st *execState, si *domain.WorkflowStepInstance) ([]string, error) {
	outputs, err := e.actions.ExecuteAutomaticStep(ctx, si, st.inst.Context)
	if err != nil {
		si.MarkFailed(err.Error())
		if uerr := e.steps.Update(ctx, si); uerr != nil {
			return nil, fmt.Errorf("mark step %s failed: %w", si.StepName, uerr)
		}

		e.eventLog.Step(ctx, st.inst.ID, si.ID, domain.EventStepFailed, actorEngine, map[string]any{
			"step":  si.StepName,
			"error": err.Error(),
		})
		telemetry.StepsFailed.WithLabelValues(string(si.Type)).Inc()

		e.logger.Warn("automatic step failed",
			"instance_id", st.inst.ID,
			"step", si.StepName,
			"error", err,
		)
		return nil, nil
	}

	return e.completeStep(ctx, st, si, actorEngine, outputs, "")
}

// completeStep завершает шаг и обходит его исходящие переходы.
//
// Возвращает имена целевых шагов сработавших переходов.
func (e *Engine) completeStep(ctx context.Context, st *execState, si *domain.WorkflowStepInstance, actor string, data map[string]any, comment string) ([]string, error) {
	si.MarkCompleted(actor, data, comment)
	if err := e.steps.Update(ctx, si); err != nil {
		return nil, fmt.Errorf("complete step %s: %w", si.StepName, err)
	}

	st.inst.MergeContext(data)

	e.eventLog.Step(ctx, st.inst.ID, si.ID, domain.EventStepCompleted, actor, map[string]any{
		"step": si.StepName,
	})
	telemetry.StepsCompleted.WithLabelValues(string(si.Type)).Inc()

	defStep := st.def.FindStep(si.StepName)
	if defStep == nil {
		// Definition изменился после снапшота — шаг стал листом
		e.logger.Warn("completed step missing from definition",
			"instance_id", st.inst.ID,
			"step", si.StepName,
		)
		return nil, nil
	}

	var targets []string
	for i := range defStep.Transitions {
		tr := &defStep.Transitions[i]

		if !engine.EvaluateConditions(tr.Conditions, st.inst.Context) {
			continue
		}

		e.runTransitionActions(ctx, st, tr)

		e.eventLog.Step(ctx, st.inst.ID, si.ID, domain.EventTransitionExecuted, actor, map[string]any{
			"transition": tr.Name,
			"from":       si.StepName,
			"to":         tr.TargetStepName,
		})
		telemetry.TransitionsExecuted.Inc()

		targets = append(targets, tr.TargetStepName)
	}

	return targets, nil
}

// runTransitionActions выполняет действия перехода best-effort.
//
// Отказ действия логируется и не влияет ни на соседние действия, ни на
// сам переход. Успешный field_update вливает свои updates в контекст.
func (e *Engine) runTransitionActions(ctx context.Context, st *execState, tr *domain.WorkflowTransition) {
	if len(tr.Actions) == 0 {
		return
	}

	results := e.actions.ExecuteActions(ctx, tr.Actions, st.inst.Context)
	for i := range results {
		res := &results[i]
		if !res.Success {
			telemetry.ActionFailures.WithLabelValues(string(res.Type)).Inc()
			e.logger.Warn("transition action failed",
				"instance_id", st.inst.ID,
				"transition", tr.Name,
				"action", res.Type,
				"error", res.Error,
			)
			continue
		}

		if res.Type == domain.ActionFieldUpdate {
			if updates, ok := res.Output["updates"].(map[string]any); ok {
				st.inst.MergeContext(updates)
			}
		}
	}
}

// finalize проверяет завершение instance и сохраняет его состояние.
//
// Instance завершается, когда не осталось активных шагов: pending шаги,
// до которых не дошёл ни один переход, остаются нетронутыми.
func (e *Engine) finalize(ctx context.Context, st *execState) error {
	if !st.inst.IsFinished() && st.inst.Status == domain.InstanceStatusRunning {
		active := 0
		for _, si := range st.byName {
			if si.Status == domain.StepStatusActive {
				active++
			}
		}

		if active == 0 {
			st.inst.MarkCompleted()

			e.eventLog.Workflow(ctx, st.inst.ID, domain.EventWorkflowCompleted, actorEngine, nil)
			telemetry.InstancesFinished.WithLabelValues(string(domain.InstanceStatusCompleted)).Inc()

			e.logger.Info("workflow instance completed", "instance_id", st.inst.ID)
		}
	}

	if err := e.instances.Update(ctx, st.inst); err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	return nil
}

// Hydrated — instance вместе с его step instances.
type Hydrated struct {
	Instance *domain.WorkflowInstance      `json:"instance"`
	Steps    []domain.WorkflowStepInstance `json:"steps"`
}

// GetInstance возвращает instance вместе со всеми step instances.
func (e *Engine) GetInstance(ctx context.Context, instanceID uuid.UUID) (*Hydrated, error) {
	inst, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
		}
		return nil, fmt.Errorf("load instance: %w", err)
	}

	steps, err := e.steps.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load step instances: %w", err)
	}

	return &Hydrated{Instance: inst, Steps: steps}, nil
}
