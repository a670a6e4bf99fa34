package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/repo"
	"github.com/shaiso/Caseflow/internal/telemetry"
)

// StartRequest — запрос на запуск instance.
type StartRequest struct {
	// DefinitionName — имя процесса. Запуск идёт по активной версии.
	DefinitionName string

	// CaseRef — внешняя ссылка на кейс.
	CaseRef string

	// Priority — приоритет кейса (default: normal).
	Priority string

	// DeviceType / ServiceType / CustomerTier — атрибуты кейса для
	// проверки применимости. Пустое значение пропускает проверку.
	DeviceType   string
	ServiceType  string
	CustomerTier string

	// Context — стартовый контекст instance.
	Context map[string]any

	// StartedBy — инициатор запуска.
	StartedBy string
}

// StartWorkflow запускает instance по активной версии definition.
//
// Создаёт instance и по одному pending step instance на каждый шаг
// definition, затем активирует стартовые шаги (без входящих переходов).
// Цепочки automatic шагов выполняются синхронно до первого шага,
// ожидающего внешнего участия.
func (e *Engine) StartWorkflow(ctx context.Context, req StartRequest) (*domain.WorkflowInstance, error) {
	if e.IsStopped() {
		return nil, ErrEngineStopped
	}
	if req.DefinitionName == "" {
		return nil, precondition("start", "definition name is required")
	}
	if req.CaseRef == "" {
		return nil, precondition("start", "case ref is required")
	}

	def, err := e.definitions.GetActiveByName(ctx, req.DefinitionName)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionNotActive, req.DefinitionName)
		}
		return nil, fmt.Errorf("load active definition %q: %w", req.DefinitionName, err)
	}

	if err := checkApplicability(def, req); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = "normal"
	}

	now := time.Now()
	inst := &domain.WorkflowInstance{
		ID:                uuid.New(),
		DefinitionID:      def.ID,
		DefinitionVersion: def.Version,
		CaseRef:           req.CaseRef,
		Status:            domain.InstanceStatusRunning,
		Priority:          priority,
		Context:           cloneContext(req.Context),
		StartedBy:         req.StartedBy,
		StartedAt:         now,
		CreatedAt:         now,
	}

	unlock := e.lockInstance(inst.ID)
	defer unlock()

	var st *execState
	err = e.inTx(ctx, func(ctx context.Context) error {
		if err := e.instances.Create(ctx, inst); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}

		// Снапшот шагов definition: последующие версии на instance не влияют
		stepInstances := make([]domain.WorkflowStepInstance, 0, len(def.Steps))
		for i := range def.Steps {
			step := &def.Steps[i]
			stepInstances = append(stepInstances, domain.WorkflowStepInstance{
				ID:         uuid.New(),
				InstanceID: inst.ID,
				StepName:   step.Name,
				Type:       step.Type,
				Config:     step.Config,
				Status:     domain.StepStatusPending,
				CreatedAt:  now,
			})
		}
		if err := e.steps.CreateBatch(ctx, stepInstances); err != nil {
			return fmt.Errorf("create step instances: %w", err)
		}

		e.eventLog.Workflow(ctx, inst.ID, domain.EventWorkflowStarted, req.StartedBy, map[string]any{
			"definition_name":    def.Name,
			"definition_version": def.Version,
			"case_ref":           req.CaseRef,
		})

		var err error
		st, err = e.loadState(ctx, inst.ID)
		if err != nil {
			return err
		}

		queue := make([]string, 0, 1)
		for _, step := range def.StartSteps() {
			queue = append(queue, step.Name)
		}

		if err := e.runQueue(ctx, st, queue); err != nil {
			return err
		}
		return e.finalize(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	telemetry.InstancesStarted.Inc()
	e.logger.Info("workflow instance started",
		"instance_id", inst.ID,
		"definition", def.Name,
		"version", def.Version,
		"case_ref", req.CaseRef,
	)

	return st.inst, nil
}

// checkApplicability проверяет атрибуты кейса против фильтров definition.
func checkApplicability(def *domain.WorkflowDefinition, req StartRequest) error {
	if req.DeviceType != "" && !slices.Contains(def.DeviceTypes, req.DeviceType) {
		return fmt.Errorf("%w: device type %q", ErrNotApplicable, req.DeviceType)
	}
	if req.ServiceType != "" && !slices.Contains(def.ServiceTypes, req.ServiceType) {
		return fmt.Errorf("%w: service type %q", ErrNotApplicable, req.ServiceType)
	}
	if req.CustomerTier != "" && !slices.Contains(def.CustomerTiers, req.CustomerTier) {
		return fmt.Errorf("%w: customer tier %q", ErrNotApplicable, req.CustomerTier)
	}
	return nil
}

// cloneContext делает поверхностную копию стартового контекста.
func cloneContext(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Suspend приостанавливает выполняющийся instance.
//
// Instance переводится в suspended, все активные шаги — тоже. Wait
// таймауты на приостановленном instance не срабатывают.
func (e *Engine) Suspend(ctx context.Context, instanceID uuid.UUID, actor string) error {
	unlock := e.lockInstance(instanceID)
	defer unlock()

	st, err := e.loadState(ctx, instanceID)
	if err != nil {
		return err
	}

	if st.inst.Status != domain.InstanceStatusRunning {
		return precondition("suspend", "instance is %s", st.inst.Status)
	}

	err = e.inTx(ctx, func(ctx context.Context) error {
		st.inst.MarkSuspended()
		if err := e.instances.Update(ctx, st.inst); err != nil {
			return fmt.Errorf("update instance: %w", err)
		}

		for _, si := range st.byName {
			if si.Status != domain.StepStatusActive {
				continue
			}
			si.MarkSuspended()
			if err := e.steps.Update(ctx, si); err != nil {
				return fmt.Errorf("suspend step %s: %w", si.StepName, err)
			}
		}

		e.eventLog.Workflow(ctx, instanceID, domain.EventWorkflowSuspended, actor, nil)
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("workflow instance suspended", "instance_id", instanceID, "actor", actor)
	return nil
}

// Resume возобновляет приостановленный instance.
func (e *Engine) Resume(ctx context.Context, instanceID uuid.UUID, actor string) error {
	unlock := e.lockInstance(instanceID)
	defer unlock()

	st, err := e.loadState(ctx, instanceID)
	if err != nil {
		return err
	}

	if st.inst.Status != domain.InstanceStatusSuspended {
		return precondition("resume", "instance is %s", st.inst.Status)
	}

	err = e.inTx(ctx, func(ctx context.Context) error {
		st.inst.MarkResumed()
		if err := e.instances.Update(ctx, st.inst); err != nil {
			return fmt.Errorf("update instance: %w", err)
		}

		for _, si := range st.byName {
			if si.Status != domain.StepStatusSuspended {
				continue
			}
			si.MarkResumed()
			if err := e.steps.Update(ctx, si); err != nil {
				return fmt.Errorf("resume step %s: %w", si.StepName, err)
			}
		}

		e.eventLog.Workflow(ctx, instanceID, domain.EventWorkflowResumed, actor, nil)
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("workflow instance resumed", "instance_id", instanceID, "actor", actor)
	return nil
}

// Cancel отменяет instance.
//
// Допустим из running и suspended. Отменяются только active и suspended
// шаги; pending шаги, до которых не дошёл ни один переход, остаются
// pending. Терминальный статус окончателен.
func (e *Engine) Cancel(ctx context.Context, instanceID uuid.UUID, actor, reason string) error {
	unlock := e.lockInstance(instanceID)
	defer unlock()

	st, err := e.loadState(ctx, instanceID)
	if err != nil {
		return err
	}

	if st.inst.IsFinished() {
		return precondition("cancel", "instance is %s", st.inst.Status)
	}

	err = e.inTx(ctx, func(ctx context.Context) error {
		st.inst.MarkCancelled()
		if err := e.instances.Update(ctx, st.inst); err != nil {
			return fmt.Errorf("update instance: %w", err)
		}

		for _, si := range st.byName {
			if si.Status != domain.StepStatusActive && si.Status != domain.StepStatusSuspended {
				continue
			}
			si.MarkCancelled()
			if err := e.steps.Update(ctx, si); err != nil {
				return fmt.Errorf("cancel step %s: %w", si.StepName, err)
			}
		}

		payload := map[string]any{}
		if reason != "" {
			payload["reason"] = reason
		}
		e.eventLog.Workflow(ctx, instanceID, domain.EventWorkflowCancelled, actor, payload)
		return nil
	})
	if err != nil {
		return err
	}

	telemetry.InstancesFinished.WithLabelValues(string(domain.InstanceStatusCancelled)).Inc()

	e.logger.Info("workflow instance cancelled",
		"instance_id", instanceID,
		"actor", actor,
		"reason", reason,
	)
	return nil
}
