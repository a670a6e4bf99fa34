package orchestrator

import (
	"context"
	"errors"

	"github.com/shaiso/Caseflow/internal/mq"
)

// handleInstanceStart обрабатывает запрос на запуск instance из очереди.
func (e *Engine) handleInstanceStart(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.InstanceStartPayload](&delivery.Message)
	if err != nil {
		e.logger.Error("failed to parse instance.start payload", "error", err)
		return err
	}

	e.logger.Debug("received instance.start message",
		"definition", payload.DefinitionName,
		"case_ref", payload.CaseRef,
	)

	startedBy := payload.StartedBy
	if startedBy == "" {
		startedBy = "mq"
	}

	_, err = e.StartWorkflow(ctx, StartRequest{
		DefinitionName: payload.DefinitionName,
		CaseRef:        payload.CaseRef,
		Priority:       payload.Priority,
		Context:        payload.Context,
		StartedBy:      startedBy,
	})
	if err != nil {
		// Бизнес-отказы не ретраим: повторная доставка даст тот же результат
		if IsPrecondition(err) ||
			errors.Is(err, ErrDefinitionNotFound) ||
			errors.Is(err, ErrDefinitionNotActive) ||
			errors.Is(err, ErrNotApplicable) {
			e.logger.Warn("instance start rejected",
				"definition", payload.DefinitionName,
				"case_ref", payload.CaseRef,
				"reason", err,
			)
			return nil
		}
		e.logger.Error("failed to start instance from queue",
			"definition", payload.DefinitionName,
			"case_ref", payload.CaseRef,
			"error", err,
		)
		return err
	}

	return nil
}

// handleStepTimeout обрабатывает уведомление об истёкшем таймауте wait шага.
func (e *Engine) handleStepTimeout(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.StepTimeoutPayload](&delivery.Message)
	if err != nil {
		e.logger.Error("failed to parse step.timeout payload", "error", err)
		return err
	}

	e.logger.Debug("received step.timeout message",
		"instance_id", payload.InstanceID,
		"step_instance_id", payload.StepInstanceID,
	)

	if err := e.HandleStepTimeout(ctx, payload.InstanceID, payload.StepInstanceID); err != nil {
		if errors.Is(err, ErrInstanceNotFound) {
			e.logger.Warn("step timeout for unknown instance", "instance_id", payload.InstanceID)
			return nil
		}
		e.logger.Error("failed to handle step timeout",
			"instance_id", payload.InstanceID,
			"step_instance_id", payload.StepInstanceID,
			"error", err,
		)
		return err
	}

	return nil
}
