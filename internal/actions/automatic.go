package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/engine"
)

// Подтипы automatic шагов.
const (
	AutomaticStatusCheck    = "status_check"
	AutomaticDataValidation = "data_validation"
	AutomaticCalculation    = "calculation"
	AutomaticIntegration    = "integration"
)

// ExecuteAutomaticStep выполняет логику automatic шага.
//
// Диспетчеризация по step.Config.AutomaticType; неизвестный или пустой
// подтип — no-op с успешным результатом. Ошибка проваливает только этот
// шаг — instance и соседние ветки не затрагиваются (решает orchestrator).
// Паника обработчика гасится и превращается в ошибку шага.
func (e *Executor) ExecuteAutomaticStep(ctx context.Context, step *domain.WorkflowStepInstance, instCtx map[string]any) (outputs map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = fmt.Errorf("automatic step panicked: %v", r)
			e.logger.Error("automatic step panicked", "step", step.StepName, "panic", r)
		}
	}()

	params := engine.InterpolateConfig(step.Config.Params, instCtx)

	switch step.Config.AutomaticType {
	case AutomaticStatusCheck:
		return e.statusCheck(params, instCtx)

	case AutomaticDataValidation:
		return e.dataValidation(params, instCtx)

	case AutomaticCalculation:
		return e.calculation(params, instCtx)

	case AutomaticIntegration:
		return e.integration(ctx, params)

	default:
		// Неизвестный подтип — no-op успех
		e.logger.Debug("automatic step with no recognized type, skipping",
			"step", step.StepName,
			"automatic_type", step.Config.AutomaticType,
		)
		return map[string]any{}, nil
	}
}

// statusCheck сравнивает поле контекста с ожидаемым значением.
//
// Params: {"field": "case.status", "expected": "approved"}.
// Несовпадение — не ошибка, результат записывается в outputs.
func (e *Executor) statusCheck(params, instCtx map[string]any) (map[string]any, error) {
	field := getString(params, "field", "")
	if field == "" {
		return nil, fmt.Errorf("%w: field", ErrMissingConfig)
	}

	cond := domain.Condition{Field: field, Operator: domain.OpEquals, Value: params["expected"]}
	matched := engine.EvaluateCondition(cond, instCtx)

	return map[string]any{
		"checked_field": field,
		"matched":       matched,
	}, nil
}

// dataValidation проверяет наличие обязательных полей в контексте.
//
// Params: {"required_fields": ["case.ref", "customer.tier"]}.
// Отсутствующие поля — ошибка шага.
func (e *Executor) dataValidation(params, instCtx map[string]any) (map[string]any, error) {
	required, _ := params["required_fields"].([]any)

	var missing []string
	for _, f := range required {
		field, ok := f.(string)
		if !ok {
			continue
		}
		cond := domain.Condition{Field: field, Operator: domain.OpExists}
		if !engine.EvaluateCondition(cond, instCtx) {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields: %s", ErrValidationFailed, strings.Join(missing, ", "))
	}
	return map[string]any{"validated": true}, nil
}

// calculation выполняет агрегацию числовых полей контекста.
//
// Params: {"operation": "sum"|"avg"|"min"|"max", "fields": [...], "output": "total"}.
func (e *Executor) calculation(params, instCtx map[string]any) (map[string]any, error) {
	op := getString(params, "operation", "sum")
	outputKey := getString(params, "output", "result")

	fields, _ := params["fields"].([]any)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to aggregate", ErrCalculation)
	}

	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		field, ok := f.(string)
		if !ok {
			return nil, fmt.Errorf("%w: field entry %v is not a field name", ErrCalculation, f)
		}
		n, ok := engine.ResolveNumber(instCtx, field)
		if !ok {
			return nil, fmt.Errorf("%w: field %q is not numeric", ErrCalculation, field)
		}
		values = append(values, n)
	}

	var result float64
	switch op {
	case "sum":
		for _, v := range values {
			result += v
		}
	case "avg":
		for _, v := range values {
			result += v
		}
		result /= float64(len(values))
	case "min":
		result = values[0]
		for _, v := range values[1:] {
			if v < result {
				result = v
			}
		}
	case "max":
		result = values[0]
		for _, v := range values[1:] {
			if v > result {
				result = v
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", ErrCalculation, op)
	}

	return map[string]any{outputKey: result}, nil
}

// integration вызывает внешнюю систему через webhook обработчик.
//
// Params — конфигурация webhook (url, method, headers, body).
func (e *Executor) integration(ctx context.Context, params map[string]any) (map[string]any, error) {
	handler, ok := e.handlers[domain.ActionWebhook]
	if !ok {
		return nil, fmt.Errorf("%w: webhook", ErrUnknownActionType)
	}
	return handler.Execute(ctx, params)
}
