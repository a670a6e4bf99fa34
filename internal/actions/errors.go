package actions

import "errors"

// Ошибки выполнения действий.
var (
	// ErrUnknownActionType — для типа действия нет обработчика.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrWebhookRequest — ошибка исходящего webhook запроса.
	ErrWebhookRequest = errors.New("webhook request failed")

	// ErrMissingConfig — в конфигурации действия нет обязательного поля.
	ErrMissingConfig = errors.New("missing action config field")

	// ErrValidationFailed — data_validation шаг нашёл отсутствующие поля.
	ErrValidationFailed = errors.New("data validation failed")

	// ErrCalculation — calculation шаг не смог вычислить выражение.
	ErrCalculation = errors.New("calculation failed")
)
