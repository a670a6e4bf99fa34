package actions

import (
	"context"
	"fmt"
	"log/slog"
)

// loggingHandler — обработчик-заглушка для внешних интеграций.
// Фиксирует вызов в логе и успешно завершается.
func loggingHandler(logger *slog.Logger, name string) Handler {
	return HandlerFunc(func(_ context.Context, config map[string]any) (map[string]any, error) {
		logger.Info("action dispatched", "handler", name, "config", config)
		return map[string]any{"dispatched": true}, nil
	})
}

// fieldUpdateHandler возвращает обновления полей как output действия.
//
// Конфигурация: {"updates": {"field": value, ...}} — значения уже
// интерполированы. Сами обновления применяет внешний владелец кейса.
func fieldUpdateHandler() Handler {
	return HandlerFunc(func(_ context.Context, config map[string]any) (map[string]any, error) {
		updates, ok := config["updates"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: updates", ErrMissingConfig)
		}
		return map[string]any{"updates": updates}, nil
	})
}

// getString извлекает строковое поле конфигурации со значением по умолчанию.
func getString(config map[string]any, key, def string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return def
}
