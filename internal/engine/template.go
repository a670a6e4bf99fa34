package engine

import (
	"regexp"
	"strings"
)

// tokenRe — токен вида {{dot.path}} внутри строковых значений конфигурации.
var tokenRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-.]+)\s*\}\}`)

// Interpolate подставляет значения контекста вместо токенов {{dot.path}}.
//
// Неразрешённые токены остаются в строке как есть — интерполяция никогда
// не возвращает ошибку.
func Interpolate(s string, ctx map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	return tokenRe.ReplaceAllStringFunc(s, func(token string) string {
		path := tokenRe.FindStringSubmatch(token)[1]
		v, found := resolvePath(ctx, path)
		if !found {
			return token
		}
		return stringify(v)
	})
}

// InterpolateValue рекурсивно интерполирует строки внутри произвольного
// значения конфигурации (строка, map, slice).
//
// Строка, целиком состоящая из одного токена, заменяется на само значение
// контекста с сохранением типа — так field_update может записать число или
// объект, а не его строковое представление.
func InterpolateValue(value any, ctx map[string]any) any {
	switch v := value.(type) {
	case string:
		if m := tokenRe.FindStringSubmatch(v); m != nil && m[0] == strings.TrimSpace(v) {
			if resolved, found := resolvePath(ctx, m[1]); found {
				return resolved
			}
			return v
		}
		return Interpolate(v, ctx)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			result[key] = InterpolateValue(val, ctx)
		}
		return result

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = InterpolateValue(val, ctx)
		}
		return result

	case []string:
		result := make([]string, len(v))
		for i, val := range v {
			result[i] = Interpolate(val, ctx)
		}
		return result

	default:
		// Числа, bool и прочее — как есть
		return value
	}
}

// InterpolateConfig интерполирует конфигурацию действия целиком.
func InterpolateConfig(config map[string]any, ctx map[string]any) map[string]any {
	if config == nil {
		return map[string]any{}
	}
	result, _ := InterpolateValue(config, ctx).(map[string]any)
	return result
}
