package engine

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/shaiso/Caseflow/internal/domain"
)

// EvaluateConditions вычисляет список условий с AND-семантикой.
// Пустой список — всегда true.
func EvaluateConditions(conds []domain.Condition, ctx map[string]any) bool {
	for i := range conds {
		if !EvaluateCondition(conds[i], ctx) {
			return false
		}
	}
	return true
}

// EvaluateConditionGroups вычисляет OR по группам условий.
// Группа истинна, если истинны все её условия (AND внутри группы).
// Пустой список групп — false.
func EvaluateConditionGroups(groups [][]domain.Condition, ctx map[string]any) bool {
	for _, group := range groups {
		if EvaluateConditions(group, ctx) {
			return true
		}
	}
	return false
}

// EvaluateCondition вычисляет одно условие над контекстом.
//
// Поле условия резолвится dot-path'ом; отсутствующий путь даёт "нет
// значения", а не ошибку. Любая внутренняя паника гасится и трактуется
// как false — условия никогда не роняют обход переходов.
func EvaluateCondition(cond domain.Condition, ctx map[string]any) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()

	left, found := resolvePath(ctx, cond.Field)

	switch cond.Operator {
	case domain.OpEquals:
		return found && looseEqual(left, cond.Value)

	case domain.OpNotEquals:
		return !found || !looseEqual(left, cond.Value)

	case domain.OpGreaterThan:
		lf, rf, ok := bothNumeric(left, cond.Value)
		return ok && lf > rf

	case domain.OpLessThan:
		lf, rf, ok := bothNumeric(left, cond.Value)
		return ok && lf < rf

	case domain.OpGreaterThanOrEqual:
		lf, rf, ok := bothNumeric(left, cond.Value)
		return ok && lf >= rf

	case domain.OpLessThanOrEqual:
		lf, rf, ok := bothNumeric(left, cond.Value)
		return ok && lf <= rf

	case domain.OpContains:
		return found && containsValue(left, cond.Value)

	case domain.OpNotContains:
		return found && !containsValue(left, cond.Value)

	case domain.OpStartsWith:
		return found && strings.HasPrefix(stringify(left), stringify(cond.Value))

	case domain.OpEndsWith:
		return found && strings.HasSuffix(stringify(left), stringify(cond.Value))

	case domain.OpExists:
		return found

	case domain.OpNotExists:
		return !found

	case domain.OpIn:
		return found && inArray(left, cond.Value)

	case domain.OpNotIn:
		return found && !inArray(left, cond.Value)

	case domain.OpRegex:
		re, err := regexp.Compile(stringify(cond.Value))
		if err != nil {
			// Невалидный паттерн — false, не ошибка
			return false
		}
		return found && re.MatchString(stringify(left))

	case domain.OpIsEmpty:
		return !found || isEmpty(left)

	case domain.OpIsNotEmpty:
		return found && !isEmpty(left)

	default:
		// Неизвестный оператор — fail-closed
		return false
	}
}

// ResolvePath ищет значение по dot-path в контексте.
// Возвращает (nil, false), если путь отсутствует.
func ResolvePath(ctx map[string]any, path string) (any, bool) {
	return resolvePath(ctx, path)
}

// ResolveNumber резолвит dot-path и приводит значение к числу.
func ResolveNumber(ctx map[string]any, path string) (float64, bool) {
	v, found := resolvePath(ctx, path)
	if !found {
		return 0, false
	}
	return toNumber(v)
}

// resolvePath ищет значение по dot-path в контексте.
// Возвращает (nil, false), если путь отсутствует.
func resolvePath(ctx map[string]any, path string) (any, bool) {
	if path == "" || ctx == nil {
		return nil, false
	}

	var current any = ctx
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

// toNumber пытается привести значение к float64.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// bothNumeric приводит оба операнда к числам.
// Если хотя бы один не приводится, сравнение считается ложным.
func bothNumeric(left, right any) (float64, float64, bool) {
	lf, lok := toNumber(left)
	rf, rok := toNumber(right)
	return lf, rf, lok && rok
}

// looseEqual — нестрогое равенство: числа сравниваются численно,
// остальное — структурно.
func looseEqual(a, b any) bool {
	if af, bf, ok := bothNumericStrict(a, b); ok {
		return af == bf
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	return false
}

// bothNumericStrict как bothNumeric, но без строкового парсинга для
// случая двух строк (строки "abc" == "abc" сравниваются как строки).
func bothNumericStrict(a, b any) (float64, float64, bool) {
	_, aStr := a.(string)
	_, bStr := b.(string)
	if aStr && bStr {
		return 0, 0, false
	}
	return bothNumeric(a, b)
}

// containsValue реализует contains в зависимости от формы левого операнда:
// подстрока (без учёта регистра), элемент массива или значение map.
func containsValue(left, right any) bool {
	switch l := left.(type) {
	case string:
		return strings.Contains(strings.ToLower(l), strings.ToLower(stringify(right)))
	case []any:
		for _, item := range l {
			if looseEqual(item, right) {
				return true
			}
		}
		return false
	case []string:
		needle := stringify(right)
		for _, item := range l {
			if item == needle {
				return true
			}
		}
		return false
	case map[string]any:
		for _, v := range l {
			if looseEqual(v, right) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// inArray проверяет членство left в массиве right.
func inArray(left, right any) bool {
	rv := reflect.ValueOf(right)
	if right == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if looseEqual(left, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// isEmpty проверяет "пустоту" значения: nil, пустая строка,
// пустой slice или map.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// stringify приводит значение к строке для строковых операторов.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := toNumber(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return ""
}
