package engine

import (
	"testing"

	"github.com/shaiso/Caseflow/internal/domain"
)

func TestEvaluateConditions_EmptyList(t *testing.T) {
	// Пустой список условий — всегда true
	if !EvaluateConditions(nil, map[string]any{"x": 1}) {
		t.Error("empty condition list should evaluate to true")
	}
	if !EvaluateConditions([]domain.Condition{}, nil) {
		t.Error("empty condition list should evaluate to true for nil context")
	}
}

func TestEvaluateConditions_AndSemantics(t *testing.T) {
	ctx := map[string]any{"x": 10, "status": "open"}

	conds := []domain.Condition{
		{Field: "x", Operator: domain.OpGreaterThan, Value: 5},
		{Field: "status", Operator: domain.OpEquals, Value: "open"},
	}
	if !EvaluateConditions(conds, ctx) {
		t.Error("all conditions true, expected true")
	}

	conds[1].Value = "closed"
	if EvaluateConditions(conds, ctx) {
		t.Error("one condition false, expected false")
	}
}

func TestEvaluateCondition_DotPath(t *testing.T) {
	ctx := map[string]any{
		"case": map[string]any{
			"customer": map[string]any{"tier": "gold"},
		},
	}

	cond := domain.Condition{Field: "case.customer.tier", Operator: domain.OpEquals, Value: "gold"}
	if !EvaluateCondition(cond, ctx) {
		t.Error("nested path should resolve")
	}

	// Отсутствующий путь — false, без паники
	cond.Field = "case.customer.missing.deep"
	if EvaluateCondition(cond, ctx) {
		t.Error("missing path should evaluate to false")
	}
}

func TestEvaluateCondition_NumericCoercion(t *testing.T) {
	ctx := map[string]any{"count": "15", "bad": "abc"}

	cond := domain.Condition{Field: "count", Operator: domain.OpGreaterThan, Value: 10}
	if !EvaluateCondition(cond, ctx) {
		t.Error("string \"15\" should coerce to number and compare > 10")
	}

	// Некорректный операнд — false, не паника
	cond = domain.Condition{Field: "bad", Operator: domain.OpGreaterThan, Value: 10}
	if EvaluateCondition(cond, ctx) {
		t.Error("non-numeric operand should evaluate to false")
	}

	cond = domain.Condition{Field: "count", Operator: domain.OpLessThanOrEqual, Value: "15"}
	if !EvaluateCondition(cond, ctx) {
		t.Error("15 <= 15 should be true")
	}
}

func TestEvaluateCondition_Equals(t *testing.T) {
	ctx := map[string]any{"n": float64(5), "s": "abc"}

	if !EvaluateCondition(domain.Condition{Field: "n", Operator: domain.OpEquals, Value: 5}, ctx) {
		t.Error("5.0 equals 5 should be true")
	}
	if !EvaluateCondition(domain.Condition{Field: "s", Operator: domain.OpEquals, Value: "abc"}, ctx) {
		t.Error("string equality should hold")
	}
	if !EvaluateCondition(domain.Condition{Field: "s", Operator: domain.OpNotEquals, Value: "xyz"}, ctx) {
		t.Error("not_equals should be true for different strings")
	}
	// not_equals по отсутствующему полю — true
	if !EvaluateCondition(domain.Condition{Field: "missing", Operator: domain.OpNotEquals, Value: 1}, ctx) {
		t.Error("not_equals on missing field should be true")
	}
}

func TestEvaluateCondition_Contains(t *testing.T) {
	ctx := map[string]any{
		"title": "Critical Pump Failure",
		"tags":  []any{"urgent", "hardware"},
		"meta":  map[string]any{"region": "north"},
	}

	// Подстрока без учёта регистра
	if !EvaluateCondition(domain.Condition{Field: "title", Operator: domain.OpContains, Value: "pump"}, ctx) {
		t.Error("substring match should be case-insensitive")
	}

	// Массив
	if !EvaluateCondition(domain.Condition{Field: "tags", Operator: domain.OpContains, Value: "urgent"}, ctx) {
		t.Error("array membership should match")
	}
	if EvaluateCondition(domain.Condition{Field: "tags", Operator: domain.OpContains, Value: "software"}, ctx) {
		t.Error("absent array element should not match")
	}

	// Значения map
	if !EvaluateCondition(domain.Condition{Field: "meta", Operator: domain.OpContains, Value: "north"}, ctx) {
		t.Error("object value membership should match")
	}

	if !EvaluateCondition(domain.Condition{Field: "tags", Operator: domain.OpNotContains, Value: "software"}, ctx) {
		t.Error("not_contains should be true for absent element")
	}
}

func TestEvaluateCondition_StringOperators(t *testing.T) {
	ctx := map[string]any{"ref": "CASE-2024-0042"}

	if !EvaluateCondition(domain.Condition{Field: "ref", Operator: domain.OpStartsWith, Value: "CASE-"}, ctx) {
		t.Error("starts_with should match")
	}
	if !EvaluateCondition(domain.Condition{Field: "ref", Operator: domain.OpEndsWith, Value: "0042"}, ctx) {
		t.Error("ends_with should match")
	}
}

func TestEvaluateCondition_ExistsAndEmpty(t *testing.T) {
	ctx := map[string]any{"a": "x", "empty": "", "list": []any{}}

	if !EvaluateCondition(domain.Condition{Field: "a", Operator: domain.OpExists}, ctx) {
		t.Error("exists should be true for present field")
	}
	if !EvaluateCondition(domain.Condition{Field: "b", Operator: domain.OpNotExists}, ctx) {
		t.Error("not_exists should be true for absent field")
	}
	if !EvaluateCondition(domain.Condition{Field: "empty", Operator: domain.OpIsEmpty}, ctx) {
		t.Error("is_empty should be true for empty string")
	}
	if !EvaluateCondition(domain.Condition{Field: "list", Operator: domain.OpIsEmpty}, ctx) {
		t.Error("is_empty should be true for empty slice")
	}
	if !EvaluateCondition(domain.Condition{Field: "missing", Operator: domain.OpIsEmpty}, ctx) {
		t.Error("is_empty should be true for missing field")
	}
	if !EvaluateCondition(domain.Condition{Field: "a", Operator: domain.OpIsNotEmpty}, ctx) {
		t.Error("is_not_empty should be true for non-empty value")
	}
}

func TestEvaluateCondition_InNotIn(t *testing.T) {
	ctx := map[string]any{"tier": "gold"}

	in := domain.Condition{Field: "tier", Operator: domain.OpIn, Value: []any{"silver", "gold"}}
	if !EvaluateCondition(in, ctx) {
		t.Error("in should match array member")
	}

	notIn := domain.Condition{Field: "tier", Operator: domain.OpNotIn, Value: []any{"bronze"}}
	if !EvaluateCondition(notIn, ctx) {
		t.Error("not_in should be true for absent member")
	}

	// Не-массив справа — false
	bad := domain.Condition{Field: "tier", Operator: domain.OpIn, Value: "gold"}
	if EvaluateCondition(bad, ctx) {
		t.Error("in with non-array value should be false")
	}
}

func TestEvaluateCondition_Regex(t *testing.T) {
	ctx := map[string]any{"ref": "CASE-2024-0042"}

	ok := domain.Condition{Field: "ref", Operator: domain.OpRegex, Value: `^CASE-\d{4}-\d+$`}
	if !EvaluateCondition(ok, ctx) {
		t.Error("valid regex should match")
	}

	// Невалидный паттерн — false, не ошибка
	bad := domain.Condition{Field: "ref", Operator: domain.OpRegex, Value: `([`}
	if EvaluateCondition(bad, ctx) {
		t.Error("invalid regex pattern should evaluate to false")
	}
}

func TestEvaluateCondition_UnknownOperator(t *testing.T) {
	cond := domain.Condition{Field: "x", Operator: "frobnicate", Value: 1}
	if EvaluateCondition(cond, map[string]any{"x": 1}) {
		t.Error("unknown operator should fail closed")
	}
}

func TestEvaluateConditionGroups(t *testing.T) {
	ctx := map[string]any{"x": 3}

	groups := [][]domain.Condition{
		{{Field: "x", Operator: domain.OpGreaterThan, Value: 10}},
		{{Field: "x", Operator: domain.OpLessThan, Value: 5}},
	}
	if !EvaluateConditionGroups(groups, ctx) {
		t.Error("second group is true, OR should be true")
	}

	groups[1][0].Value = 2
	if EvaluateConditionGroups(groups, ctx) {
		t.Error("no group true, OR should be false")
	}

	if EvaluateConditionGroups(nil, ctx) {
		t.Error("empty group list should be false")
	}
}
