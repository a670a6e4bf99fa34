package engine

import (
	"reflect"
	"testing"
)

func TestInterpolate_Basic(t *testing.T) {
	ctx := map[string]any{
		"case": map[string]any{"ref": "CASE-7", "priority": "high"},
	}

	got := Interpolate("Case {{case.ref}} has priority {{case.priority}}", ctx)
	want := "Case CASE-7 has priority high"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestInterpolate_UnresolvedTokenLeftVerbatim(t *testing.T) {
	got := Interpolate("hello {{missing.path}}", map[string]any{"x": 1})
	if got != "hello {{missing.path}}" {
		t.Errorf("unresolved token should stay verbatim, got %q", got)
	}
}

func TestInterpolate_NoTokens(t *testing.T) {
	s := "plain string"
	if got := Interpolate(s, nil); got != s {
		t.Errorf("string without tokens should be unchanged, got %q", got)
	}
}

func TestInterpolateValue_WholeTokenKeepsType(t *testing.T) {
	ctx := map[string]any{"count": 42, "obj": map[string]any{"a": 1}}

	// Строка из одного токена — значение сохраняет тип
	got := InterpolateValue("{{count}}", ctx)
	if got != 42 {
		t.Errorf("expected int 42, got %v (%T)", got, got)
	}

	obj := InterpolateValue("{{obj}}", ctx)
	if !reflect.DeepEqual(obj, map[string]any{"a": 1}) {
		t.Errorf("expected object passthrough, got %v", obj)
	}

	// Токен внутри строки — строковая подстановка
	s := InterpolateValue("total: {{count}}", ctx)
	if s != "total: 42" {
		t.Errorf("expected string substitution, got %v", s)
	}
}

func TestInterpolateValue_Recursive(t *testing.T) {
	ctx := map[string]any{"user": "alice"}

	value := map[string]any{
		"to":      "{{user}}",
		"numbers": []any{1, "{{user}}"},
		"nested":  map[string]any{"who": "hi {{user}}"},
		"flag":    true,
	}

	got, ok := InterpolateValue(value, ctx).(map[string]any)
	if !ok {
		t.Fatal("expected map result")
	}
	if got["to"] != "alice" {
		t.Errorf("expected alice, got %v", got["to"])
	}
	if got["flag"] != true {
		t.Error("non-string values should pass through")
	}

	list := got["numbers"].([]any)
	if list[1] != "alice" {
		t.Errorf("expected alice in slice, got %v", list[1])
	}

	nested := got["nested"].(map[string]any)
	if nested["who"] != "hi alice" {
		t.Errorf("expected nested interpolation, got %v", nested["who"])
	}
}
