package actions

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/Caseflow/internal/domain"
)

func testExecutor() *Executor {
	return NewExecutor(Config{
		Logger: slog.New(slog.NewTextHandler(nilWriter{}, nil)),
	})
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

// --- ExecuteActions ---

func TestExecuteActions_IndependentFailures(t *testing.T) {
	e := testExecutor()

	// Второе действие падает (webhook без url), первое и третье успешны
	defs := []domain.ActionDef{
		{Type: domain.ActionNotification, Config: map[string]any{"message": "hi"}},
		{Type: domain.ActionWebhook, Config: map[string]any{}},
		{Type: domain.ActionEmail, Config: map[string]any{"to": "ops@example.com"}},
	}

	results := e.ExecuteActions(context.Background(), defs, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if !results[0].Success {
		t.Errorf("first action should succeed: %s", results[0].Error)
	}
	if results[1].Success || results[1].Error == "" {
		t.Error("second action should fail with recorded error")
	}
	if !results[2].Success {
		t.Errorf("third action should run despite second failing: %s", results[2].Error)
	}
}

func TestExecuteAction_UnknownType(t *testing.T) {
	e := testExecutor()

	res := e.ExecuteAction(context.Background(), domain.ActionDef{Type: "teleport"}, nil)
	if res.Success {
		t.Error("unknown action type should fail")
	}
}

func TestExecuteAction_PanicRecovered(t *testing.T) {
	e := testExecutor()
	e.Register(domain.ActionNotification, HandlerFunc(func(context.Context, map[string]any) (map[string]any, error) {
		panic("boom")
	}))

	res := e.ExecuteAction(context.Background(), domain.ActionDef{Type: domain.ActionNotification}, nil)
	if res.Success {
		t.Error("panicking handler should yield failed result")
	}
	if res.Error == "" {
		t.Error("panic should be captured in error")
	}
}

func TestExecuteAction_ConfigInterpolation(t *testing.T) {
	e := testExecutor()

	var got map[string]any
	e.Register(domain.ActionNotification, HandlerFunc(func(_ context.Context, config map[string]any) (map[string]any, error) {
		got = config
		return nil, nil
	}))

	instCtx := map[string]any{"case": map[string]any{"ref": "CASE-9"}}
	def := domain.ActionDef{
		Type:   domain.ActionNotification,
		Config: map[string]any{"message": "case {{case.ref}} updated"},
	}

	e.ExecuteAction(context.Background(), def, instCtx)
	if got["message"] != "case CASE-9 updated" {
		t.Errorf("config should be interpolated, got %v", got["message"])
	}
}

// --- Webhook ---

func TestWebhook_Success(t *testing.T) {
	var receivedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&receivedBody)
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	e := testExecutor()
	def := domain.ActionDef{
		Type: domain.ActionWebhook,
		Config: map[string]any{
			"url":  server.URL,
			"body": map[string]any{"ref": "CASE-1"},
		},
	}

	res := e.ExecuteAction(context.Background(), def, nil)
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.Output["status_code"] != http.StatusOK {
		t.Errorf("expected status 200, got %v", res.Output["status_code"])
	}
	if receivedBody["ref"] != "CASE-1" {
		t.Errorf("server should receive body, got %v", receivedBody)
	}
}

func TestWebhook_TransportFailureIsData(t *testing.T) {
	e := testExecutor()
	def := domain.ActionDef{
		Type:   domain.ActionWebhook,
		Config: map[string]any{"url": "http://127.0.0.1:1/unreachable"},
	}

	res := e.ExecuteAction(context.Background(), def, nil)
	if res.Success {
		t.Error("transport failure should yield failed result, not success")
	}
	if res.Error == "" {
		t.Error("transport failure should be recorded in error")
	}
}

func TestWebhook_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	e := testExecutor()
	res := e.ExecuteAction(context.Background(), domain.ActionDef{
		Type:   domain.ActionWebhook,
		Config: map[string]any{"url": server.URL},
	}, nil)

	if res.Success {
		t.Error("HTTP 502 should be a failed action")
	}
	if res.Output["status_code"] != http.StatusBadGateway {
		t.Errorf("status_code should be preserved in output, got %v", res.Output["status_code"])
	}
}

func TestWebhook_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	e := NewExecutor(Config{
		Timeout: 20 * time.Millisecond,
		Logger:  slog.New(slog.NewTextHandler(nilWriter{}, nil)),
	})

	res := e.ExecuteAction(context.Background(), domain.ActionDef{
		Type:   domain.ActionWebhook,
		Config: map[string]any{"url": server.URL},
	}, nil)

	if res.Success {
		t.Error("timed out webhook should be a failed action")
	}
}

// --- Automatic steps ---

func autoStep(automaticType string, params map[string]any) *domain.WorkflowStepInstance {
	return &domain.WorkflowStepInstance{
		StepName: "auto",
		Type:     domain.StepTypeAutomatic,
		Config: domain.StepConfig{
			AutomaticType: automaticType,
			Params:        params,
		},
	}
}

func TestExecuteAutomaticStep_UnknownTypeIsNoop(t *testing.T) {
	e := testExecutor()

	outputs, err := e.ExecuteAutomaticStep(context.Background(), autoStep("", nil), nil)
	if err != nil {
		t.Fatalf("absent automatic type should be a no-op success, got %v", err)
	}
	if outputs == nil {
		t.Error("expected non-nil outputs")
	}

	if _, err := e.ExecuteAutomaticStep(context.Background(), autoStep("mystery", nil), nil); err != nil {
		t.Errorf("unknown automatic type should be a no-op success, got %v", err)
	}
}

func TestExecuteAutomaticStep_StatusCheck(t *testing.T) {
	e := testExecutor()
	instCtx := map[string]any{"case": map[string]any{"status": "approved"}}

	step := autoStep(AutomaticStatusCheck, map[string]any{
		"field":    "case.status",
		"expected": "approved",
	})

	outputs, err := e.ExecuteAutomaticStep(context.Background(), step, instCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outputs["matched"] != true {
		t.Errorf("expected matched=true, got %v", outputs["matched"])
	}
}

func TestExecuteAutomaticStep_DataValidation(t *testing.T) {
	e := testExecutor()
	instCtx := map[string]any{"case": map[string]any{"ref": "CASE-1"}}

	ok := autoStep(AutomaticDataValidation, map[string]any{
		"required_fields": []any{"case.ref"},
	})
	if _, err := e.ExecuteAutomaticStep(context.Background(), ok, instCtx); err != nil {
		t.Errorf("present fields should validate, got %v", err)
	}

	bad := autoStep(AutomaticDataValidation, map[string]any{
		"required_fields": []any{"case.ref", "case.owner"},
	})
	_, err := e.ExecuteAutomaticStep(context.Background(), bad, instCtx)
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("missing field should fail validation, got %v", err)
	}
}

func TestExecuteAutomaticStep_Calculation(t *testing.T) {
	e := testExecutor()
	instCtx := map[string]any{"parts": 100.0, "labor": 50.0}

	step := autoStep(AutomaticCalculation, map[string]any{
		"operation": "sum",
		"fields":    []any{"parts", "labor"},
		"output":    "total",
	})

	outputs, err := e.ExecuteAutomaticStep(context.Background(), step, instCtx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outputs["total"] != 150.0 {
		t.Errorf("expected total 150, got %v", outputs["total"])
	}

	// Нечисловое поле — ошибка шага
	step = autoStep(AutomaticCalculation, map[string]any{
		"operation": "sum",
		"fields":    []any{"missing"},
	})
	if _, err := e.ExecuteAutomaticStep(context.Background(), step, instCtx); !errors.Is(err, ErrCalculation) {
		t.Errorf("expected calculation error, got %v", err)
	}
}

// Scenario: fields с нестроковыми элементами (числа из JSON) — ошибка
// шага для любой операции, включая min/max, а не паника движка.
func TestExecuteAutomaticStep_CalculationNonStringFields(t *testing.T) {
	e := testExecutor()
	instCtx := map[string]any{"parts": 100.0}

	for _, op := range []string{"sum", "avg", "min", "max"} {
		step := autoStep(AutomaticCalculation, map[string]any{
			"operation": op,
			"fields":    []any{1.0, 2.0},
		})
		if _, err := e.ExecuteAutomaticStep(context.Background(), step, instCtx); !errors.Is(err, ErrCalculation) {
			t.Errorf("op %q: expected calculation error, got %v", op, err)
		}
	}
}

func TestExecuteAutomaticStep_PanicRecovered(t *testing.T) {
	e := testExecutor()
	e.Register(domain.ActionWebhook, HandlerFunc(func(_ context.Context, _ map[string]any) (map[string]any, error) {
		panic("handler exploded")
	}))

	step := autoStep(AutomaticIntegration, map[string]any{"url": "http://unused"})

	_, err := e.ExecuteAutomaticStep(context.Background(), step, nil)
	if err == nil {
		t.Fatal("panicking handler should surface as step error")
	}
}

func TestExecuteAutomaticStep_Integration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"synced": true})
	}))
	defer server.Close()

	e := testExecutor()
	step := autoStep(AutomaticIntegration, map[string]any{
		"url":    server.URL,
		"method": http.MethodGet,
	})

	outputs, err := e.ExecuteAutomaticStep(context.Background(), step, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outputs["status_code"] != http.StatusOK {
		t.Errorf("expected status 200, got %v", outputs["status_code"])
	}
}
