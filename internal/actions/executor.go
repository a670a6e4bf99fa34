package actions

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/engine"
)

// Default configuration values.
const (
	defaultActionTimeout = 30 * time.Second
)

// Handler выполняет действие одного типа.
//
// config приходит уже интерполированным по контексту instance.
// Возвращённая map попадает в Result.Output.
type Handler interface {
	Execute(ctx context.Context, config map[string]any) (map[string]any, error)
}

// HandlerFunc — адаптер функции к интерфейсу Handler.
type HandlerFunc func(ctx context.Context, config map[string]any) (map[string]any, error)

// Execute реализует Handler.
func (f HandlerFunc) Execute(ctx context.Context, config map[string]any) (map[string]any, error) {
	return f(ctx, config)
}

// Result — результат одного действия.
//
// Действия best-effort: ошибка записывается в слот, Success=false,
// выполнение остальных действий продолжается.
type Result struct {
	// Type — тип выполненного действия.
	Type domain.ActionType `json:"type"`

	// Success — выполнено ли действие без ошибки.
	Success bool `json:"success"`

	// Output — данные, возвращённые обработчиком.
	Output map[string]any `json:"output,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`
}

// Executor диспетчеризует действия по типу на обработчики.
type Executor struct {
	handlers map[domain.ActionType]Handler
	timeout  time.Duration
	logger   *slog.Logger
}

// Config — конфигурация Executor.
type Config struct {
	// Timeout — ограничение на одно действие (default: 30s).
	// Истёкший таймаут — обычная ошибка действия, не блокировка движка.
	Timeout time.Duration

	// HTTPClient — клиент для webhook/integration (default: http.DefaultClient).
	HTTPClient *http.Client

	// Logger — логгер.
	Logger *slog.Logger
}

// NewExecutor создаёт Executor с обработчиками по умолчанию.
//
// Все внешние интеграции, кроме webhook, по умолчанию — логирующие
// заглушки: они фиксируют вызов и успешно завершаются. Продакшен
// подключает реальные системы через Register.
func NewExecutor(cfg Config) *Executor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	e := &Executor{
		handlers: make(map[domain.ActionType]Handler),
		timeout:  timeout,
		logger:   logger,
	}

	e.Register(domain.ActionWebhook, &WebhookHandler{Client: client})
	e.Register(domain.ActionNotification, loggingHandler(logger, "notification"))
	e.Register(domain.ActionAssignment, loggingHandler(logger, "assignment"))
	e.Register(domain.ActionStatusUpdate, loggingHandler(logger, "status_update"))
	e.Register(domain.ActionFieldUpdate, fieldUpdateHandler())
	e.Register(domain.ActionEmail, loggingHandler(logger, "email"))
	e.Register(domain.ActionSMS, loggingHandler(logger, "sms"))
	e.Register(domain.ActionCreateDocument, loggingHandler(logger, "create_document"))
	e.Register(domain.ActionUpdateInventory, loggingHandler(logger, "update_inventory"))

	return e
}

// Register добавляет или заменяет обработчик для типа действия.
func (e *Executor) Register(actionType domain.ActionType, h Handler) {
	e.handlers[actionType] = h
}

// ExecuteActions выполняет список действий по порядку, независимо друг от
// друга. Возвращает результат на каждое действие в исходном порядке.
func (e *Executor) ExecuteActions(ctx context.Context, defs []domain.ActionDef, instCtx map[string]any) []Result {
	results := make([]Result, len(defs))
	for i := range defs {
		results[i] = e.ExecuteAction(ctx, defs[i], instCtx)
	}
	return results
}

// ExecuteAction выполняет одно действие: интерполирует конфигурацию по
// контексту instance и вызывает обработчик с ограничением по времени.
// Паника обработчика гасится и превращается в ошибку действия.
func (e *Executor) ExecuteAction(ctx context.Context, def domain.ActionDef, instCtx map[string]any) (res Result) {
	res = Result{Type: def.Type}

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("action panicked: %v", r)
			e.logger.Error("action handler panicked", "type", def.Type, "panic", r)
		}
	}()

	handler, ok := e.handlers[def.Type]
	if !ok {
		res.Error = fmt.Sprintf("%v: %s", ErrUnknownActionType, def.Type)
		return res
	}

	config := engine.InterpolateConfig(def.Config, instCtx)

	actionCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	output, err := handler.Execute(actionCtx, config)
	res.Output = output
	if err != nil {
		res.Error = err.Error()
		e.logger.Warn("action failed", "type", def.Type, "error", err)
		return res
	}

	res.Success = true
	return res
}
