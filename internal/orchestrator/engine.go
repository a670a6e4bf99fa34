package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/actions"
	"github.com/shaiso/Caseflow/internal/events"
	"github.com/shaiso/Caseflow/internal/mq"
)

// Default configuration values.
const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 100
)

// Engine выполняет workflow instances.
//
// Engine — центральный компонент системы, который:
//   - Запускает instances по активной версии definition
//   - Активирует шаги и выполняет automatic шаги
//   - Обходит переходы при завершении шага
//   - Получает запросы запуска и таймауты из очередей RabbitMQ (event-driven)
//   - Периодически проверяет истёкшие wait шаги в БД (polling fallback)
type Engine struct {
	// Stores
	definitions DefinitionStore
	instances   InstanceStore
	steps       StepStore

	// Collaborators
	eventLog *events.Log
	actions  *actions.Executor
	tx       TxRunner

	// MQ
	conn *mq.Connection

	// Per-instance блокировки: все мутации одного instance сериализованы
	locks   map[uuid.UUID]*instanceLock
	locksMu sync.Mutex

	// Consumers
	startConsumer   *mq.Consumer
	timeoutConsumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Engine.
type Config struct {
	// Stores
	Definitions DefinitionStore
	Instances   InstanceStore
	Steps       StepStore

	// EventLog — журнал событий (обязателен).
	EventLog *events.Log

	// Actions — исполнитель действий переходов и automatic шагов.
	Actions *actions.Executor

	// Tx — транзакционная обёртка над хранилищами. Nil — каждая запись
	// фиксируется отдельно (in-memory хранилища в тестах).
	Tx TxRunner

	// Conn — соединение с RabbitMQ. Nil — работа без очередей,
	// таймауты подхватываются только polling'ом.
	Conn *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал проверки истёкших wait шагов (default: 30s)
	BatchSize    int           // количество шагов за один poll (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	acts := cfg.Actions
	if acts == nil {
		acts = actions.NewExecutor(actions.Config{Logger: logger})
	}

	return &Engine{
		definitions:  cfg.Definitions,
		instances:    cfg.Instances,
		steps:        cfg.Steps,
		eventLog:     cfg.EventLog,
		actions:      acts,
		tx:           cfg.Tx,
		conn:         cfg.Conn,
		locks:        make(map[uuid.UUID]*instanceLock),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// inTx выполняет fn атомарно, если сконфигурирован TxRunner.
//
// Внешний читатель либо видит всю мутацию сразу (завершённый шаг вместе
// с активированными целями и статусом instance), либо не видит ничего.
func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.tx == nil {
		return fn(ctx)
	}
	return e.tx.InTx(ctx, fn)
}

// Start запускает Engine.
//
// Запускает:
//   - Consumer для instances.start
//   - Consumer для steps.timeout
//   - Polling горутину для fallback по истёкшим wait шагам
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info("starting engine",
		"poll_interval", e.pollInterval,
		"batch_size", e.batchSize,
		"mq_enabled", e.conn != nil,
	)

	if e.conn != nil {
		e.startConsumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueInstancesStart),
			Handler:  e.handleInstanceStart,
			Prefetch: 10,
		})

		e.timeoutConsumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueStepsTimeout),
			Handler:  e.handleStepTimeout,
			Prefetch: 10,
		})

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.startConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("instance start consumer error", "error", err)
			}
		}()

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.timeoutConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("step timeout consumer error", "error", err)
			}
		}()
	} else {
		e.logger.Warn("engine started without message queue, polling fallback only")
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()

	e.logger.Info("engine started")
	return nil
}

// Stop останавливает Engine.
func (e *Engine) Stop() {
	e.stoppedMu.Lock()
	e.stopped = true
	e.stoppedMu.Unlock()

	e.logger.Info("stopping engine...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}

	if e.startConsumer != nil {
		e.startConsumer.Stop()
	}
	if e.timeoutConsumer != nil {
		e.timeoutConsumer.Stop()
	}

	e.wg.Wait()

	e.logger.Info("engine stopped")
}

// IsStopped проверяет, остановлен ли Engine.
func (e *Engine) IsStopped() bool {
	e.stoppedMu.RLock()
	defer e.stoppedMu.RUnlock()
	return e.stopped
}

// pollLoop — цикл polling для fallback по истёкшим wait шагам.
func (e *Engine) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем таймауты, истёкшие пока
	// движок был выключен)
	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (e *Engine) poll(ctx context.Context) {
	due, err := e.steps.ListDueWaitSteps(ctx, time.Now(), e.batchSize)
	if err != nil {
		e.logger.Error("failed to list due wait steps", "error", err)
		return
	}

	if len(due) == 0 {
		return
	}

	e.logger.Debug("poll found due wait steps", "count", len(due))

	for i := range due {
		step := &due[i]
		if err := e.HandleStepTimeout(ctx, step.InstanceID, step.ID); err != nil {
			e.logger.Error("failed to handle wait step timeout from poll",
				"instance_id", step.InstanceID,
				"step_instance_id", step.ID,
				"error", err,
			)
		}
	}
}

// instanceLock — блокировка одного instance со счётчиком ожидающих.
type instanceLock struct {
	mu   sync.Mutex
	refs int
}

// lockInstance захватывает блокировку instance и возвращает функцию
// освобождения. Запись о блокировке удаляется, когда последний
// ожидающий освобождает её.
func (e *Engine) lockInstance(id uuid.UUID) func() {
	e.locksMu.Lock()
	l := e.locks[id]
	if l == nil {
		l = &instanceLock{}
		e.locks[id] = l
	}
	l.refs++
	e.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		e.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, id)
		}
		e.locksMu.Unlock()
	}
}
