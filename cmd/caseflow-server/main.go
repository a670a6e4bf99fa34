// Caseflow Server — HTTP API и движок выполнения workflow.
//
// Server:
//   - Обслуживает REST API (definitions, instances, events, schedules)
//   - Выполняет instances: активация шагов, переходы, действия
//   - Получает запросы на запуск и таймауты из RabbitMQ
//   - Ведёт append-only журнал событий
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Caseflow/internal/api"
	"github.com/shaiso/Caseflow/internal/events"
	"github.com/shaiso/Caseflow/internal/mq"
	"github.com/shaiso/Caseflow/internal/orchestrator"
	"github.com/shaiso/Caseflow/internal/repo"
	"github.com/shaiso/Caseflow/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting caseflow-server")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	defRepo := repo.NewDefinitionRepo(pool)
	instRepo := repo.NewInstanceRepo(pool)
	stepRepo := repo.NewStepRepo(pool)
	eventRepo := repo.NewEventRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// RabbitMQ
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
	}

	// Журнал событий: persist в Postgres, fan-out в RabbitMQ
	logCfg := events.Config{
		Store:  eventRepo,
		Logger: logger,
	}
	if mqConn != nil {
		logCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}
	eventLog := events.NewLog(logCfg)

	// Создаём движок
	engine := orchestrator.New(orchestrator.Config{
		Definitions: defRepo,
		Instances:   instRepo,
		Steps:       stepRepo,
		EventLog:    eventLog,
		Tx:          repo.NewTxManager(pool),
		Conn:        mqConn,
		Logger:      logger,
	})

	if err := engine.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		DefRepo:      defRepo,
		InstRepo:     instRepo,
		EventRepo:    eventRepo,
		ScheduleRepo: scheduleRepo,
		Engine:       engine,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	engine.Stop()
	logger.Info("caseflow-server stopped")
}
