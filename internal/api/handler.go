package api

import (
	"log/slog"

	"github.com/shaiso/Caseflow/internal/engine"
	"github.com/shaiso/Caseflow/internal/orchestrator"
	"github.com/shaiso/Caseflow/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	defRepo      *repo.DefinitionRepo
	instRepo     *repo.InstanceRepo
	eventRepo    *repo.EventRepo
	scheduleRepo *repo.ScheduleRepo
	engine       *orchestrator.Engine
	validator    *engine.Validator
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	DefRepo      *repo.DefinitionRepo
	InstRepo     *repo.InstanceRepo
	EventRepo    *repo.EventRepo
	ScheduleRepo *repo.ScheduleRepo
	Engine       *orchestrator.Engine
	Validator    *engine.Validator
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	validator := cfg.Validator
	if validator == nil {
		validator = engine.NewValidator(engine.Limits{})
	}

	return &Handler{
		defRepo:      cfg.DefRepo,
		instRepo:     cfg.InstRepo,
		eventRepo:    cfg.EventRepo,
		scheduleRepo: cfg.ScheduleRepo,
		engine:       cfg.Engine,
		validator:    validator,
		logger:       cfg.Logger,
	}
}
