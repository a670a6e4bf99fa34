package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/mq"
	"github.com/shaiso/Caseflow/internal/repo"
	"github.com/shaiso/Caseflow/internal/telemetry"
)

// Scheduler — планировщик, обрабатывающий due schedules и таймауты wait шагов.
type Scheduler struct {
	scheduleRepo *repo.ScheduleRepo
	defRepo      *repo.DefinitionRepo
	stepRepo     *repo.StepRepo
	publisher    *mq.Publisher
	logger       *slog.Logger
	batchSize    int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleRepo *repo.ScheduleRepo
	DefRepo      *repo.DefinitionRepo
	StepRepo     *repo.StepRepo
	Publisher    *mq.Publisher
	Logger       *slog.Logger
	BatchSize    int // количество schedules/шагов за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Scheduler{
		scheduleRepo: cfg.ScheduleRepo,
		defRepo:      cfg.DefRepo,
		stepRepo:     cfg.StepRepo,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
		batchSize:    batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now) и для каждого
//    публикует instance.start
// 2. Находит активные wait шаги с истёкшим таймаутом и публикует step.timeout
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	if err := s.fireSchedules(ctx, now); err != nil {
		return err
	}
	return s.fireTimeouts(ctx, now)
}

// fireSchedules обрабатывает schedules с истёкшим next_due_at.
func (s *Scheduler) fireSchedules(ctx context.Context, now time.Time) error {
	schedules, err := s.scheduleRepo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var published int
	for i := range schedules {
		sched := &schedules[i]

		fired, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			telemetry.ScheduleRuns.WithLabelValues("error").Inc()
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}
		if fired {
			published++
		}
	}

	s.logger.Info("schedule tick completed",
		"due", len(schedules),
		"published", published,
	)
	return nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если запуск instance был опубликован.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	// 1. Вычисляем следующее время запуска
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// Schedule некорректный — выключаем, чтобы не зацикливаться
		s.logger.Error("failed to calculate next due, disabling schedule",
			"schedule_id", sched.ID,
			"error", err,
		)
		if err := s.scheduleRepo.SetEnabled(ctx, sched.ID, false); err != nil {
			return false, fmt.Errorf("disable schedule: %w", err)
		}
		return false, nil
	}

	// 2. Проверяем, что есть активная версия definition
	if _, err := s.defRepo.GetActiveByName(ctx, sched.DefinitionName); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Активной версии нет — сдвигаем next_due_at и ждём следующего слота
			s.logger.Warn("no active definition for schedule, skipping",
				"schedule_id", sched.ID,
				"definition_name", sched.DefinitionName,
			)
			sched.RecordRun(now, nextDue)
			if err := s.scheduleRepo.Update(ctx, sched); err != nil {
				return false, fmt.Errorf("update schedule: %w", err)
			}
			telemetry.ScheduleRuns.WithLabelValues("skipped").Inc()
			return false, nil
		}
		return false, fmt.Errorf("get active definition: %w", err)
	}

	// 3. Сдвигаем schedule ДО публикации: при сбое между Update и Publish
	// теряется один запуск, но дубликаты исключены
	sched.RecordRun(now, nextDue)
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return false, fmt.Errorf("update schedule: %w", err)
	}

	// 4. Публикуем запрос на запуск instance
	scheduleID := sched.ID
	payload := mq.InstanceStartPayload{
		DefinitionName: sched.DefinitionName,
		CaseRef:        s.caseRef(sched, now),
		Priority:       sched.Priority,
		Context:        sched.Context,
		StartedBy:      "scheduler",
		ScheduleID:     &scheduleID,
	}
	if err := s.publisher.PublishInstanceStart(ctx, payload); err != nil {
		return false, fmt.Errorf("publish instance start: %w", err)
	}

	telemetry.ScheduleRuns.WithLabelValues("published").Inc()
	s.logger.Info("published scheduled instance start",
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"definition_name", sched.DefinitionName,
		"case_ref", payload.CaseRef,
	)
	return true, nil
}

// caseRef генерирует case_ref для запускаемого instance.
func (s *Scheduler) caseRef(sched *domain.Schedule, now time.Time) string {
	prefix := sched.CaseRefPrefix
	if prefix == "" {
		prefix = sched.DefinitionName
	}
	return fmt.Sprintf("%s-%s", prefix, now.UTC().Format("20060102-150405"))
}

// fireTimeouts публикует step.timeout для активных wait шагов с истёкшим
// таймаутом. Обработка идемпотентна на стороне orchestrator, поэтому
// повторная публикация того же шага безопасна.
func (s *Scheduler) fireTimeouts(ctx context.Context, now time.Time) error {
	due, err := s.stepRepo.ListDueWaitSteps(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due wait steps: %w", err)
	}

	for i := range due {
		step := &due[i]
		if err := s.publisher.PublishStepTimeout(ctx, step.InstanceID, step.ID); err != nil {
			s.logger.Error("failed to publish step timeout",
				"instance_id", step.InstanceID,
				"step_instance_id", step.ID,
				"error", err,
			)
			continue
		}
		s.logger.Debug("published step timeout",
			"instance_id", step.InstanceID,
			"step_instance_id", step.ID,
			"step_name", step.StepName,
		)
	}

	if len(due) > 0 {
		s.logger.Info("timeout tick completed", "fired", len(due))
	}
	return nil
}
