// Package scheduler реализует логику планировщика.
//
// Scheduler периодически проверяет schedules с истёкшим next_due_at
// и публикует запросы на запуск workflow instances, а также находит
// активные wait шаги с истёкшим таймаутом и публикует step.timeout.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, processSchedule)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    ScheduleRepo: scheduleRepo,
//	    DefRepo:      defRepo,
//	    StepRepo:     stepRepo,
//	    Publisher:    publisher,
//	    Logger:       logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Метод Tick() вызывается только лидером.
package scheduler
