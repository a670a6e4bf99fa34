package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического запуска workflow.
//
// Позволяет запускать активную версию definition:
// - По cron-выражению: "0 9 * * 1" (каждый понедельник в 9:00)
// - По интервалу: каждые N секунд
//
// Типичный случай — регламентные процессы (плановое обслуживание,
// периодические проверки). Timer проверяет next_due_at и публикует запрос
// на запуск, когда время подошло.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// DefinitionName — имя workflow definition. Запускается всегда текущая
	// активная версия, поэтому ссылка по имени, а не по ID версии.
	DefinitionName string `json:"definition_name"`

	// Name — имя расписания для удобства.
	Name string `json:"name,omitempty"`

	// CronExpr — cron-выражение ("минуты часы дни месяцы дни_недели").
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — IANA timezone для вычисления cron ("Europe/Moscow").
	// Пустая строка — UTC.
	Timezone string `json:"timezone,omitempty"`

	// Enabled — выключенные schedules не обрабатываются.
	Enabled bool `json:"enabled"`

	// CaseRefPrefix — префикс для генерации case_ref запускаемых instances.
	CaseRefPrefix string `json:"case_ref_prefix,omitempty"`

	// Priority — приоритет запускаемых instances.
	Priority string `json:"priority,omitempty"`

	// Context — стартовый контекст запускаемых instances.
	Context map[string]any `json:"context,omitempty"`

	// NextDueAt — следующее время запуска (UTC).
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// RecordRun фиксирует срабатывание и следующее время запуска.
func (s *Schedule) RecordRun(ranAt, nextDue time.Time) {
	s.LastRunAt = &ranAt
	s.NextDueAt = &nextDue
}

// IsCron возвращает true, если расписание задано cron-выражением.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание задано интервалом.
func (s *Schedule) IsInterval() bool {
	return s.IntervalSec > 0
}
