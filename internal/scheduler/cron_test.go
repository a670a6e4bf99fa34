package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/Caseflow/internal/domain"
)

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * 1", // каждый понедельник в 9:00
		Timezone: "UTC",
	}

	// Пятница 2026-01-02 12:00 UTC, следующий понедельник — 2026-01-05
	from := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}

	want := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDue_CronTimezone(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *", // каждый день в 9:00 по Москве
		Timezone: "Europe/Moscow",
	}

	// 10:00 UTC = 13:00 MSK, значит следующие 9:00 MSK — завтра (6:00 UTC)
	from := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}

	want := time.Date(2026, 1, 3, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
	if next.Location() != time.UTC {
		t.Errorf("next должен быть в UTC, получен %v", next.Location())
	}
}

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 300,
	}

	from := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}

	want := from.Add(5 * time.Minute)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDue_CronWinsOverInterval(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr:    "0 0 * * *",
		IntervalSec: 60,
		Timezone:    "UTC",
	}

	from := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}

	want := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestCalculateNextDue_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 60,
		Timezone:    "Not/AZone",
	}

	from := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue: %v", err)
	}
	if !next.Equal(from.Add(time.Minute)) {
		t.Errorf("next = %v, want %v", next, from.Add(time.Minute))
	}
}

func TestCalculateNextDue_Empty(t *testing.T) {
	sched := &domain.Schedule{}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("ожидалась ошибка для schedule без cron_expr и interval_sec")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("валидное выражение отвергнуто: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("ожидалась ошибка для невалидного выражения")
	}
	if err := ValidateCronExpr("0 0 * *"); err == nil {
		t.Error("ожидалась ошибка для выражения из четырёх полей")
	}
}
