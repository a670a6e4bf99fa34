package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Экспортируются на /metrics каждым сервисом.
var (
	// InstancesStarted — количество запущенных instances.
	InstancesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caseflow_instances_started_total",
		Help: "Total number of workflow instances started",
	})

	// InstancesFinished — количество завершённых instances по терминальному статусу.
	InstancesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_instances_finished_total",
		Help: "Total number of workflow instances finished, by terminal status",
	}, []string{"status"})

	// StepsActivated — количество активированных шагов по типу.
	StepsActivated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_steps_activated_total",
		Help: "Total number of step instances activated, by step type",
	}, []string{"type"})

	// StepsCompleted — количество завершённых шагов по типу.
	StepsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_steps_completed_total",
		Help: "Total number of step instances completed, by step type",
	}, []string{"type"})

	// StepsFailed — количество упавших шагов по типу.
	StepsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_steps_failed_total",
		Help: "Total number of step instances failed, by step type",
	}, []string{"type"})

	// TransitionsExecuted — количество сработавших переходов.
	TransitionsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caseflow_transitions_executed_total",
		Help: "Total number of transitions executed",
	})

	// ActionFailures — количество действий, завершившихся ошибкой.
	ActionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_action_failures_total",
		Help: "Total number of failed transition actions, by action type",
	}, []string{"type"})

	// StepTimeouts — количество сработавших таймаутов wait шагов.
	StepTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caseflow_step_timeouts_total",
		Help: "Total number of wait step timeouts fired",
	})

	// ScheduleRuns — количество запусков по расписанию.
	ScheduleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caseflow_schedule_runs_total",
		Help: "Total number of schedule fires, by outcome",
	}, []string{"outcome"})
)
