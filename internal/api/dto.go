package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
)

// Definition DTOs

// CreateDefinitionRequest — запрос на создание definition.
// Каждое создание порождает новую draft версию с именем из запроса.
type CreateDefinitionRequest struct {
	Name          string                `json:"name"`
	Description   string                `json:"description,omitempty"`
	DeviceTypes   []string              `json:"device_types,omitempty"`
	ServiceTypes  []string              `json:"service_types,omitempty"`
	CustomerTiers []string              `json:"customer_tiers,omitempty"`
	Steps         []domain.WorkflowStep `json:"steps"`
	Metadata      map[string]any        `json:"metadata,omitempty"`
	CreatedBy     string                `json:"created_by,omitempty"`
}

// DefinitionResponse — ответ с definition.
type DefinitionResponse struct {
	ID            uuid.UUID             `json:"id"`
	Name          string                `json:"name"`
	Version       int                   `json:"version"`
	Status        string                `json:"status"`
	Description   string                `json:"description,omitempty"`
	DeviceTypes   []string              `json:"device_types,omitempty"`
	ServiceTypes  []string              `json:"service_types,omitempty"`
	CustomerTiers []string              `json:"customer_tiers,omitempty"`
	Steps         []domain.WorkflowStep `json:"steps,omitempty"`
	Metadata      map[string]any        `json:"metadata,omitempty"`
	CreatedBy     string                `json:"created_by,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// DefinitionFromDomain конвертирует domain.WorkflowDefinition в DefinitionResponse.
func DefinitionFromDomain(d domain.WorkflowDefinition) DefinitionResponse {
	return DefinitionResponse{
		ID:            d.ID,
		Name:          d.Name,
		Version:       d.Version,
		Status:        string(d.Status),
		Description:   d.Description,
		DeviceTypes:   d.DeviceTypes,
		ServiceTypes:  d.ServiceTypes,
		CustomerTiers: d.CustomerTiers,
		Steps:         d.Steps,
		Metadata:      d.Metadata,
		CreatedBy:     d.CreatedBy,
		CreatedAt:     d.CreatedAt,
	}
}

// Instance DTOs

// StartInstanceRequest — запрос на запуск instance.
type StartInstanceRequest struct {
	DefinitionName string         `json:"definition_name"`
	CaseRef        string         `json:"case_ref"`
	Priority       string         `json:"priority,omitempty"`
	DeviceType     string         `json:"device_type,omitempty"`
	ServiceType    string         `json:"service_type,omitempty"`
	CustomerTier   string         `json:"customer_tier,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	StartedBy      string         `json:"started_by,omitempty"`
}

// InstanceResponse — ответ с instance.
type InstanceResponse struct {
	ID                uuid.UUID      `json:"id"`
	DefinitionID      uuid.UUID      `json:"definition_id"`
	DefinitionVersion int            `json:"definition_version"`
	CaseRef           string         `json:"case_ref"`
	Status            string         `json:"status"`
	Priority          string         `json:"priority,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
	StartedBy         string         `json:"started_by,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// InstanceFromDomain конвертирует domain.WorkflowInstance в InstanceResponse.
func InstanceFromDomain(i domain.WorkflowInstance) InstanceResponse {
	return InstanceResponse{
		ID:                i.ID,
		DefinitionID:      i.DefinitionID,
		DefinitionVersion: i.DefinitionVersion,
		CaseRef:           i.CaseRef,
		Status:            string(i.Status),
		Priority:          i.Priority,
		Context:           i.Context,
		StartedBy:         i.StartedBy,
		StartedAt:         i.StartedAt,
		CompletedAt:       i.CompletedAt,
		CreatedAt:         i.CreatedAt,
	}
}

// ExecuteStepRequest — запрос на выполнение шага оператором.
type ExecuteStepRequest struct {
	Actor   string         `json:"actor"`
	Data    map[string]any `json:"data,omitempty"`
	Comment string         `json:"comment,omitempty"`
}

// ActorRequest — запрос с указанием инициатора (suspend/resume).
type ActorRequest struct {
	Actor string `json:"actor"`
}

// CancelRequest — запрос на отмену instance.
type CancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// Event DTOs

// EventResponse — ответ с событием журнала.
type EventResponse struct {
	ID             uuid.UUID      `json:"id"`
	InstanceID     uuid.UUID      `json:"instance_id"`
	StepInstanceID *uuid.UUID     `json:"step_instance_id,omitempty"`
	Type           string         `json:"type"`
	Payload        map[string]any `json:"payload,omitempty"`
	Actor          string         `json:"actor,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// EventFromDomain конвертирует domain.WorkflowEvent в EventResponse.
func EventFromDomain(e domain.WorkflowEvent) EventResponse {
	return EventResponse{
		ID:             e.ID,
		InstanceID:     e.InstanceID,
		StepInstanceID: e.StepInstanceID,
		Type:           string(e.Type),
		Payload:        e.Payload,
		Actor:          e.Actor,
		CreatedAt:      e.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	DefinitionName string         `json:"definition_name"`
	Name           string         `json:"name,omitempty"`
	CronExpr       string         `json:"cron_expr,omitempty"`
	IntervalSec    int            `json:"interval_sec,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	Enabled        bool           `json:"enabled"`
	CaseRefPrefix  string         `json:"case_ref_prefix,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name          *string         `json:"name,omitempty"`
	CronExpr      *string         `json:"cron_expr,omitempty"`
	IntervalSec   *int            `json:"interval_sec,omitempty"`
	Timezone      *string         `json:"timezone,omitempty"`
	CaseRefPrefix *string         `json:"case_ref_prefix,omitempty"`
	Priority      *string         `json:"priority,omitempty"`
	Context       *map[string]any `json:"context,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID             uuid.UUID      `json:"id"`
	DefinitionName string         `json:"definition_name"`
	Name           string         `json:"name,omitempty"`
	CronExpr       string         `json:"cron_expr,omitempty"`
	IntervalSec    int            `json:"interval_sec,omitempty"`
	Timezone       string         `json:"timezone"`
	Enabled        bool           `json:"enabled"`
	CaseRefPrefix  string         `json:"case_ref_prefix,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	NextDueAt      *time.Time     `json:"next_due_at,omitempty"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:             s.ID,
		DefinitionName: s.DefinitionName,
		Name:           s.Name,
		CronExpr:       s.CronExpr,
		IntervalSec:    s.IntervalSec,
		Timezone:       s.Timezone,
		Enabled:        s.Enabled,
		CaseRefPrefix:  s.CaseRefPrefix,
		Priority:       s.Priority,
		Context:        s.Context,
		NextDueAt:      s.NextDueAt,
		LastRunAt:      s.LastRunAt,
		CreatedAt:      s.CreatedAt,
	}
}
