package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// DefinitionResponse — definition из API.
type DefinitionResponse struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Version       int              `json:"version"`
	Status        string           `json:"status"`
	Description   string           `json:"description,omitempty"`
	DeviceTypes   []string         `json:"device_types,omitempty"`
	ServiceTypes  []string         `json:"service_types,omitempty"`
	CustomerTiers []string         `json:"customer_tiers,omitempty"`
	Steps         []map[string]any `json:"steps,omitempty"`
	CreatedBy     string           `json:"created_by,omitempty"`
	CreatedAt     string           `json:"created_at"`
}

// ValidationResult — результат валидации definition.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// FieldError — одно нарушение валидации.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InstanceResponse — instance из API.
type InstanceResponse struct {
	ID                string         `json:"id"`
	DefinitionID      string         `json:"definition_id"`
	DefinitionVersion int            `json:"definition_version"`
	CaseRef           string         `json:"case_ref"`
	Status            string         `json:"status"`
	Priority          string         `json:"priority,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
	StartedBy         string         `json:"started_by,omitempty"`
	StartedAt         string         `json:"started_at,omitempty"`
	CompletedAt       string         `json:"completed_at,omitempty"`
	CreatedAt         string         `json:"created_at"`
}

// StepInstanceResponse — шаг instance из API.
type StepInstanceResponse struct {
	ID            string         `json:"id"`
	InstanceID    string         `json:"instance_id"`
	StepName      string         `json:"step_name"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	ActivatedBy   string         `json:"activated_by,omitempty"`
	ActivatedAt   string         `json:"activated_at,omitempty"`
	CompletedBy   string         `json:"completed_by,omitempty"`
	CompletedAt   string         `json:"completed_at,omitempty"`
	ExecutionData map[string]any `json:"execution_data,omitempty"`
	Comment       string         `json:"comment,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// HydratedInstanceResponse — instance вместе с шагами.
type HydratedInstanceResponse struct {
	Instance InstanceResponse       `json:"instance"`
	Steps    []StepInstanceResponse `json:"steps"`
}

// EventResponse — событие журнала из API.
type EventResponse struct {
	ID             string         `json:"id"`
	InstanceID     string         `json:"instance_id"`
	StepInstanceID string         `json:"step_instance_id,omitempty"`
	Type           string         `json:"type"`
	Payload        map[string]any `json:"payload,omitempty"`
	Actor          string         `json:"actor,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID             string         `json:"id"`
	DefinitionName string         `json:"definition_name"`
	Name           string         `json:"name,omitempty"`
	CronExpr       string         `json:"cron_expr,omitempty"`
	IntervalSec    int            `json:"interval_sec,omitempty"`
	Timezone       string         `json:"timezone"`
	Enabled        bool           `json:"enabled"`
	CaseRefPrefix  string         `json:"case_ref_prefix,omitempty"`
	Priority       string         `json:"priority,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	NextDueAt      string         `json:"next_due_at,omitempty"`
	LastRunAt      string         `json:"last_run_at,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// --- Request types ---

// StartInstanceRequest — запуск instance.
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

// ExecuteStepRequest — выполнение шага.
type ExecuteStepRequest struct {
	Actor   string         `json:"actor"`
	Data    map[string]any `json:"data,omitempty"`
	Comment string         `json:"comment,omitempty"`
}

// CreateScheduleRequest — создание schedule.
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

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name          *string `json:"name,omitempty"`
	CronExpr      *string `json:"cron_expr,omitempty"`
	IntervalSec   *int    `json:"interval_sec,omitempty"`
	Timezone      *string `json:"timezone,omitempty"`
	CaseRefPrefix *string `json:"case_ref_prefix,omitempty"`
	Priority      *string `json:"priority,omitempty"`
}

// ListInstancesOpts — параметры фильтрации instances.
type ListInstancesOpts struct {
	DefinitionID string
	CaseRef      string
	Status       string
	Limit        int
}

// ListDefinitionsOpts — параметры фильтрации definitions.
type ListDefinitionsOpts struct {
	Name   string
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string       `json:"code"`
		Message string       `json:"message"`
		Fields  []FieldError `json:"fields,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Caseflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Definitions ---

// ListDefinitions возвращает definitions с фильтрацией.
func (c *Client) ListDefinitions(opts ListDefinitionsOpts) ([]DefinitionResponse, error) {
	params := url.Values{}
	if opts.Name != "" {
		params.Set("name", opts.Name)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var defs []DefinitionResponse
	err := c.list("/api/v1/definitions", params, &defs)
	return defs, err
}

// CreateDefinition создаёт draft версию definition из JSON.
func (c *Client) CreateDefinition(body json.RawMessage) (*DefinitionResponse, error) {
	var def DefinitionResponse
	err := c.doData(http.MethodPost, "/api/v1/definitions", body, &def)
	return &def, err
}

// ValidateDefinition валидирует definition без сохранения.
func (c *Client) ValidateDefinition(body json.RawMessage) (*ValidationResult, error) {
	var result ValidationResult
	err := c.doData(http.MethodPost, "/api/v1/definitions/validate", body, &result)
	return &result, err
}

// GetDefinition возвращает definition по ID.
func (c *Client) GetDefinition(id string) (*DefinitionResponse, error) {
	var def DefinitionResponse
	err := c.get("/api/v1/definitions/"+id, &def)
	return &def, err
}

// ActivateDefinition активирует версию definition.
func (c *Client) ActivateDefinition(id string) (*DefinitionResponse, error) {
	var def DefinitionResponse
	err := c.post("/api/v1/definitions/"+id+"/activate", nil, &def)
	return &def, err
}

// ArchiveDefinition архивирует версию definition.
func (c *Client) ArchiveDefinition(id string) error {
	return c.post("/api/v1/definitions/"+id+"/archive", nil, nil)
}

// ListDefinitionVersions возвращает все версии definition по имени.
func (c *Client) ListDefinitionVersions(name string) ([]DefinitionResponse, error) {
	var versions []DefinitionResponse
	err := c.list("/api/v1/definitions/"+url.PathEscape(name)+"/versions", nil, &versions)
	return versions, err
}

// --- Instances ---

// ListInstances возвращает instances с фильтрацией.
func (c *Client) ListInstances(opts ListInstancesOpts) ([]InstanceResponse, error) {
	params := url.Values{}
	if opts.DefinitionID != "" {
		params.Set("definition_id", opts.DefinitionID)
	}
	if opts.CaseRef != "" {
		params.Set("case_ref", opts.CaseRef)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var instances []InstanceResponse
	err := c.list("/api/v1/instances", params, &instances)
	return instances, err
}

// StartInstance запускает новый instance.
func (c *Client) StartInstance(req StartInstanceRequest) (*InstanceResponse, error) {
	var inst InstanceResponse
	err := c.post("/api/v1/instances", req, &inst)
	return &inst, err
}

// GetInstance возвращает instance вместе с шагами.
func (c *Client) GetInstance(id string) (*HydratedInstanceResponse, error) {
	var hydrated HydratedInstanceResponse
	err := c.get("/api/v1/instances/"+id, &hydrated)
	return &hydrated, err
}

// ExecuteStep выполняет шаг instance.
func (c *Client) ExecuteStep(instanceID, stepInstanceID string, req ExecuteStepRequest) (*InstanceResponse, error) {
	var inst InstanceResponse
	path := "/api/v1/instances/" + instanceID + "/steps/" + stepInstanceID + "/execute"
	err := c.post(path, req, &inst)
	return &inst, err
}

// SuspendInstance приостанавливает instance.
func (c *Client) SuspendInstance(id, actor string) (*HydratedInstanceResponse, error) {
	var hydrated HydratedInstanceResponse
	err := c.post("/api/v1/instances/"+id+"/suspend", map[string]string{"actor": actor}, &hydrated)
	return &hydrated, err
}

// ResumeInstance возобновляет instance.
func (c *Client) ResumeInstance(id, actor string) (*HydratedInstanceResponse, error) {
	var hydrated HydratedInstanceResponse
	err := c.post("/api/v1/instances/"+id+"/resume", map[string]string{"actor": actor}, &hydrated)
	return &hydrated, err
}

// CancelInstance отменяет instance.
func (c *Client) CancelInstance(id, actor, reason string) (*HydratedInstanceResponse, error) {
	var hydrated HydratedInstanceResponse
	body := map[string]string{"actor": actor, "reason": reason}
	err := c.post("/api/v1/instances/"+id+"/cancel", body, &hydrated)
	return &hydrated, err
}

// ListInstanceEvents возвращает события instance.
func (c *Client) ListInstanceEvents(id string) ([]EventResponse, error) {
	var events []EventResponse
	err := c.list("/api/v1/instances/"+id+"/events", nil, &events)
	return events, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если definitionName не пустой — фильтрует.
func (c *Client) ListSchedules(definitionName string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if definitionName != "" {
		params.Set("definition_name", definitionName)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		switch b := body.(type) {
		case json.RawMessage:
			bodyReader = bytes.NewReader(b)
		default:
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request: %w", err)
			}
			bodyReader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	if len(er.Error.Fields) > 0 {
		var sb strings.Builder
		for _, f := range er.Error.Fields {
			fmt.Fprintf(&sb, "\n  %s: %s", f.Field, f.Message)
		}
		return fmt.Errorf("%s: %s%s", er.Error.Code, er.Error.Message, sb.String())
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
