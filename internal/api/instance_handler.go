package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/orchestrator"
	"github.com/shaiso/Caseflow/internal/repo"
)

// ListInstances возвращает список instances с фильтрацией.
// GET /api/v1/instances?definition_id=...&case_ref=...&status=...&limit=...&offset=...
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	filter := repo.InstanceFilter{
		CaseRef: r.URL.Query().Get("case_ref"),
		Status:  domain.InstanceStatus(r.URL.Query().Get("status")),
		Limit:   parseIntOr(r.URL.Query().Get("limit"), 50),
		Offset:  parseIntOr(r.URL.Query().Get("offset"), 0),
	}

	if defIDStr := r.URL.Query().Get("definition_id"); defIDStr != "" {
		defID, err := uuid.Parse(defIDStr)
		if err != nil {
			BadRequest(w, "invalid definition_id")
			return
		}
		filter.DefinitionID = &defID
	}

	instances, err := h.instRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]InstanceResponse, len(instances))
	for i, inst := range instances {
		result[i] = InstanceFromDomain(inst)
	}

	List(w, result, len(result))
}

// StartInstance запускает новый workflow instance.
// POST /api/v1/instances
//
// Instance запускается по активной версии definition с именем из запроса.
func (h *Handler) StartInstance(w http.ResponseWriter, r *http.Request) {
	var req StartInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	startedBy := req.StartedBy
	if startedBy == "" {
		startedBy = "api"
	}

	inst, err := h.engine.StartWorkflow(r.Context(), orchestrator.StartRequest{
		DefinitionName: req.DefinitionName,
		CaseRef:        req.CaseRef,
		Priority:       req.Priority,
		DeviceType:     req.DeviceType,
		ServiceType:    req.ServiceType,
		CustomerTier:   req.CustomerTier,
		Context:        req.Context,
		StartedBy:      startedBy,
	})
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Created(w, InstanceFromDomain(*inst))
}

// GetInstance возвращает instance вместе с его шагами.
// GET /api/v1/instances/{id}
func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	hydrated, err := h.engine.GetInstance(r.Context(), id)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, hydrated)
}

// ExecuteStep выполняет активный шаг instance.
// POST /api/v1/instances/{id}/steps/{stepInstanceId}/execute
func (h *Handler) ExecuteStep(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	stepInstanceID, err := uuid.Parse(r.PathValue("stepInstanceId"))
	if err != nil {
		BadRequest(w, "invalid step instance id")
		return
	}

	var req ExecuteStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Actor == "" {
		BadRequest(w, "actor is required")
		return
	}

	inst, err := h.engine.ExecuteStep(r.Context(), orchestrator.ExecuteStepRequest{
		InstanceID:     instanceID,
		StepInstanceID: stepInstanceID,
		Actor:          req.Actor,
		Data:           req.Data,
		Comment:        req.Comment,
	})
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, InstanceFromDomain(*inst))
}

// SuspendInstance приостанавливает instance.
// POST /api/v1/instances/{id}/suspend
func (h *Handler) SuspendInstance(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, func(id uuid.UUID, actor string) error {
		return h.engine.Suspend(r.Context(), id, actor)
	})
}

// ResumeInstance возобновляет приостановленный instance.
// POST /api/v1/instances/{id}/resume
func (h *Handler) ResumeInstance(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, func(id uuid.UUID, actor string) error {
		return h.engine.Resume(r.Context(), id, actor)
	})
}

// CancelInstance отменяет instance.
// POST /api/v1/instances/{id}/cancel
func (h *Handler) CancelInstance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Actor == "" {
		BadRequest(w, "actor is required")
		return
	}

	if err := h.engine.Cancel(r.Context(), id, req.Actor, req.Reason); err != nil {
		HandleEngineError(w, h.logger, err)
		return
	}

	hydrated, err := h.engine.GetInstance(r.Context(), id)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, hydrated)
}

// lifecycleAction — общий обработчик suspend/resume.
func (h *Handler) lifecycleAction(w http.ResponseWriter, r *http.Request, action func(uuid.UUID, string) error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Actor == "" {
		BadRequest(w, "actor is required")
		return
	}

	if err := action(id, req.Actor); err != nil {
		HandleEngineError(w, h.logger, err)
		return
	}

	hydrated, err := h.engine.GetInstance(r.Context(), id)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, hydrated)
}
