package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/repo"
)

// ListDefinitions возвращает список definitions с фильтрацией.
// GET /api/v1/definitions?name=...&status=...&limit=...&offset=...
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	filter := repo.DefinitionFilter{
		Name:   r.URL.Query().Get("name"),
		Status: domain.DefinitionStatus(r.URL.Query().Get("status")),
		Limit:  parseIntOr(r.URL.Query().Get("limit"), 50),
		Offset: parseIntOr(r.URL.Query().Get("offset"), 0),
	}

	defs, err := h.defRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DefinitionResponse, len(defs))
	for i, d := range defs {
		result[i] = DefinitionFromDomain(d)
	}

	List(w, result, len(result))
}

// CreateDefinition создаёт новую draft версию definition.
// POST /api/v1/definitions
//
// Версия назначается автоматически: следующая после максимальной
// существующей версии с тем же именем.
func (h *Handler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req CreateDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	def := &domain.WorkflowDefinition{
		ID:            uuid.New(),
		Name:          req.Name,
		Status:        domain.DefinitionStatusDraft,
		Description:   req.Description,
		DeviceTypes:   req.DeviceTypes,
		ServiceTypes:  req.ServiceTypes,
		CustomerTiers: req.CustomerTiers,
		Steps:         req.Steps,
		Metadata:      req.Metadata,
		CreatedBy:     req.CreatedBy,
		CreatedAt:     time.Now().UTC(),
	}

	if errs := h.validator.Validate(def); len(errs) > 0 {
		ValidationFailed(w, errs)
		return
	}

	if err := h.defRepo.Create(r.Context(), def); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, DefinitionFromDomain(*def))
}

// ValidateDefinition валидирует definition без сохранения.
// POST /api/v1/definitions/validate
//
// Применяются строгие правила активации — все нарушения возвращаются
// списком за один проход.
func (h *Handler) ValidateDefinition(w http.ResponseWriter, r *http.Request) {
	var req CreateDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	def := &domain.WorkflowDefinition{
		Name:          req.Name,
		Description:   req.Description,
		DeviceTypes:   req.DeviceTypes,
		ServiceTypes:  req.ServiceTypes,
		CustomerTiers: req.CustomerTiers,
		Steps:         req.Steps,
		Metadata:      req.Metadata,
	}

	errs := h.validator.ValidateForActivation(def)
	Success(w, map[string]any{
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}

// GetDefinition возвращает definition по ID.
// GET /api/v1/definitions/{id}
func (h *Handler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid definition id")
		return
	}

	def, err := h.defRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "definition not found") {
		return
	}

	Success(w, DefinitionFromDomain(*def))
}

// ActivateDefinition активирует версию definition.
// POST /api/v1/definitions/{id}/activate
//
// Предыдущая активная версия с тем же именем архивируется атомарно.
func (h *Handler) ActivateDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid definition id")
		return
	}

	def, err := h.defRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "definition not found") {
		return
	}

	if errs := h.validator.ValidateForActivation(def); len(errs) > 0 {
		ValidationFailed(w, errs)
		return
	}

	if err := h.defRepo.Activate(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "definition not found")
		return
	}

	def, err = h.defRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "definition not found") {
		return
	}

	Success(w, DefinitionFromDomain(*def))
}

// ArchiveDefinition архивирует версию definition.
// POST /api/v1/definitions/{id}/archive
func (h *Handler) ArchiveDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid definition id")
		return
	}

	if err := h.defRepo.Archive(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "definition not found")
		return
	}

	NoContent(w)
}

// ListDefinitionVersions возвращает все версии definition по имени.
// GET /api/v1/definitions/{name}/versions
func (h *Handler) ListDefinitionVersions(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		BadRequest(w, "definition name is required")
		return
	}

	versions, err := h.defRepo.ListVersions(r.Context(), name)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DefinitionResponse, len(versions))
	for i, v := range versions {
		result[i] = DefinitionFromDomain(v)
	}

	List(w, result, len(result))
}

// parseIntOr парсит целое из строки, возвращая default при ошибке.
func parseIntOr(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
