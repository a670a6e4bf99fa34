package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Definitions
	mux.Handle("GET /api/v1/definitions", chain(http.HandlerFunc(h.ListDefinitions)))
	mux.Handle("POST /api/v1/definitions", chain(http.HandlerFunc(h.CreateDefinition)))
	mux.Handle("POST /api/v1/definitions/validate", chain(http.HandlerFunc(h.ValidateDefinition)))
	mux.Handle("GET /api/v1/definitions/{id}", chain(http.HandlerFunc(h.GetDefinition)))
	mux.Handle("POST /api/v1/definitions/{id}/activate", chain(http.HandlerFunc(h.ActivateDefinition)))
	mux.Handle("POST /api/v1/definitions/{id}/archive", chain(http.HandlerFunc(h.ArchiveDefinition)))
	mux.Handle("GET /api/v1/definitions/{name}/versions", chain(http.HandlerFunc(h.ListDefinitionVersions)))

	// Instances
	mux.Handle("GET /api/v1/instances", chain(http.HandlerFunc(h.ListInstances)))
	mux.Handle("POST /api/v1/instances", chain(http.HandlerFunc(h.StartInstance)))
	mux.Handle("GET /api/v1/instances/{id}", chain(http.HandlerFunc(h.GetInstance)))
	mux.Handle("POST /api/v1/instances/{id}/steps/{stepInstanceId}/execute", chain(http.HandlerFunc(h.ExecuteStep)))
	mux.Handle("POST /api/v1/instances/{id}/suspend", chain(http.HandlerFunc(h.SuspendInstance)))
	mux.Handle("POST /api/v1/instances/{id}/resume", chain(http.HandlerFunc(h.ResumeInstance)))
	mux.Handle("POST /api/v1/instances/{id}/cancel", chain(http.HandlerFunc(h.CancelInstance)))
	mux.Handle("GET /api/v1/instances/{id}/events", chain(http.HandlerFunc(h.ListInstanceEvents)))

	// Events
	mux.Handle("GET /api/v1/events", chain(http.HandlerFunc(h.ListEvents)))
	mux.Handle("GET /api/v1/events/timeline", chain(http.HandlerFunc(h.EventTimeline)))
	mux.Handle("GET /api/v1/events/stats", chain(http.HandlerFunc(h.EventStats)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
