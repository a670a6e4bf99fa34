package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
	"github.com/shaiso/Caseflow/internal/events"
)

// ListEvents возвращает события журнала с фильтрацией.
// GET /api/v1/events?instance_id=...&types=a,b&since=...&until=...&limit=...&offset=...
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseEventFilter(w, r)
	if !ok {
		return
	}

	evs, err := h.eventRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]EventResponse, len(evs))
	for i, ev := range evs {
		result[i] = EventFromDomain(ev)
	}

	List(w, result, len(result))
}

// ListInstanceEvents возвращает события одного instance.
// GET /api/v1/instances/{id}/events
func (h *Handler) ListInstanceEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid instance id")
		return
	}

	filter := events.Filter{
		InstanceID: &id,
		Limit:      parseIntOr(r.URL.Query().Get("limit"), 100),
		Offset:     parseIntOr(r.URL.Query().Get("offset"), 0),
	}

	evs, err := h.eventRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]EventResponse, len(evs))
	for i, ev := range evs {
		result[i] = EventFromDomain(ev)
	}

	List(w, result, len(result))
}

// EventTimeline возвращает количество событий по дням за период.
// GET /api/v1/events/timeline?from=...&to=...
//
// По умолчанию — последние 30 дней.
func (h *Handler) EventTimeline(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			BadRequest(w, "invalid from timestamp, expected RFC3339")
			return
		}
		from = parsed
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			BadRequest(w, "invalid to timestamp, expected RFC3339")
			return
		}
		to = parsed
	}

	buckets, err := h.eventRepo.Timeline(r.Context(), from, to)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, buckets, len(buckets))
}

// EventStats возвращает агрегированную статистику журнала.
// GET /api/v1/events/stats?instance_id=...&since=...&until=...
func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseEventFilter(w, r)
	if !ok {
		return
	}

	stats, err := h.eventRepo.Stats(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, stats)
}

// parseEventFilter парсит общие query параметры фильтра событий.
// При ошибке отправляет 400 и возвращает ok=false.
func (h *Handler) parseEventFilter(w http.ResponseWriter, r *http.Request) (events.Filter, bool) {
	filter := events.Filter{
		Limit:  parseIntOr(r.URL.Query().Get("limit"), 100),
		Offset: parseIntOr(r.URL.Query().Get("offset"), 0),
	}

	if instIDStr := r.URL.Query().Get("instance_id"); instIDStr != "" {
		instID, err := uuid.Parse(instIDStr)
		if err != nil {
			BadRequest(w, "invalid instance_id")
			return filter, false
		}
		filter.InstanceID = &instID
	}

	if typesStr := r.URL.Query().Get("types"); typesStr != "" {
		for _, t := range strings.Split(typesStr, ",") {
			filter.Types = append(filter.Types, domain.EventType(strings.TrimSpace(t)))
		}
	}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			BadRequest(w, "invalid since timestamp, expected RFC3339")
			return filter, false
		}
		filter.Since = since
	}

	if untilStr := r.URL.Query().Get("until"); untilStr != "" {
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			BadRequest(w, "invalid until timestamp, expected RFC3339")
			return filter, false
		}
		filter.Until = until
	}

	return filter, true
}
