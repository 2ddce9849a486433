package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"influencer-attribution-api/internal/analytics"
	"influencer-attribution-api/internal/logger"
	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/service"
	"influencer-attribution-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 10 << 20, // 10MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Post("/visits", h.CaptureVisit)
	r.Get("/visits/{visitor_id}/attribution", h.GetAttribution)
	r.Delete("/visits/{visitor_id}/attribution", h.ClearAttribution)

	r.Post("/registrations/steps", h.SaveRegistrationStep)
	r.Post("/leads/import", h.ImportLeads)
	r.Get("/leads", h.ListLeads)

	r.Route("/referral-links", func(r chi.Router) {
		r.Post("/", h.CreateLink)
		r.Get("/", h.ListLinks)
		r.Delete("/{id}", h.DeleteLink)
	})

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/influencers", h.InfluencerAnalytics)
		r.Get("/influencers.csv", h.InfluencerAnalyticsCSV)
		r.Get("/trend", h.DailyTrend)
		r.Get("/breakdown", h.Breakdown)
	})

	r.Route("/slots", func(r chi.Router) {
		r.Get("/recurring", h.GetRecurringSlots)
		r.Put("/recurring", h.SetRecurringSlot)
		r.Get("/overrides", h.GetOverrides)
		r.Put("/overrides", h.SetOverride)
		r.Delete("/overrides/{date}/{slot_id}", h.DeleteOverride)
		r.Get("/bookings", h.GetBookings)
		r.Get("/schedule", h.GetSchedule)
	})

	r.Get("/features", h.ListFeatures)
	r.Put("/features/{name}", h.SetFeature)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		logger.Ctx(r.Context()).Error("health check failed", zap.Error(err))
		h.respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// decodeJSON reads a size-limited JSON body into dst. It writes the error
// response itself and reports whether decoding succeeded.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, "request body is required")
		case errors.As(err, &maxErr):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

// CaptureVisit handles POST /visits
func (h *Handler) CaptureVisit(w http.ResponseWriter, r *http.Request) {
	var req models.CaptureVisitRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.CaptureVisit(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Captured {
		status = http.StatusCreated
	}
	h.respondJSON(w, status, resp)
}

// GetAttribution handles GET /visits/{visitor_id}/attribution
func (h *Handler) GetAttribution(w http.ResponseWriter, r *http.Request) {
	visitorID := chi.URLParam(r, "visitor_id")

	t, err := h.service.ReadAttribution(r.Context(), visitorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.CaptureVisitResponse{
		VisitorID:  visitorID,
		FirstTouch: t,
	})
}

// ClearAttribution handles DELETE /visits/{visitor_id}/attribution
func (h *Handler) ClearAttribution(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearAttribution(r.Context(), chi.URLParam(r, "visitor_id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveRegistrationStep handles POST /registrations/steps
func (h *Handler) SaveRegistrationStep(w http.ResponseWriter, r *http.Request) {
	var req models.SaveStepRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	lead, err := h.service.SaveRegistrationStep(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, lead)
}

// ImportLeads handles POST /leads/import
func (h *Handler) ImportLeads(w http.ResponseWriter, r *http.Request) {
	var req models.ImportLeadsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	n, err := h.service.ImportLeads(r.Context(), req.Leads)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, models.ImportLeadsResponse{Imported: n})
}

// ListLeads handles GET /leads
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.service.ListLeads(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, leads)
}

// CreateLink handles POST /referral-links
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLinkRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	link, err := h.service.CreateLink(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if link.ID != "" {
		status = http.StatusCreated
	}
	h.respondJSON(w, status, models.CreateLinkResponse{UTMLink: link.UTMLink, ID: link.ID})
}

// ListLinks handles GET /referral-links
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.service.ListLinks(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, links)
}

// DeleteLink handles DELETE /referral-links/{id}
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLink(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func analyticsQuery(r *http.Request) (service.AnalyticsQuery, error) {
	q := r.URL.Query()
	aq := service.AnalyticsQuery{
		From:       q.Get("from"),
		To:         q.Get("to"),
		Sort:       q.Get("sort"),
		Influencer: q.Get("influencer"),
		Dimension:  q.Get("dimension"),
	}
	if linked := q.Get("linked"); linked != "" {
		v, err := strconv.ParseBool(linked)
		if err != nil {
			return service.AnalyticsQuery{}, &validation.ValidationError{Field: "linked", Message: "must be true or false"}
		}
		aq.LinkedOnly = v
	}
	return aq, nil
}

// InfluencerAnalytics handles GET /analytics/influencers
func (h *Handler) InfluencerAnalytics(w http.ResponseWriter, r *http.Request) {
	q, err := analyticsQuery(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	rows, err := h.service.InfluencerAnalytics(r.Context(), q)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rows)
}

// InfluencerAnalyticsCSV handles GET /analytics/influencers.csv
func (h *Handler) InfluencerAnalyticsCSV(w http.ResponseWriter, r *http.Request) {
	q, err := analyticsQuery(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	rows, err := h.service.InfluencerAnalytics(r.Context(), q)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="influencer-analytics.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := analytics.WriteCSV(w, rows); err != nil {
		logger.Ctx(r.Context()).Error("failed to write csv", zap.Error(err))
	}
}

// DailyTrend handles GET /analytics/trend
func (h *Handler) DailyTrend(w http.ResponseWriter, r *http.Request) {
	q, err := analyticsQuery(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	points, err := h.service.DailyTrend(r.Context(), q)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, points)
}

// Breakdown handles GET /analytics/breakdown
func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	q, err := analyticsQuery(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	rows, err := h.service.Breakdown(r.Context(), q)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rows)
}

// GetRecurringSlots handles GET /slots/recurring
func (h *Handler) GetRecurringSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.service.RecurringSlots(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, slots)
}

// SetRecurringSlot handles PUT /slots/recurring
func (h *Handler) SetRecurringSlot(w http.ResponseWriter, r *http.Request) {
	var req models.RecurringSlot
	if !h.decodeJSON(w, r, &req) {
		return
	}

	slot, err := h.service.SetRecurringSlot(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, slot)
}

// GetOverrides handles GET /slots/overrides
func (h *Handler) GetOverrides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	overrides, err := h.service.Overrides(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, overrides)
}

// SetOverride handles PUT /slots/overrides
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req models.SlotOverride
	if !h.decodeJSON(w, r, &req) {
		return
	}

	o, err := h.service.SetOverride(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, o)
}

// DeleteOverride handles DELETE /slots/overrides/{date}/{slot_id}
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteOverride(r.Context(), chi.URLParam(r, "date"), chi.URLParam(r, "slot_id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBookings handles GET /slots/bookings
func (h *Handler) GetBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bookings, err := h.service.Bookings(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, bookings)
}

// GetSchedule handles GET /slots/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	schedule, err := h.service.Schedule(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, schedule)
}

// ListFeatures handles GET /features
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Features())
}

// SetFeature handles PUT /features/{name}
func (h *Handler) SetFeature(w http.ResponseWriter, r *http.Request) {
	var req models.SetFeatureRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		h.respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	flag, err := h.service.SetFeature(r.Context(), chi.URLParam(r, "name"), *req.Enabled)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, flag)
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondServiceError maps typed errors to 400/404. Anything else is a 500
// whose details only go to the log.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case validation.IsValidation(err), validation.IsRange(err):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case validation.IsNotFound(err):
		h.respondError(w, http.StatusNotFound, err.Error())
	default:
		logger.Ctx(r.Context()).Error("request failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
