package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/medikid/go-doseflow/internal/api/middleware"
	"github.com/medikid/go-doseflow/internal/domain/dose"
	"github.com/medikid/go-doseflow/internal/observability/metrics"
)

// DoseHandler serves the due-medications list and dose resolution
type DoseHandler struct {
	service   *dose.Service
	lifecycle *dose.Lifecycle
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewDoseHandler creates the handler
func NewDoseHandler(service *dose.Service, lifecycle *dose.Lifecycle, m *metrics.Metrics, logger *zap.Logger) *DoseHandler {
	return &DoseHandler{
		service:   service,
		lifecycle: lifecycle,
		metrics:   m,
		logger:    logger,
	}
}

// Routes returns the handler routes
func (h *DoseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/due", h.Due)
	r.Post("/{id}/resolve", h.Resolve)
	return r
}

// DueItemResponse is one entry of the due list
type DueItemResponse struct {
	InstanceID     string    `json:"instance_id"`
	MedicationID   string    `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	ChildID        string    `json:"child_id"`
	DueAt          time.Time `json:"due_at"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	Amount         float64   `json:"amount"`
	Unit           string    `json:"unit"`
	Urgency        string    `json:"urgency"`
}

// Due handles GET /doses/due. The list covers everything overdue plus
// instances due within the next hour, overdue first.
func (h *DoseHandler) Due(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("dose-handler")
	ctx, span := tracer.Start(ctx, "due_list")
	defer span.End()

	start := time.Now()
	items, err := h.service.Due(ctx, middleware.GetCaregiverID(ctx))
	h.metrics.DueListDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		h.logger.Error("due list failed", zap.Error(err))
		h.jsonError(w, "failed to load due medications", http.StatusInternalServerError)
		return
	}

	resp := make([]DueItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, DueItemResponse{
			InstanceID:     it.Instance.ID,
			MedicationID:   it.Instance.MedicationID,
			MedicationName: it.MedicationName,
			ChildID:        it.Instance.ChildID,
			DueAt:          it.Instance.DueAt,
			WindowStart:    it.Instance.WindowStart,
			WindowEnd:      it.Instance.WindowEnd,
			Amount:         it.Instance.Amount,
			Unit:           string(it.Instance.Unit),
			Urgency:        string(it.Urgency),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ResolveRequest is the request body for resolving a dose instance
type ResolveRequest struct {
	Given  bool   `json:"given"`
	Reason string `json:"reason,omitempty"`
}

// Resolve handles POST /doses/{id}/resolve
func (h *DoseHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	inst, err := h.lifecycle.Resolve(ctx, id, req.Given, req.Reason, middleware.GetCaregiverID(ctx))
	if err != nil {
		switch {
		case errors.Is(err, dose.ErrReasonRequired):
			h.jsonError(w, "skipping a dose requires a reason", http.StatusBadRequest)
		case errors.Is(err, dose.ErrAlreadyResolved):
			h.jsonError(w, "dose already resolved", http.StatusConflict)
		case errors.Is(err, dose.ErrNotFound):
			h.jsonError(w, "dose instance not found", http.StatusNotFound)
		default:
			h.logger.Error("resolve failed",
				zap.String("instance_id", id), zap.Error(err))
			h.jsonError(w, "failed to resolve dose", http.StatusInternalServerError)
		}
		return
	}
	h.metrics.DosesResolved.WithLabelValues(string(inst.Status)).Inc()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"instance_id": inst.ID,
		"status":      inst.Status,
		"due_at":      inst.DueAt,
	})
}

func (h *DoseHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *DoseHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
