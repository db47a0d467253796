// Package handlers provides HTTP handlers for the caregiver API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medikid/go-doseflow/internal/api/middleware"
	"github.com/medikid/go-doseflow/internal/domain/dose"
	"github.com/medikid/go-doseflow/internal/domain/medication"
	"github.com/medikid/go-doseflow/internal/domain/schedule"
	"github.com/medikid/go-doseflow/internal/observability/metrics"
)

// MedicationHandler handles medication and schedule endpoints
type MedicationHandler struct {
	meds       medication.Repository
	schedules  schedule.Repository
	reconciler *dose.Reconciler
	lifecycle  *dose.Lifecycle
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewMedicationHandler creates the handler
func NewMedicationHandler(meds medication.Repository, schedules schedule.Repository, reconciler *dose.Reconciler, lifecycle *dose.Lifecycle, m *metrics.Metrics, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		meds:       meds,
		schedules:  schedules,
		reconciler: reconciler,
		lifecycle:  lifecycle,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Routes returns the handler routes
func (h *MedicationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Put("/{id}/schedule", h.PutSchedule)
	r.Post("/{id}/stop", h.Stop)
	r.Post("/{id}/prn", h.RecordPRN)
	r.Get("/{id}/logs", h.Logs)
	return r
}

// CreateRequest is the request body for creating a medication
type CreateRequest struct {
	ChildID    string  `json:"child_id"`
	Name       string  `json:"name"`
	DoseAmount float64 `json:"dose_amount"`
	DoseUnit   string  `json:"dose_unit"`
	Route      string  `json:"route"`
	PRN        bool    `json:"prn"`
	Notes      string  `json:"notes,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

// MedicationResponse is the API shape of a medication
type MedicationResponse struct {
	ID         string     `json:"id"`
	ChildID    string     `json:"child_id"`
	Name       string     `json:"name"`
	DoseAmount float64    `json:"dose_amount"`
	DoseUnit   string     `json:"dose_unit"`
	Route      string     `json:"route"`
	PRN        bool       `json:"prn"`
	Notes      string     `json:"notes,omitempty"`
	Active     bool       `json:"active"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toMedicationResponse(m medication.Medication) MedicationResponse {
	return MedicationResponse{
		ID:         m.ID,
		ChildID:    m.ChildID,
		Name:       m.Name,
		DoseAmount: m.DoseAmount,
		DoseUnit:   string(m.DoseUnit),
		Route:      string(m.Route),
		PRN:        m.PRN,
		Notes:      m.Notes,
		Active:     m.Active(),
		StartedAt:  m.StartedAt,
		StoppedAt:  m.StoppedAt,
		CreatedAt:  m.CreatedAt,
	}
}

// Create handles POST /medications
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("medication-handler")
	ctx, span := tracer.Start(ctx, "create_medication")
	defer span.End()

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	in := medication.NewInput{
		ChildID:     req.ChildID,
		CaregiverID: middleware.GetCaregiverID(ctx),
		Name:        req.Name,
		DoseAmount:  req.DoseAmount,
		DoseUnit:    medication.Unit(req.DoseUnit),
		Route:       medication.Route(req.Route),
		PRN:         req.PRN,
		Notes:       req.Notes,
	}
	if req.StartedAt != nil {
		in.StartedAt = *req.StartedAt
	}

	med, err := medication.New(in, h.now())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("medication_id", med.ID))

	if err := h.meds.Create(ctx, med); err != nil {
		h.logger.Error("create medication failed", zap.Error(err))
		h.jsonError(w, "failed to create medication", http.StatusInternalServerError)
		return
	}

	h.logger.Info("medication created",
		zap.String("id", med.ID),
		zap.String("child_id", med.ChildID),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	h.writeJSON(w, http.StatusCreated, toMedicationResponse(med))
}

// List handles GET /medications?child_id=...
// Without child_id it returns the caregiver's active medications.
func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		meds []medication.Medication
		err  error
	)
	if childID := r.URL.Query().Get("child_id"); childID != "" {
		meds, err = h.meds.ListByChild(ctx, childID)
	} else {
		meds, err = h.meds.ListActiveByCaregiver(ctx, middleware.GetCaregiverID(ctx))
	}
	if err != nil {
		h.logger.Error("list medications failed", zap.Error(err))
		h.jsonError(w, "failed to list medications", http.StatusInternalServerError)
		return
	}

	resp := make([]MedicationResponse, 0, len(meds))
	for _, m := range meds {
		resp = append(resp, toMedicationResponse(m))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /medications/{id}
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	med, err := h.meds.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, toMedicationResponse(med))
}

// UpdateRequest is the request body for editing a medication. Dose
// changes apply to future generation only; instances already generated
// keep their snapshotted amount and unit.
type UpdateRequest struct {
	Name       *string  `json:"name,omitempty"`
	DoseAmount *float64 `json:"dose_amount,omitempty"`
	DoseUnit   *string  `json:"dose_unit,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// Update handles PUT /medications/{id}
func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	med, err := h.meds.GetByID(ctx, id)
	if err != nil {
		h.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}
	if !med.Active() {
		h.jsonError(w, "medication is stopped", http.StatusConflict)
		return
	}

	if req.Name != nil {
		med.Name = strings.TrimSpace(*req.Name)
	}
	if req.DoseAmount != nil {
		med.DoseAmount = *req.DoseAmount
	}
	if req.DoseUnit != nil {
		unit := medication.Unit(*req.DoseUnit)
		if !medication.ValidUnit(unit) {
			h.jsonError(w, "invalid dose unit", http.StatusBadRequest)
			return
		}
		med.DoseUnit = unit
	}
	if req.Notes != nil {
		med.Notes = strings.TrimSpace(*req.Notes)
	}
	med.UpdatedAt = h.now()

	if med.Name == "" || med.DoseAmount <= 0 {
		h.jsonError(w, "invalid medication", http.StatusBadRequest)
		return
	}

	if err := h.meds.Update(ctx, med); err != nil {
		h.logger.Error("update medication failed", zap.Error(err))
		h.jsonError(w, "failed to update medication", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, toMedicationResponse(med))
}

// ScheduleRequest is the request body for setting a schedule rule
type ScheduleRequest struct {
	Kind          string     `json:"kind"`
	IntervalHours int        `json:"interval_hours,omitempty"`
	Times         []string   `json:"times,omitempty"`
	ActiveFrom    *time.Time `json:"active_from,omitempty"`
}

// PutSchedule handles PUT /medications/{id}/schedule. Saving a rule
// replaces any existing one and reconciles the pending instance horizon
// against the new cadence.
func (h *MedicationHandler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	med, err := h.meds.GetByID(ctx, id)
	if err != nil {
		h.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}
	if med.PRN {
		h.jsonError(w, "PRN medications are not scheduled", http.StatusBadRequest)
		return
	}
	if !med.Active() {
		h.jsonError(w, "medication is stopped", http.StatusConflict)
		return
	}

	activeFrom := h.now()
	if req.ActiveFrom != nil {
		activeFrom = *req.ActiveFrom
	}

	rule, err := h.buildRule(id, req, activeFrom)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.schedules.Save(ctx, rule); err != nil {
		h.logger.Error("save schedule failed", zap.Error(err))
		h.jsonError(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}

	if err := h.reconciler.OnScheduleSaved(ctx, id); err != nil {
		h.logger.Error("schedule reconciliation failed",
			zap.String("medication_id", id), zap.Error(err))
		h.jsonError(w, "failed to reconcile schedule", http.StatusInternalServerError)
		return
	}
	h.metrics.SchedulesReconciled.Inc()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"medication_id": id,
		"rule_id":       rule.ID,
		"kind":          rule.Kind,
		"active_from":   rule.ActiveFrom,
	})
}

func (h *MedicationHandler) buildRule(medicationID string, req ScheduleRequest, activeFrom time.Time) (schedule.Rule, error) {
	times := make([]schedule.TimeOfDay, 0, len(req.Times))
	for _, s := range req.Times {
		t, err := schedule.ParseTimeOfDay(s)
		if err != nil {
			return schedule.Rule{}, err
		}
		times = append(times, t)
	}

	switch schedule.Kind(req.Kind) {
	case schedule.KindEveryXHours:
		return schedule.NewEveryXHours(medicationID, req.IntervalHours, activeFrom)
	case schedule.KindTimesPerDay:
		return schedule.NewTimesPerDay(medicationID, times, activeFrom)
	case schedule.KindSpecificTimes:
		return schedule.NewSpecificTimes(medicationID, times, activeFrom)
	default:
		return schedule.Rule{}, schedule.ErrInvalidRule
	}
}

// Stop handles POST /medications/{id}/stop. Stopping clears pending
// future instances; past instances and logs are untouched.
func (h *MedicationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if _, err := h.meds.GetByID(ctx, id); err != nil {
		h.jsonError(w, "medication not found", http.StatusNotFound)
		return
	}

	if err := h.meds.Stop(ctx, id, h.now()); err != nil {
		h.logger.Error("stop medication failed", zap.Error(err))
		h.jsonError(w, "failed to stop medication", http.StatusInternalServerError)
		return
	}

	if err := h.schedules.DeleteByMedication(ctx, id); err != nil {
		h.logger.Error("delete schedule failed",
			zap.String("medication_id", id), zap.Error(err))
	}

	if err := h.reconciler.OnMedicationStopped(ctx, id); err != nil {
		h.logger.Error("stop reconciliation failed",
			zap.String("medication_id", id), zap.Error(err))
		h.jsonError(w, "failed to clear pending doses", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "stopped"})
}

// PRNRequest is the request body for recording an as-needed dose
type PRNRequest struct {
	Amount float64 `json:"amount,omitempty"`
	Given  bool    `json:"given"`
	Reason string  `json:"reason"`
}

// RecordPRN handles POST /medications/{id}/prn
func (h *MedicationHandler) RecordPRN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req PRNRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.lifecycle.RecordPRN(ctx, id, req.Amount, req.Given, req.Reason, middleware.GetCaregiverID(ctx))
	if err != nil {
		switch {
		case errors.Is(err, dose.ErrReasonRequired):
			h.jsonError(w, "reason is required", http.StatusBadRequest)
		case errors.Is(err, medication.ErrNotFound):
			h.jsonError(w, "medication not found", http.StatusNotFound)
		default:
			h.jsonError(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	h.metrics.PRNDosesRecorded.Inc()

	h.writeJSON(w, http.StatusCreated, toLogResponse(entry))
}

// Logs handles GET /medications/{id}/logs
func (h *MedicationHandler) Logs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	logs, err := h.lifecycle.History(ctx, id, limit)
	if err != nil {
		h.logger.Error("dose history failed", zap.Error(err))
		h.jsonError(w, "failed to load dose history", http.StatusInternalServerError)
		return
	}

	resp := make([]LogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, toLogResponse(l))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// LogResponse is the API shape of a dose log entry
type LogResponse struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	InstanceID   *string   `json:"instance_id,omitempty"`
	AmountGiven  float64   `json:"amount_given"`
	Unit         string    `json:"unit"`
	Given        bool      `json:"given"`
	Reason       string    `json:"reason,omitempty"`
	RecordedBy   string    `json:"recorded_by"`
	RecordedAt   time.Time `json:"recorded_at"`
}

func toLogResponse(l dose.Log) LogResponse {
	return LogResponse{
		ID:           l.ID,
		MedicationID: l.MedicationID,
		InstanceID:   l.InstanceID,
		AmountGiven:  l.AmountGiven,
		Unit:         string(l.Unit),
		Given:        l.Given,
		Reason:       l.Reason,
		RecordedBy:   l.RecordedBy,
		RecordedAt:   l.RecordedAt,
	}
}

func (h *MedicationHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *MedicationHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
