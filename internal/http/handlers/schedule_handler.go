package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/haleview/clinic-scheduler/internal/identity"
	"github.com/haleview/clinic-scheduler/internal/schedule"
	"github.com/haleview/clinic-scheduler/pkg/logging"
)

// ScheduleHandler exposes schedule CRUD, slot block toggling and the bulk
// template applier as JSON endpoints.
type ScheduleHandler struct {
	service *schedule.Service
	logger  *logging.Logger
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(service *schedule.Service, logger *logging.Logger) *ScheduleHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScheduleHandler{service: service, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error       string `json:"error"`
	BookedSlots int    `json:"booked_slots,omitempty"`
}

// writeScheduleError maps domain sentinels onto HTTP statuses.
func writeScheduleError(w http.ResponseWriter, err error) {
	var bookedErr *schedule.BookedSlotsError
	switch {
	case errors.As(err, &bookedErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: bookedErr.Error(), BookedSlots: bookedErr.Count})
	case errors.Is(err, schedule.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, schedule.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, schedule.ErrScheduleNotFound), errors.Is(err, schedule.ErrTemplateNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, schedule.ErrTemplateBooked),
		errors.Is(err, schedule.ErrDuplicateDay),
		errors.Is(err, schedule.ErrBulkConflictChanged):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func doctorFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	doctorID, ok := identity.DoctorIDFromContext(r.Context())
	if !ok || doctorID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing doctor context"})
		return "", false
	}
	return doctorID, true
}

func scheduleIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "scheduleID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid schedule id"})
		return uuid.Nil, false
	}
	return id, true
}

// CreateScheduleRequest is the body for POST /schedules.
type CreateScheduleRequest struct {
	ClinicID  string `json:"clinic_id"`
	DayOfWeek string `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CreateSchedule handles POST /schedules.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sched, err := h.service.CreateSchedule(r.Context(), doctorID, req.ClinicID,
		schedule.DayOfWeek(req.DayOfWeek), req.StartTime, req.EndTime)
	if err != nil {
		h.logger.Error("failed to create schedule", "error", err, "doctor_id", doctorID)
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

// GetSchedule handles GET /schedules/{scheduleID}.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := scheduleIDParam(w, r)
	if !ok {
		return
	}

	sched, err := h.service.GetSchedule(r.Context(), id, doctorID)
	if err != nil {
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// ListSchedulesResponse is the response for listing schedules.
type ListSchedulesResponse struct {
	Schedules []*schedule.Schedule `json:"schedules"`
	Count     int                  `json:"count"`
}

// ListSchedules handles GET /schedules?clinic_id=.
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}

	schedules, err := h.service.ListSchedules(r.Context(), doctorID, r.URL.Query().Get("clinic_id"))
	if err != nil {
		h.logger.Error("failed to list schedules", "error", err, "doctor_id", doctorID)
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListSchedulesResponse{Schedules: schedules, Count: len(schedules)})
}

// UpdateScheduleRequest is the body for PATCH /schedules/{scheduleID};
// omitted fields are left unchanged.
type UpdateScheduleRequest struct {
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	IsActive  *bool   `json:"is_active"`
}

// UpdateSchedule handles PATCH /schedules/{scheduleID}.
func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := scheduleIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sched, err := h.service.UpdateSchedule(r.Context(), id, doctorID, schedule.UpdateScheduleParams{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  req.IsActive,
	})
	if err != nil {
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// DeleteSchedule handles DELETE /schedules/{scheduleID}.
func (h *ScheduleHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := scheduleIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSchedule(r.Context(), id, doctorID); err != nil {
		writeScheduleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkApplyRequest is the body for POST /schedules/bulk-apply.
type BulkApplyRequest struct {
	ClinicID        string             `json:"clinic_id"`
	DayRules        []schedule.DayRule `json:"day_rules"`
	ReplaceExisting bool               `json:"replace_existing"`
}

// BulkApply handles POST /schedules/bulk-apply. A conflict without
// replace_existing answers 409 with the conflicting days so the client can
// confirm and retry.
func (h *ScheduleHandler) BulkApply(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	var req BulkApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.service.BulkApplyTemplate(r.Context(), doctorID, req.ClinicID, req.DayRules, req.ReplaceExisting)
	if err != nil {
		h.logger.Error("bulk apply failed", "error", err, "doctor_id", doctorID, "clinic_id", req.ClinicID)
		writeScheduleError(w, err)
		return
	}
	if result.RequiresConfirmation {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ToggleBlockRequest is the body for PATCH /timeslots/{templateID}/block.
type ToggleBlockRequest struct {
	IsBlocked bool `json:"is_blocked"`
}

// ToggleBlock handles PATCH /timeslots/{templateID}/block.
func (h *ScheduleHandler) ToggleBlock(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorFromRequest(w, r)
	if !ok {
		return
	}
	templateID, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid template id"})
		return
	}
	var req ToggleBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	tmpl, err := h.service.ToggleSlotBlock(r.Context(), templateID, doctorID, req.IsBlocked)
	if err != nil {
		writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}
