package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/haleview/clinic-scheduler/internal/appointment"
	"github.com/haleview/clinic-scheduler/internal/identity"
	"github.com/haleview/clinic-scheduler/internal/observability/metrics"
	"github.com/haleview/clinic-scheduler/internal/schedule"
	"github.com/haleview/clinic-scheduler/internal/slots"
	"github.com/haleview/clinic-scheduler/pkg/logging"
)

const dateLayout = "2006-01-02"

// SlotsHandler computes dated slot instances on demand: schedules plus the
// appointment ledger in, generated instances out. Nothing is persisted.
type SlotsHandler struct {
	schedules    schedule.Repository
	appointments appointment.Repository
	metrics      *metrics.SchedulingMetrics
	logger       *logging.Logger
}

// NewSlotsHandler creates a new slots handler.
func NewSlotsHandler(schedules schedule.Repository, appointments appointment.Repository, m *metrics.SchedulingMetrics, logger *logging.Logger) *SlotsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotsHandler{schedules: schedules, appointments: appointments, metrics: m, logger: logger}
}

// ListSlotsResponse is the response for the slot range view.
type ListSlotsResponse struct {
	Instances []slots.Instance `json:"instances"`
	Count     int              `json:"count"`
}

// GetSlots handles GET /doctors/{doctorID}/slots?clinic_id=&start=&end=.
// Passing clinic_id scopes both the schedule set and the booking match.
func (h *SlotsHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	authDoctor, ok := identity.DoctorIDFromContext(r.Context())
	if !ok || authDoctor == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing doctor context"})
		return
	}
	doctorID := chi.URLParam(r, "doctorID")
	if doctorID != authDoctor {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "cannot view another doctor's slots"})
		return
	}

	query := r.URL.Query()
	startDate, err := time.Parse(dateLayout, query.Get("start"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "start must be YYYY-MM-DD"})
		return
	}
	endDate, err := time.Parse(dateLayout, query.Get("end"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "end must be YYYY-MM-DD"})
		return
	}
	clinicID := query.Get("clinic_id")

	schedules, err := h.schedules.ListSchedules(r.Context(), doctorID, clinicID)
	if err != nil {
		h.logger.Error("failed to list schedules", "error", err, "doctor_id", doctorID)
		writeScheduleError(w, err)
		return
	}

	// Ledger rows through the end of the last day.
	ledgerEnd := endDate.AddDate(0, 0, 1).Add(-time.Second)
	appointments, err := h.appointments.ListForDoctorRange(r.Context(), doctorID, startDate, ledgerEnd)
	if err != nil {
		h.logger.Error("failed to read appointment ledger", "error", err, "doctor_id", doctorID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	started := time.Now()
	instances, err := slots.GenerateRange(schedules, appointments, startDate, endDate, clinicID != "")
	if err != nil {
		writeScheduleError(w, err)
		return
	}
	h.metrics.ObserveGeneration(time.Since(started).Seconds(), len(instances))

	writeJSON(w, http.StatusOK, ListSlotsResponse{Instances: instances, Count: len(instances)})
}
