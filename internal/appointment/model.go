package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status of a booking in the external workflow.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// Appointment is a concrete booking at an exact instant. Rows are written by
// the booking workflow; this core only reads them to correlate generated
// slot instances.
type Appointment struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        string    `json:"doctor_id"`
	ClinicID        string    `json:"clinic_id"`
	PatientID       string    `json:"patient_id"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          Status    `json:"status"`
}

// IsCanceled reports whether the appointment no longer occupies its instant.
func (a *Appointment) IsCanceled() bool {
	return a.Status == StatusCanceled
}
