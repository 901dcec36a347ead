package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed times, day labels or durations
	ErrInvalidInput = errors.New("invalid input")

	// ErrScheduleNotFound is returned when a schedule does not exist
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrTemplateNotFound is returned when a time slot template does not exist
	ErrTemplateNotFound = errors.New("time slot template not found")

	// ErrForbidden is returned when the requesting doctor does not own the schedule
	ErrForbidden = errors.New("schedule does not belong to the requesting doctor")

	// ErrTemplateBooked is returned when toggling a slot whose legacy booked flag is set
	ErrTemplateBooked = errors.New("time slot template is booked")

	// ErrDuplicateDay is returned when a schedule already exists for (doctor, clinic, day)
	ErrDuplicateDay = errors.New("schedule already exists for this day")

	// ErrBulkConflictChanged is returned when the conflict set moved between
	// preflight and commit; the whole bulk apply should be retried
	ErrBulkConflictChanged = errors.New("conflicting schedules changed, retry bulk apply")
)

// BookedSlotsError rejects a schedule deletion while booked templates remain.
type BookedSlotsError struct {
	Count int
}

func (e *BookedSlotsError) Error() string {
	return fmt.Sprintf("schedule has %d booked slots", e.Count)
}
