// Package slots turns weekly recurring schedule templates into concrete,
// dated slot instances correlated against the appointment ledger. Generation
// is a pure function: nothing is persisted, identical inputs produce
// identical, identically-ordered output, and instance ids are derived
// deterministically so regeneration over overlapping ranges is idempotent.
package slots

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/haleview/clinic-scheduler/internal/appointment"
	"github.com/haleview/clinic-scheduler/internal/schedule"
)

// Instance is one computed occurrence of a TimeSlotTemplate on a specific
// calendar date. It is ephemeral and never stored.
type Instance struct {
	ID            string             `json:"id"`
	TemplateID    uuid.UUID          `json:"template_id"`
	ScheduleID    uuid.UUID          `json:"schedule_id"`
	DoctorID      string             `json:"doctor_id"`
	ClinicID      string             `json:"clinic_id"`
	DayOfWeek     schedule.DayOfWeek `json:"day_of_week"`
	StartsAt      time.Time          `json:"starts_at"`
	EndsAt        time.Time          `json:"ends_at"`
	IsBooked      bool               `json:"is_booked"`
	IsBlocked     bool               `json:"is_blocked"`
	AppointmentID *uuid.UUID         `json:"appointment_id,omitempty"`
}

// InstanceID derives the deterministic identity of a template occurrence.
func InstanceID(templateID uuid.UUID, startsAt time.Time) string {
	return fmt.Sprintf("%s-%s", templateID, startsAt.UTC().Format(time.RFC3339))
}

type apptKey struct {
	unix     int64
	clinicID string
}

// buildIndex keys non-canceled appointments by exact start instant, and by
// (instant, clinic) when clinic-scoped matching is requested, since two
// clinics can coincidentally share an instant.
func buildIndex(appointments []*appointment.Appointment, clinicScoped bool) map[apptKey]*appointment.Appointment {
	index := make(map[apptKey]*appointment.Appointment, len(appointments))
	for _, a := range appointments {
		if a.IsCanceled() {
			continue
		}
		key := apptKey{unix: a.StartsAt.Unix()}
		if clinicScoped {
			key.clinicID = a.ClinicID
		}
		index[key] = a
	}
	return index
}

// GenerateRange produces the ordered slot instances for every active
// schedule across the inclusive [startDate, endDate] calendar range.
// Ordering is date ascending, then schedule, then slot start time. Blocked
// templates are still enumerated so callers can render the blocked state.
// A malformed time string aborts the whole generation.
func GenerateRange(
	schedules []*schedule.Schedule,
	appointments []*appointment.Appointment,
	startDate, endDate time.Time,
	clinicScoped bool,
) ([]Instance, error) {
	if endDate.Before(startDate) {
		return nil, fmt.Errorf("%w: end date %s before start date %s",
			schedule.ErrInvalidInput, endDate.Format("2006-01-02"), startDate.Format("2006-01-02"))
	}

	index := buildIndex(appointments, clinicScoped)

	// Seven day-of-week buckets for O(1) lookup per day walked.
	byDay := make(map[schedule.DayOfWeek][]*schedule.Schedule, 7)
	for _, s := range schedules {
		if !s.IsActive {
			continue
		}
		byDay[s.DayOfWeek] = append(byDay[s.DayOfWeek], s)
	}
	for _, bucket := range byDay {
		sortBucket(bucket)
	}

	start := midnight(startDate)
	end := midnight(endDate)

	var out []Instance
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for _, s := range byDay[schedule.DayOfWeekFor(day)] {
			for _, tmpl := range orderedSlots(s.Slots) {
				startsAt, err := schedule.InstantOn(day, tmpl.StartTime)
				if err != nil {
					return nil, fmt.Errorf("slots: template %s: %w", tmpl.ID, err)
				}
				endsAt, err := schedule.InstantOn(day, tmpl.EndTime)
				if err != nil {
					return nil, fmt.Errorf("slots: template %s: %w", tmpl.ID, err)
				}

				key := apptKey{unix: startsAt.Unix()}
				if clinicScoped {
					key.clinicID = s.ClinicID
				}
				matched := index[key]

				inst := Instance{
					ID:         InstanceID(tmpl.ID, startsAt),
					TemplateID: tmpl.ID,
					ScheduleID: s.ID,
					DoctorID:   s.DoctorID,
					ClinicID:   s.ClinicID,
					DayOfWeek:  s.DayOfWeek,
					StartsAt:   startsAt,
					EndsAt:     endsAt,
					IsBooked:   matched != nil,
					IsBlocked:  tmpl.IsBlocked,
				}
				if matched != nil {
					id := matched.ID
					inst.AppointmentID = &id
				}
				out = append(out, inst)
			}
		}
	}
	return out, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// sortBucket orders a day's schedules by start time then id so output is
// stable regardless of input order.
func sortBucket(bucket []*schedule.Schedule) {
	sort.Slice(bucket, func(i, j int) bool {
		if bucket[i].StartTime != bucket[j].StartTime {
			return bucket[i].StartTime < bucket[j].StartTime
		}
		return bucket[i].ID.String() < bucket[j].ID.String()
	})
}

// orderedSlots returns the templates sorted by start time without mutating
// the schedule's own slice.
func orderedSlots(slots []schedule.TimeSlotTemplate) []schedule.TimeSlotTemplate {
	out := make([]schedule.TimeSlotTemplate, len(slots))
	copy(out, slots)
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
