package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApplyPlan is a fully built week of schedules to materialize atomically.
// ReplaceDays carries the conflict set observed at preflight; the store must
// re-validate it before deleting anything.
type ApplyPlan struct {
	DoctorID    string
	ClinicID    string
	ReplaceDays []DayOfWeek
	Schedules   []*Schedule
}

// Repository defines the interface for schedule template storage
type Repository interface {
	CreateSchedule(ctx context.Context, s *Schedule) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ListSchedules(ctx context.Context, doctorID, clinicID string) ([]*Schedule, error)
	UpdateSchedule(ctx context.Context, s *Schedule) error
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
	CountBookedSlots(ctx context.Context, scheduleID uuid.UUID) (int, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*TimeSlotTemplate, *Schedule, error)
	SetTemplateBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*TimeSlotTemplate, error)
	ExistingDays(ctx context.Context, doctorID, clinicID string, days []DayOfWeek) ([]DayOfWeek, error)
	ApplyWeek(ctx context.Context, plan *ApplyPlan) ([]uuid.UUID, error)
}

// InMemoryRepository is an in-memory implementation of Repository used by
// tests and local development.
type InMemoryRepository struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*Schedule
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		schedules: make(map[uuid.UUID]*Schedule),
	}
}

func cloneSchedule(s *Schedule) *Schedule {
	out := *s
	out.Slots = make([]TimeSlotTemplate, len(s.Slots))
	copy(out.Slots, s.Slots)
	return &out
}

func sortSchedules(list []*Schedule) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].DayOfWeek != list[j].DayOfWeek {
			return list[i].DayOfWeek.Order() < list[j].DayOfWeek.Order()
		}
		if list[i].StartTime != list[j].StartTime {
			return list[i].StartTime < list[j].StartTime
		}
		return list[i].ID.String() < list[j].ID.String()
	})
}

func (r *InMemoryRepository) findDay(doctorID, clinicID string, day DayOfWeek) *Schedule {
	for _, s := range r.schedules {
		if s.DoctorID == doctorID && s.ClinicID == clinicID && s.DayOfWeek == day {
			return s
		}
	}
	return nil
}

// CreateSchedule stores a schedule and its slot templates.
func (r *InMemoryRepository) CreateSchedule(_ context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findDay(s.DoctorID, s.ClinicID, s.DayOfWeek) != nil {
		return ErrDuplicateDay
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	for i := range s.Slots {
		if s.Slots[i].ID == uuid.Nil {
			s.Slots[i].ID = uuid.New()
		}
		s.Slots[i].ScheduleID = s.ID
	}
	r.schedules[s.ID] = cloneSchedule(s)
	return nil
}

// GetSchedule retrieves a schedule with its slot templates.
func (r *InMemoryRepository) GetSchedule(_ context.Context, id uuid.UUID) (*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return cloneSchedule(s), nil
}

// ListSchedules returns all schedules for a doctor, optionally clinic-scoped,
// ordered by day of week then start time.
func (r *InMemoryRepository) ListSchedules(_ context.Context, doctorID, clinicID string) ([]*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Schedule
	for _, s := range r.schedules {
		if s.DoctorID != doctorID {
			continue
		}
		if clinicID != "" && s.ClinicID != clinicID {
			continue
		}
		out = append(out, cloneSchedule(s))
	}
	sortSchedules(out)
	return out, nil
}

// UpdateSchedule persists start/end/isActive changes.
func (r *InMemoryRepository) UpdateSchedule(_ context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.schedules[s.ID]
	if !ok {
		return ErrScheduleNotFound
	}
	existing.StartTime = s.StartTime
	existing.EndTime = s.EndTime
	existing.IsActive = s.IsActive
	return nil
}

// DeleteSchedule removes the slot templates, then the schedule row.
func (r *InMemoryRepository) DeleteSchedule(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.schedules[id]
	if !ok {
		return ErrScheduleNotFound
	}
	s.Slots = nil
	delete(r.schedules, id)
	return nil
}

// CountBookedSlots counts child templates whose legacy booked flag is set.
func (r *InMemoryRepository) CountBookedSlots(_ context.Context, scheduleID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[scheduleID]
	if !ok {
		return 0, ErrScheduleNotFound
	}
	count := 0
	for _, slot := range s.Slots {
		if slot.IsBooked {
			count++
		}
	}
	return count, nil
}

// GetTemplate returns a slot template together with its owning schedule.
func (r *InMemoryRepository) GetTemplate(_ context.Context, id uuid.UUID) (*TimeSlotTemplate, *Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.schedules {
		for _, slot := range s.Slots {
			if slot.ID == id {
				t := slot
				return &t, cloneSchedule(s), nil
			}
		}
	}
	return nil, nil, ErrTemplateNotFound
}

// SetTemplateBlocked persists the blocked flag on one template.
func (r *InMemoryRepository) SetTemplateBlocked(_ context.Context, id uuid.UUID, blocked bool) (*TimeSlotTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.schedules {
		for i := range s.Slots {
			if s.Slots[i].ID == id {
				s.Slots[i].IsBlocked = blocked
				t := s.Slots[i]
				return &t, nil
			}
		}
	}
	return nil, ErrTemplateNotFound
}

// ExistingDays reports which of the requested days already have a schedule
// for (doctor, clinic), in SUN..SAT order.
func (r *InMemoryRepository) ExistingDays(_ context.Context, doctorID, clinicID string, days []DayOfWeek) ([]DayOfWeek, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.existingDaysLocked(doctorID, clinicID, days), nil
}

func (r *InMemoryRepository) existingDaysLocked(doctorID, clinicID string, days []DayOfWeek) []DayOfWeek {
	var out []DayOfWeek
	for _, day := range days {
		if r.findDay(doctorID, clinicID, day) != nil {
			out = append(out, day)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out
}

// ApplyWeek atomically replaces the plan's conflict days and inserts the new
// schedules. The conflict set is re-validated first; if it changed since
// preflight the whole operation is rejected.
func (r *InMemoryRepository) ApplyWeek(_ context.Context, plan *ApplyPlan) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	requested := make([]DayOfWeek, 0, len(plan.Schedules))
	for _, s := range plan.Schedules {
		requested = append(requested, s.DayOfWeek)
	}
	current := r.existingDaysLocked(plan.DoctorID, plan.ClinicID, requested)
	if !sameDaySet(current, plan.ReplaceDays) {
		return nil, ErrBulkConflictChanged
	}

	for _, day := range plan.ReplaceDays {
		if s := r.findDay(plan.DoctorID, plan.ClinicID, day); s != nil {
			s.Slots = nil
			delete(r.schedules, s.ID)
		}
	}

	ids := make([]uuid.UUID, 0, len(plan.Schedules))
	for _, s := range plan.Schedules {
		stored := cloneSchedule(s)
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
		for i := range stored.Slots {
			if stored.Slots[i].ID == uuid.Nil {
				stored.Slots[i].ID = uuid.New()
			}
			stored.Slots[i].ScheduleID = stored.ID
		}
		r.schedules[stored.ID] = stored
		ids = append(ids, stored.ID)
	}
	return ids, nil
}

func sameDaySet(a, b []DayOfWeek) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[DayOfWeek]struct{}, len(a))
	for _, d := range a {
		seen[d] = struct{}{}
	}
	for _, d := range b {
		if _, ok := seen[d]; !ok {
			return false
		}
	}
	return true
}

// MarkSlotBooked flips the legacy booked flag; the direct-booking workflow
// owns this in production, tests use it to seed guard states.
func (r *InMemoryRepository) MarkSlotBooked(_ context.Context, id uuid.UUID, booked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.schedules {
		for i := range s.Slots {
			if s.Slots[i].ID == id {
				s.Slots[i].IsBooked = booked
				return nil
			}
		}
	}
	return ErrTemplateNotFound
}

var _ Repository = (*InMemoryRepository)(nil)
