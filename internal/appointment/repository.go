package appointment

import (
	"context"
	"sort"
	"sync"

	"time"

	"github.com/google/uuid"
)

// Repository is the read-only view of the appointment ledger.
type Repository interface {
	ListForDoctorRange(ctx context.Context, doctorID string, from, to time.Time) ([]*Appointment, error)
}

// InMemoryRepository is an in-memory ledger used by tests and local
// development; the booking workflow seeds it through Add.
type InMemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

// Add seeds an appointment row.
func (r *InMemoryRepository) Add(a Appointment) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	stored := a
	r.appointments[a.ID] = &stored
	return a
}

// ListForDoctorRange returns the doctor's appointments with a start instant
// inside [from, to], ordered by start time.
func (r *InMemoryRepository) ListForDoctorRange(_ context.Context, doctorID string, from, to time.Time) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		if a.StartsAt.Before(from) || a.StartsAt.After(to) {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

var _ Repository = (*InMemoryRepository)(nil)
