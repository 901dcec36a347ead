package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func seedSchedule(t *testing.T, repo *InMemoryRepository, doctorID, clinicID string, day DayOfWeek) *Schedule {
	t.Helper()
	slots, err := EnumerateSlots("09:00", "11:00", 30)
	if err != nil {
		t.Fatalf("enumerate slots: %v", err)
	}
	s := &Schedule{
		DoctorID:  doctorID,
		ClinicID:  clinicID,
		DayOfWeek: day,
		StartTime: "09:00",
		EndTime:   "11:00",
		IsActive:  true,
		Slots:     slots,
	}
	if err := repo.CreateSchedule(context.Background(), s); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return s
}

func TestInMemoryRepository_CreateRejectsDuplicateDay(t *testing.T) {
	repo := NewInMemoryRepository()
	seedSchedule(t, repo, "doc-1", "clinic-1", Monday)

	dup := &Schedule{DoctorID: "doc-1", ClinicID: "clinic-1", DayOfWeek: Monday, StartTime: "10:00", EndTime: "12:00"}
	if err := repo.CreateSchedule(context.Background(), dup); !errors.Is(err, ErrDuplicateDay) {
		t.Errorf("expected ErrDuplicateDay, got %v", err)
	}

	// Same day at another clinic is fine.
	other := &Schedule{DoctorID: "doc-1", ClinicID: "clinic-2", DayOfWeek: Monday, StartTime: "10:00", EndTime: "12:00"}
	if err := repo.CreateSchedule(context.Background(), other); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInMemoryRepository_ListOrdering(t *testing.T) {
	repo := NewInMemoryRepository()
	seedSchedule(t, repo, "doc-1", "clinic-1", Friday)
	seedSchedule(t, repo, "doc-1", "clinic-1", Monday)
	seedSchedule(t, repo, "doc-1", "clinic-2", Wednesday)
	seedSchedule(t, repo, "doc-2", "clinic-1", Tuesday)

	all, err := repo.ListSchedules(context.Background(), "doc-1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 schedules, got %d", len(all))
	}
	want := []DayOfWeek{Monday, Wednesday, Friday}
	for i, day := range want {
		if all[i].DayOfWeek != day {
			t.Errorf("position %d: expected %s, got %s", i, day, all[i].DayOfWeek)
		}
	}

	scoped, err := repo.ListSchedules(context.Background(), "doc-1", "clinic-2")
	if err != nil {
		t.Fatalf("list scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].DayOfWeek != Wednesday {
		t.Errorf("expected only the clinic-2 Wednesday schedule, got %+v", scoped)
	}
}

func TestInMemoryRepository_GetTemplateAndToggle(t *testing.T) {
	repo := NewInMemoryRepository()
	s := seedSchedule(t, repo, "doc-1", "clinic-1", Monday)
	target := s.Slots[1].ID

	tmpl, owner, err := repo.GetTemplate(context.Background(), target)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if owner.ID != s.ID {
		t.Errorf("expected owner %s, got %s", s.ID, owner.ID)
	}
	if tmpl.IsBlocked {
		t.Error("template should start unblocked")
	}

	updated, err := repo.SetTemplateBlocked(context.Background(), target, true)
	if err != nil {
		t.Fatalf("set blocked: %v", err)
	}
	if !updated.IsBlocked {
		t.Error("expected blocked flag set")
	}

	if _, _, err := repo.GetTemplate(context.Background(), uuid.New()); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestInMemoryRepository_CountBookedSlots(t *testing.T) {
	repo := NewInMemoryRepository()
	s := seedSchedule(t, repo, "doc-1", "clinic-1", Monday)

	count, err := repo.CountBookedSlots(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 booked, got %d", count)
	}

	if err := repo.MarkSlotBooked(context.Background(), s.Slots[0].ID, true); err != nil {
		t.Fatalf("mark booked: %v", err)
	}
	if err := repo.MarkSlotBooked(context.Background(), s.Slots[2].ID, true); err != nil {
		t.Fatalf("mark booked: %v", err)
	}

	count, err = repo.CountBookedSlots(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 booked, got %d", count)
	}
}

func TestInMemoryRepository_ApplyWeekReplacesConflicts(t *testing.T) {
	repo := NewInMemoryRepository()
	old := seedSchedule(t, repo, "doc-1", "clinic-1", Monday)

	plan := &ApplyPlan{
		DoctorID:    "doc-1",
		ClinicID:    "clinic-1",
		ReplaceDays: []DayOfWeek{Monday},
		Schedules: []*Schedule{
			{DoctorID: "doc-1", ClinicID: "clinic-1", DayOfWeek: Monday, StartTime: "08:00", EndTime: "12:00", IsActive: true},
			{DoctorID: "doc-1", ClinicID: "clinic-1", DayOfWeek: Tuesday, StartTime: "08:00", EndTime: "12:00", IsActive: true},
		},
	}
	ids, err := repo.ApplyWeek(context.Background(), plan)
	if err != nil {
		t.Fatalf("apply week: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 created ids, got %d", len(ids))
	}

	if _, err := repo.GetSchedule(context.Background(), old.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("expected replaced schedule to be gone, got %v", err)
	}
	list, _ := repo.ListSchedules(context.Background(), "doc-1", "clinic-1")
	if len(list) != 2 {
		t.Errorf("expected 2 schedules after apply, got %d", len(list))
	}
	if list[0].StartTime != "08:00" {
		t.Errorf("expected replacement window, got %s", list[0].StartTime)
	}
}

func TestInMemoryRepository_ApplyWeekDetectsChangedConflictSet(t *testing.T) {
	repo := NewInMemoryRepository()
	seedSchedule(t, repo, "doc-1", "clinic-1", Monday)

	// Plan built from a preflight that saw no conflicts; Monday appeared since.
	plan := &ApplyPlan{
		DoctorID:    "doc-1",
		ClinicID:    "clinic-1",
		ReplaceDays: nil,
		Schedules: []*Schedule{
			{DoctorID: "doc-1", ClinicID: "clinic-1", DayOfWeek: Monday, StartTime: "08:00", EndTime: "12:00", IsActive: true},
		},
	}
	if _, err := repo.ApplyWeek(context.Background(), plan); !errors.Is(err, ErrBulkConflictChanged) {
		t.Fatalf("expected ErrBulkConflictChanged, got %v", err)
	}

	// The stale apply must not have mutated anything.
	list, _ := repo.ListSchedules(context.Background(), "doc-1", "clinic-1")
	if len(list) != 1 || list[0].StartTime != "09:00" {
		t.Errorf("expected original Monday schedule untouched, got %+v", list)
	}
}

func TestInMemoryRepository_ExistingDays(t *testing.T) {
	repo := NewInMemoryRepository()
	seedSchedule(t, repo, "doc-1", "clinic-1", Friday)
	seedSchedule(t, repo, "doc-1", "clinic-1", Monday)

	days, err := repo.ExistingDays(context.Background(), "doc-1", "clinic-1",
		[]DayOfWeek{Friday, Monday, Wednesday})
	if err != nil {
		t.Fatalf("existing days: %v", err)
	}
	if len(days) != 2 || days[0] != Monday || days[1] != Friday {
		t.Errorf("expected [MONDAY FRIDAY], got %v", days)
	}
}
