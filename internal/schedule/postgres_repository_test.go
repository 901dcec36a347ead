package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return newPostgresRepositoryWithDB(mock), mock
}

func TestPostgresRepository_CreateSchedule(t *testing.T) {
	repo, mock := newMockRepo(t)

	slots, _ := EnumerateSlots("09:00", "10:00", 30)
	s := &Schedule{
		ID:        uuid.New(),
		DoctorID:  "doc-1",
		ClinicID:  "clinic-1",
		DayOfWeek: Monday,
		StartTime: "09:00",
		EndTime:   "10:00",
		IsActive:  true,
		Slots:     slots,
	}
	for i := range s.Slots {
		s.Slots[i].ID = uuid.New()
		s.Slots[i].ScheduleID = s.ID
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO schedules").
		WithArgs(s.ID, "doc-1", "clinic-1", "MONDAY", "09:00", "10:00", true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))
	eb := mock.ExpectBatch()
	for range s.Slots {
		eb.ExpectExec("INSERT INTO time_slot_templates").
			WithArgs(pgxmock.AnyArg(), s.ID, pgxmock.AnyArg(), pgxmock.AnyArg(), false, false).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	if err := repo.CreateSchedule(context.Background(), s); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_CreateSchedule_DuplicateDay(t *testing.T) {
	repo, mock := newMockRepo(t)

	s := &Schedule{ID: uuid.New(), DoctorID: "doc-1", ClinicID: "clinic-1", DayOfWeek: Monday, StartTime: "09:00", EndTime: "10:00", IsActive: true}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO schedules").
		WithArgs(s.ID, "doc-1", "clinic-1", "MONDAY", "09:00", "10:00", true).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	if err := repo.CreateSchedule(context.Background(), s); !errors.Is(err, ErrDuplicateDay) {
		t.Fatalf("expected ErrDuplicateDay, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_CountBookedSlots(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT count").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountBookedSlots(context.Background(), id)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
}

func TestPostgresRepository_GetTemplate_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT t.id").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	if _, _, err := repo.GetTemplate(context.Background(), id); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestPostgresRepository_SetTemplateBlocked(t *testing.T) {
	repo, mock := newMockRepo(t)
	templateID := uuid.New()
	scheduleID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE time_slot_templates").
		WithArgs(templateID, true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "schedule_id", "start_time", "end_time", "is_blocked", "is_booked", "doctor_id"}).
			AddRow(templateID, scheduleID, "09:00", "09:30", true, false, "doc-1"))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "doc-1", "timeslot.block_toggled", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tmpl, err := repo.SetTemplateBlocked(context.Background(), templateID, true)
	if err != nil {
		t.Fatalf("set blocked failed: %v", err)
	}
	if !tmpl.IsBlocked {
		t.Error("expected blocked flag set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_ApplyWeek(t *testing.T) {
	repo, mock := newMockRepo(t)

	oldID := uuid.New()
	slots, _ := EnumerateSlots("08:00", "09:00", 30)
	sched := &Schedule{
		ID:        uuid.New(),
		DoctorID:  "doc-1",
		ClinicID:  "clinic-1",
		DayOfWeek: Monday,
		StartTime: "08:00",
		EndTime:   "09:00",
		IsActive:  true,
		Slots:     slots,
	}
	for i := range sched.Slots {
		sched.Slots[i].ID = uuid.New()
		sched.Slots[i].ScheduleID = sched.ID
	}
	plan := &ApplyPlan{
		DoctorID:    "doc-1",
		ClinicID:    "clinic-1",
		ReplaceDays: []DayOfWeek{Monday},
		Schedules:   []*Schedule{sched},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, day_of_week").
		WithArgs("doc-1", "clinic-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "day_of_week"}).AddRow(oldID, "MONDAY"))
	mock.ExpectExec("DELETE FROM time_slot_templates").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM schedules").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery("INSERT INTO schedules").
		WithArgs(sched.ID, "doc-1", "clinic-1", "MONDAY", "08:00", "09:00", true).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))
	eb := mock.ExpectBatch()
	for range sched.Slots {
		eb.ExpectExec("INSERT INTO time_slot_templates").
			WithArgs(pgxmock.AnyArg(), sched.ID, pgxmock.AnyArg(), pgxmock.AnyArg(), false, false).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "doc-1", "schedule.week_applied", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ids, err := repo.ApplyWeek(context.Background(), plan)
	if err != nil {
		t.Fatalf("apply week failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != sched.ID {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_ApplyWeek_ConflictSetChanged(t *testing.T) {
	repo, mock := newMockRepo(t)

	sched := &Schedule{
		ID: uuid.New(), DoctorID: "doc-1", ClinicID: "clinic-1",
		DayOfWeek: Monday, StartTime: "08:00", EndTime: "09:00", IsActive: true,
	}
	// Preflight saw no conflicts, but a Monday schedule appeared before the
	// transaction locked the rows.
	plan := &ApplyPlan{DoctorID: "doc-1", ClinicID: "clinic-1", Schedules: []*Schedule{sched}}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, day_of_week").
		WithArgs("doc-1", "clinic-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "day_of_week"}).AddRow(uuid.New(), "MONDAY"))
	mock.ExpectRollback()

	if _, err := repo.ApplyWeek(context.Background(), plan); !errors.Is(err, ErrBulkConflictChanged) {
		t.Fatalf("expected ErrBulkConflictChanged, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_DeleteSchedule_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM time_slot_templates").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM schedules").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	if err := repo.DeleteSchedule(context.Background(), id); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}
