package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haleview/clinic-scheduler/internal/events"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it for tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores schedules and slot templates in the relational
// database. Mutations that must be atomic run inside one transaction, and
// schedule-change events are enqueued to the outbox within that same
// transaction.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func dayStrings(days []DayOfWeek) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

const insertScheduleSQL = `
	INSERT INTO schedules (id, doctor_id, clinic_id, day_of_week, start_time, end_time, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING created_at
`

const insertTemplateSQL = `
	INSERT INTO time_slot_templates (id, schedule_id, start_time, end_time, is_blocked, is_booked)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// CreateSchedule inserts a schedule and its slot templates atomically.
func (r *PostgresRepository) CreateSchedule(ctx context.Context, s *Schedule) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("schedule: begin failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, insertScheduleSQL,
		s.ID, s.DoctorID, s.ClinicID, string(s.DayOfWeek), s.StartTime, s.EndTime, s.IsActive,
	).Scan(&s.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateDay
		}
		return fmt.Errorf("schedule: insert failed: %w", err)
	}

	if err := insertTemplates(ctx, tx, s.ID, s.Slots); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("schedule: commit failed: %w", err)
	}
	return nil
}

// insertTemplates bulk-inserts a schedule's templates in one batch.
func insertTemplates(ctx context.Context, tx pgx.Tx, scheduleID uuid.UUID, slots []TimeSlotTemplate) error {
	if len(slots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range slots {
		batch.Queue(insertTemplateSQL,
			slots[i].ID, scheduleID, slots[i].StartTime, slots[i].EndTime, slots[i].IsBlocked, slots[i].IsBooked)
	}
	results := tx.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range slots {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("schedule: batch insert templates failed: %w", err)
		}
	}
	return results.Close()
}

const selectScheduleSQL = `
	SELECT id, doctor_id, clinic_id, day_of_week, start_time, end_time, is_active, created_at
	FROM schedules
	WHERE id = $1
`

// GetSchedule fetches a schedule with its slot templates.
func (r *PostgresRepository) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	var s Schedule
	if err := r.db.QueryRow(ctx, selectScheduleSQL, id).Scan(
		&s.ID, &s.DoctorID, &s.ClinicID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.IsActive, &s.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("schedule: select failed: %w", err)
	}

	slots, err := r.loadSlots(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	s.Slots = slots[id]
	return &s, nil
}

// ListSchedules returns the doctor's schedules, optionally clinic-scoped,
// templates included, ordered by day of week then start time.
func (r *PostgresRepository) ListSchedules(ctx context.Context, doctorID, clinicID string) ([]*Schedule, error) {
	query := `
		SELECT id, doctor_id, clinic_id, day_of_week, start_time, end_time, is_active, created_at
		FROM schedules
		WHERE doctor_id = $1 AND ($2 = '' OR clinic_id = $2)
	`
	rows, err := r.db.Query(ctx, query, doctorID, clinicID)
	if err != nil {
		return nil, fmt.Errorf("schedule: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Schedule
	var ids []uuid.UUID
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.DoctorID, &s.ClinicID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("schedule: scan failed: %w", err)
		}
		out = append(out, &s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	slots, err := r.loadSlots(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range out {
		s.Slots = slots[s.ID]
	}
	sortSchedules(out)
	return out, nil
}

func (r *PostgresRepository) loadSlots(ctx context.Context, scheduleIDs []uuid.UUID) (map[uuid.UUID][]TimeSlotTemplate, error) {
	query := `
		SELECT id, schedule_id, start_time, end_time, is_blocked, is_booked
		FROM time_slot_templates
		WHERE schedule_id = ANY($1)
		ORDER BY start_time, id
	`
	rows, err := r.db.Query(ctx, query, scheduleIDs)
	if err != nil {
		return nil, fmt.Errorf("schedule: load templates failed: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]TimeSlotTemplate, len(scheduleIDs))
	for rows.Next() {
		var t TimeSlotTemplate
		if err := rows.Scan(&t.ID, &t.ScheduleID, &t.StartTime, &t.EndTime, &t.IsBlocked, &t.IsBooked); err != nil {
			return nil, fmt.Errorf("schedule: scan template failed: %w", err)
		}
		out[t.ScheduleID] = append(out[t.ScheduleID], t)
	}
	return out, rows.Err()
}

// UpdateSchedule persists start/end/isActive changes.
func (r *PostgresRepository) UpdateSchedule(ctx context.Context, s *Schedule) error {
	query := `
		UPDATE schedules
		SET start_time = $2, end_time = $3, is_active = $4
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, s.ID, s.StartTime, s.EndTime, s.IsActive)
	if err != nil {
		return fmt.Errorf("schedule: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// DeleteSchedule deletes the slot templates, then the schedule row, in one
// transaction.
func (r *PostgresRepository) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("schedule: begin failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM time_slot_templates WHERE schedule_id = $1`, id); err != nil {
		return fmt.Errorf("schedule: delete templates failed: %w", err)
	}
	ct, err := tx.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("schedule: delete failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("schedule: commit failed: %w", err)
	}
	return nil
}

// CountBookedSlots counts child templates whose legacy booked flag is set.
func (r *PostgresRepository) CountBookedSlots(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	var count int
	query := `SELECT count(*) FROM time_slot_templates WHERE schedule_id = $1 AND is_booked`
	if err := r.db.QueryRow(ctx, query, scheduleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("schedule: count booked failed: %w", err)
	}
	return count, nil
}

// GetTemplate returns a slot template together with its owning schedule.
func (r *PostgresRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*TimeSlotTemplate, *Schedule, error) {
	query := `
		SELECT t.id, t.schedule_id, t.start_time, t.end_time, t.is_blocked, t.is_booked,
		       s.id, s.doctor_id, s.clinic_id, s.day_of_week, s.start_time, s.end_time, s.is_active, s.created_at
		FROM time_slot_templates t
		JOIN schedules s ON s.id = t.schedule_id
		WHERE t.id = $1
	`
	var t TimeSlotTemplate
	var s Schedule
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.ScheduleID, &t.StartTime, &t.EndTime, &t.IsBlocked, &t.IsBooked,
		&s.ID, &s.DoctorID, &s.ClinicID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.IsActive, &s.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrTemplateNotFound
		}
		return nil, nil, fmt.Errorf("schedule: select template failed: %w", err)
	}
	return &t, &s, nil
}

// SetTemplateBlocked persists the blocked flag and enqueues the
// block-toggled event in the same transaction.
func (r *PostgresRepository) SetTemplateBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*TimeSlotTemplate, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("schedule: begin failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE time_slot_templates t
		SET is_blocked = $2
		FROM schedules s
		WHERE t.id = $1 AND s.id = t.schedule_id
		RETURNING t.id, t.schedule_id, t.start_time, t.end_time, t.is_blocked, t.is_booked, s.doctor_id
	`
	var t TimeSlotTemplate
	var doctorID string
	if err := tx.QueryRow(ctx, query, id, blocked).Scan(
		&t.ID, &t.ScheduleID, &t.StartTime, &t.EndTime, &t.IsBlocked, &t.IsBooked, &doctorID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("schedule: update template failed: %w", err)
	}

	if _, err := events.InsertTx(ctx, tx, doctorID, events.TypeBlockToggled, events.BlockToggledPayload{
		DoctorID:   doctorID,
		TemplateID: t.ID.String(),
		IsBlocked:  t.IsBlocked,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("schedule: commit failed: %w", err)
	}
	return &t, nil
}

// ExistingDays reports which of the requested days already have a schedule
// for (doctor, clinic), in SUN..SAT order.
func (r *PostgresRepository) ExistingDays(ctx context.Context, doctorID, clinicID string, days []DayOfWeek) ([]DayOfWeek, error) {
	query := `
		SELECT day_of_week FROM schedules
		WHERE doctor_id = $1 AND clinic_id = $2 AND day_of_week = ANY($3)
	`
	rows, err := r.db.Query(ctx, query, doctorID, clinicID, dayStrings(days))
	if err != nil {
		return nil, fmt.Errorf("schedule: existing days failed: %w", err)
	}
	defer rows.Close()

	var out []DayOfWeek
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("schedule: scan day failed: %w", err)
		}
		out = append(out, DayOfWeek(day))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out, nil
}

// ApplyWeek materializes a week plan in one all-or-nothing transaction. The
// conflicting rows are locked and re-checked against the preflight snapshot
// before anything is deleted; a changed set aborts with a retryable
// conflict. The week-applied event commits with the plan.
func (r *PostgresRepository) ApplyWeek(ctx context.Context, plan *ApplyPlan) ([]uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("schedule: begin failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	requested := make([]DayOfWeek, 0, len(plan.Schedules))
	for _, s := range plan.Schedules {
		requested = append(requested, s.DayOfWeek)
	}

	lockQuery := `
		SELECT id, day_of_week FROM schedules
		WHERE doctor_id = $1 AND clinic_id = $2 AND day_of_week = ANY($3)
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, lockQuery, plan.DoctorID, plan.ClinicID, dayStrings(requested))
	if err != nil {
		return nil, fmt.Errorf("schedule: lock conflicts failed: %w", err)
	}
	var lockedIDs []uuid.UUID
	var lockedDays []DayOfWeek
	for rows.Next() {
		var id uuid.UUID
		var day string
		if err := rows.Scan(&id, &day); err != nil {
			rows.Close()
			return nil, fmt.Errorf("schedule: scan conflict failed: %w", err)
		}
		lockedIDs = append(lockedIDs, id)
		lockedDays = append(lockedDays, DayOfWeek(day))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !sameDaySet(lockedDays, plan.ReplaceDays) {
		return nil, ErrBulkConflictChanged
	}

	if len(lockedIDs) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM time_slot_templates WHERE schedule_id = ANY($1)`, lockedIDs); err != nil {
			return nil, fmt.Errorf("schedule: delete replaced templates failed: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM schedules WHERE id = ANY($1)`, lockedIDs); err != nil {
			return nil, fmt.Errorf("schedule: delete replaced schedules failed: %w", err)
		}
	}

	ids := make([]uuid.UUID, 0, len(plan.Schedules))
	batch := &pgx.Batch{}
	templateCount := 0
	for _, s := range plan.Schedules {
		if err := tx.QueryRow(ctx, insertScheduleSQL,
			s.ID, s.DoctorID, s.ClinicID, string(s.DayOfWeek), s.StartTime, s.EndTime, s.IsActive,
		).Scan(&s.CreatedAt); err != nil {
			return nil, fmt.Errorf("schedule: insert week day failed: %w", err)
		}
		ids = append(ids, s.ID)
		for i := range s.Slots {
			batch.Queue(insertTemplateSQL,
				s.Slots[i].ID, s.ID, s.Slots[i].StartTime, s.Slots[i].EndTime, s.Slots[i].IsBlocked, s.Slots[i].IsBooked)
			templateCount++
		}
	}
	if templateCount > 0 {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < templateCount; i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return nil, fmt.Errorf("schedule: batch insert templates failed: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return nil, fmt.Errorf("schedule: close batch failed: %w", err)
		}
	}

	scheduleIDs := make([]string, len(ids))
	for i, id := range ids {
		scheduleIDs[i] = id.String()
	}
	if _, err := events.InsertTx(ctx, tx, plan.DoctorID, events.TypeWeekApplied, events.WeekAppliedPayload{
		DoctorID:     plan.DoctorID,
		ClinicID:     plan.ClinicID,
		ScheduleIDs:  scheduleIDs,
		ReplacedDays: dayStrings(plan.ReplaceDays),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("schedule: commit failed: %w", err)
	}
	return ids, nil
}

var _ Repository = (*PostgresRepository)(nil)
