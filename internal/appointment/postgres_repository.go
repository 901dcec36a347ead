package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QueryDB is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it.
type QueryDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository reads the appointment ledger from the relational
// database.
type PostgresRepository struct {
	db QueryDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db QueryDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListForDoctorRange fetches appointments whose start instant falls inside
// [from, to], every status included; correlation filtering happens in the
// generator.
func (r *PostgresRepository) ListForDoctorRange(ctx context.Context, doctorID string, from, to time.Time) ([]*Appointment, error) {
	query := `
		SELECT id, doctor_id, clinic_id, patient_id, starts_at, duration_minutes, status
		FROM appointments
		WHERE doctor_id = $1 AND starts_at >= $2 AND starts_at <= $3
		ORDER BY starts_at
	`
	rows, err := r.db.Query(ctx, query, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointment: select range failed: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(
			&a.ID,
			&a.DoctorID,
			&a.ClinicID,
			&a.PatientID,
			&a.StartsAt,
			&a.DurationMinutes,
			&a.Status,
		); err != nil {
			return nil, fmt.Errorf("appointment: scan failed: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

var _ Repository = (*PostgresRepository)(nil)
