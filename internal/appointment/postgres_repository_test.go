package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresRepository_ListForDoctorRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)

	from := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	id := uuid.New()

	rows := pgxmock.NewRows([]string{"id", "doctor_id", "clinic_id", "patient_id", "starts_at", "duration_minutes", "status"}).
		AddRow(id, "doc-1", "clinic-1", "pat-1", from.Add(9*time.Hour), 30, "CONFIRMED")
	mock.ExpectQuery("SELECT id, doctor_id").WithArgs("doc-1", from, to).WillReturnRows(rows)

	got, err := repo.ListForDoctorRange(context.Background(), "doc-1", from, to)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != id || got[0].Status != StatusConfirmed {
		t.Fatalf("unexpected result: %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
