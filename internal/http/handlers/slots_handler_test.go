package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/haleview/clinic-scheduler/internal/appointment"
	"github.com/haleview/clinic-scheduler/internal/schedule"
)

func newSlotsTestServer(t *testing.T, doctorID string) (*httptest.Server, *schedule.Service, *appointment.InMemoryRepository) {
	t.Helper()
	schedRepo := schedule.NewInMemoryRepository()
	apptRepo := appointment.NewInMemoryRepository()
	svc := schedule.NewService(schedRepo, schedule.Config{}, nil, nil)
	h := NewSlotsHandler(schedRepo, apptRepo, nil, nil)

	r := chi.NewRouter()
	r.Use(asDoctor(doctorID))
	r.Get("/doctors/{doctorID}/slots", h.GetSlots)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc, apptRepo
}

func TestSlotsHandler_GetSlots(t *testing.T) {
	srv, svc, apptRepo := newSlotsTestServer(t, "doc-1")

	if _, err := svc.CreateSchedule(context.Background(), "doc-1", "clinic-1", schedule.Monday, "09:00", "10:00"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Booked 09:30 on Monday 2026-03-09.
	apptRepo.Add(appointment.Appointment{
		DoctorID: "doc-1",
		ClinicID: "clinic-1",
		StartsAt: time.Date(2026, time.March, 9, 9, 30, 0, 0, time.UTC),
		Status:   appointment.StatusConfirmed,
	})

	resp := doJSON(t, http.MethodGet, srv.URL+"/doctors/doc-1/slots?start=2026-03-08&end=2026-03-14", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body ListSlotsResponse
	decodeBody(t, resp, &body)
	if body.Count != 2 {
		t.Fatalf("expected 2 instances for one Monday, got %d", body.Count)
	}
	if body.Instances[0].IsBooked {
		t.Error("09:00 instance should be free")
	}
	if !body.Instances[1].IsBooked {
		t.Error("09:30 instance should be booked")
	}
}

func TestSlotsHandler_GetSlots_Validation(t *testing.T) {
	srv, _, _ := newSlotsTestServer(t, "doc-1")

	resp := doJSON(t, http.MethodGet, srv.URL+"/doctors/doc-1/slots?start=March-9&end=2026-03-14", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad start date, got %d", resp.StatusCode)
	}

	// Inverted range surfaces the generator's validation error.
	resp = doJSON(t, http.MethodGet, srv.URL+"/doctors/doc-1/slots?start=2026-03-14&end=2026-03-08", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for inverted range, got %d", resp.StatusCode)
	}
}

func TestSlotsHandler_GetSlots_OtherDoctorForbidden(t *testing.T) {
	srv, _, _ := newSlotsTestServer(t, "doc-2")

	resp := doJSON(t, http.MethodGet, srv.URL+"/doctors/doc-1/slots?start=2026-03-08&end=2026-03-14", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}
