package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/haleview/clinic-scheduler/internal/http/handlers"
	httpmiddleware "github.com/haleview/clinic-scheduler/internal/http/middleware"
	"github.com/haleview/clinic-scheduler/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ScheduleHandler    *handlers.ScheduleHandler
	SlotsHandler       *handlers.SlotsHandler
	MetricsHandler     http.Handler
	DoctorJWTSecret    string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitRPS > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Doctor endpoints behind JWT auth
	r.Group(func(doctor chi.Router) {
		doctor.Use(httpmiddleware.DoctorJWT(cfg.DoctorJWTSecret))

		if cfg.ScheduleHandler != nil {
			doctor.Route("/schedules", func(r chi.Router) {
				r.Post("/", cfg.ScheduleHandler.CreateSchedule)
				r.Get("/", cfg.ScheduleHandler.ListSchedules)
				r.Post("/bulk-apply", cfg.ScheduleHandler.BulkApply)
				r.Route("/{scheduleID}", func(r chi.Router) {
					r.Get("/", cfg.ScheduleHandler.GetSchedule)
					r.Patch("/", cfg.ScheduleHandler.UpdateSchedule)
					r.Delete("/", cfg.ScheduleHandler.DeleteSchedule)
				})
			})
			doctor.Patch("/timeslots/{templateID}/block", cfg.ScheduleHandler.ToggleBlock)
		}
		if cfg.SlotsHandler != nil {
			doctor.Get("/doctors/{doctorID}/slots", cfg.SlotsHandler.GetSlots)
		}
	})

	return r
}
