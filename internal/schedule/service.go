package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/haleview/clinic-scheduler/internal/observability/metrics"
	"github.com/haleview/clinic-scheduler/pkg/logging"
)

var scheduleTracer = otel.Tracer("clinicsched.internal.schedule")

// Config tunes the service; zero values fall back to defaults.
type Config struct {
	DefaultSlotMinutes int
	BulkReplaceTimeout time.Duration
	BulkCreateTimeout  time.Duration
}

// Service owns schedule template mutations: CRUD, block toggling, guarded
// deletion and the two-phase bulk template applier.
type Service struct {
	repo    Repository
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger

	defaultSlotMinutes int
	replaceTimeout     time.Duration
	createTimeout      time.Duration
}

// NewService constructs a schedule service.
func NewService(repo Repository, cfg Config, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("schedule: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DefaultSlotMinutes <= 0 {
		cfg.DefaultSlotMinutes = 30
	}
	if cfg.BulkReplaceTimeout <= 0 {
		cfg.BulkReplaceTimeout = 5 * time.Second
	}
	if cfg.BulkCreateTimeout <= 0 {
		cfg.BulkCreateTimeout = 15 * time.Second
	}
	return &Service{
		repo:               repo,
		metrics:            m,
		logger:             logger,
		defaultSlotMinutes: cfg.DefaultSlotMinutes,
		replaceTimeout:     cfg.BulkReplaceTimeout,
		createTimeout:      cfg.BulkCreateTimeout,
	}
}

// CreateSchedule creates one weekly schedule and enumerates its slot
// templates at the default slot duration.
func (s *Service) CreateSchedule(ctx context.Context, doctorID, clinicID string, day DayOfWeek, start, end string) (*Schedule, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicsched.doctor_id", doctorID),
		attribute.String("clinicsched.clinic_id", clinicID),
	)

	if doctorID == "" || clinicID == "" {
		return nil, fmt.Errorf("%w: doctor and clinic are required", ErrInvalidInput)
	}
	if _, err := ParseDayOfWeek(string(day)); err != nil {
		return nil, err
	}
	slots, err := EnumerateSlots(start, end, s.defaultSlotMinutes)
	if err != nil {
		return nil, err
	}

	sched := &Schedule{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		ClinicID:  clinicID,
		DayOfWeek: day,
		StartTime: start,
		EndTime:   end,
		IsActive:  true,
		Slots:     slots,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateSchedule(ctx, sched); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("schedule created",
		"schedule_id", sched.ID, "doctor_id", doctorID, "clinic_id", clinicID, "day", sched.DayOfWeek)
	return sched, nil
}

// UpdateScheduleParams carries the mutable schedule fields; nil leaves a
// field unchanged.
type UpdateScheduleParams struct {
	StartTime *string
	EndTime   *string
	IsActive  *bool
}

// UpdateSchedule mutates start/end/isActive on a schedule the doctor owns.
// Existing slot templates are left untouched.
func (s *Service) UpdateSchedule(ctx context.Context, id uuid.UUID, doctorID string, params UpdateScheduleParams) (*Schedule, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.update")
	defer span.End()
	span.SetAttributes(attribute.String("clinicsched.schedule_id", id.String()))

	sched, err := s.ownedSchedule(ctx, id, doctorID)
	if err != nil {
		return nil, err
	}

	if params.StartTime != nil {
		sched.StartTime = *params.StartTime
	}
	if params.EndTime != nil {
		sched.EndTime = *params.EndTime
	}
	if err := ValidateWindow(sched.StartTime, sched.EndTime); err != nil {
		return nil, err
	}
	if params.IsActive != nil {
		sched.IsActive = *params.IsActive
	}

	if err := s.repo.UpdateSchedule(ctx, sched); err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.logger.Info("schedule updated", "schedule_id", id, "doctor_id", doctorID)
	return sched, nil
}

// GetSchedule fetches a schedule the doctor owns, templates included.
func (s *Service) GetSchedule(ctx context.Context, id uuid.UUID, doctorID string) (*Schedule, error) {
	return s.ownedSchedule(ctx, id, doctorID)
}

// ListSchedules returns the doctor's schedules, optionally clinic-scoped.
func (s *Service) ListSchedules(ctx context.Context, doctorID, clinicID string) ([]*Schedule, error) {
	if doctorID == "" {
		return nil, fmt.Errorf("%w: doctor is required", ErrInvalidInput)
	}
	return s.repo.ListSchedules(ctx, doctorID, clinicID)
}

// DeleteSchedule removes a schedule and its templates. Deletion is rejected,
// reporting the booked count, while any child template carries the legacy
// booked flag.
func (s *Service) DeleteSchedule(ctx context.Context, id uuid.UUID, doctorID string) error {
	ctx, span := scheduleTracer.Start(ctx, "schedule.delete")
	defer span.End()
	span.SetAttributes(attribute.String("clinicsched.schedule_id", id.String()))

	if _, err := s.ownedSchedule(ctx, id, doctorID); err != nil {
		return err
	}
	booked, err := s.repo.CountBookedSlots(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if booked > 0 {
		return &BookedSlotsError{Count: booked}
	}
	if err := s.repo.DeleteSchedule(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("schedule deleted", "schedule_id", id, "doctor_id", doctorID)
	return nil
}

// ToggleSlotBlock flips a template's blocked flag. The template must belong
// to a schedule the doctor owns and its legacy booked flag must be clear;
// otherwise nothing is mutated. Instances already generated for earlier
// callers are not retroactively updated.
func (s *Service) ToggleSlotBlock(ctx context.Context, templateID uuid.UUID, doctorID string, blocked bool) (*TimeSlotTemplate, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.toggle_block")
	defer span.End()
	span.SetAttributes(attribute.String("clinicsched.template_id", templateID.String()))

	tmpl, owner, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		s.metrics.ObserveToggle("not_found")
		return nil, err
	}
	if owner.DoctorID != doctorID {
		s.metrics.ObserveToggle("forbidden")
		return nil, ErrForbidden
	}
	if tmpl.IsBooked {
		s.metrics.ObserveToggle("booked")
		return nil, ErrTemplateBooked
	}

	updated, err := s.repo.SetTemplateBlocked(ctx, templateID, blocked)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveToggle("failed")
		return nil, err
	}
	s.metrics.ObserveToggle("updated")
	s.logger.Info("slot block toggled",
		"template_id", templateID, "doctor_id", doctorID, "is_blocked", blocked)
	return updated, nil
}

// BulkApplyResult is the outcome of a bulk template application: either the
// created schedule ids, or a confirmation request listing conflicting days.
type BulkApplyResult struct {
	CreatedIDs           []uuid.UUID `json:"created_ids,omitempty"`
	RequiresConfirmation bool        `json:"requires_confirmation"`
	ConflictingDays      []DayOfWeek `json:"conflicting_days,omitempty"`
}

// BulkApplyTemplate applies a week's day rules to one (doctor, clinic) pair.
// Phase one computes which requested days already carry a schedule; without
// replaceExisting that set is returned as a confirmation request and nothing
// mutates. Phase two replaces the conflicting days and creates the requested
// schedules with enumerated slot templates in a single all-or-nothing
// transaction.
func (s *Service) BulkApplyTemplate(ctx context.Context, doctorID, clinicID string, rules []DayRule, replaceExisting bool) (*BulkApplyResult, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.bulk_apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicsched.doctor_id", doctorID),
		attribute.String("clinicsched.clinic_id", clinicID),
		attribute.Int("clinicsched.day_rules", len(rules)),
		attribute.Bool("clinicsched.replace_existing", replaceExisting),
	)

	if doctorID == "" || clinicID == "" {
		return nil, fmt.Errorf("%w: doctor and clinic are required", ErrInvalidInput)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: at least one day rule is required", ErrInvalidInput)
	}

	schedules, days, err := s.buildWeek(doctorID, clinicID, rules)
	if err != nil {
		s.metrics.ObserveBulkApply("invalid")
		return nil, err
	}

	// Preflight: which requested days already have a schedule.
	conflicts, err := s.repo.ExistingDays(ctx, doctorID, clinicID, days)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBulkApply("failed")
		return nil, err
	}
	if len(conflicts) > 0 && !replaceExisting {
		s.metrics.ObserveBulkApply("confirmation_required")
		return &BulkApplyResult{
			RequiresConfirmation: true,
			ConflictingDays:      conflicts,
		}, nil
	}

	// Pure replacement of a known bounded set commits fast; creating fresh
	// schedules across many days gets the longer timeout.
	timeout := s.createTimeout
	if replaceExisting && len(conflicts) == len(rules) {
		timeout = s.replaceTimeout
	}
	applyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	plan := &ApplyPlan{
		DoctorID:    doctorID,
		ClinicID:    clinicID,
		ReplaceDays: conflicts,
		Schedules:   schedules,
	}
	ids, err := s.repo.ApplyWeek(applyCtx, plan)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrBulkConflictChanged) {
			s.metrics.ObserveBulkApply("conflict_changed")
		} else {
			s.metrics.ObserveBulkApply("failed")
		}
		return nil, err
	}

	s.metrics.ObserveBulkApply("created")
	s.logger.Info("bulk template applied",
		"doctor_id", doctorID, "clinic_id", clinicID,
		"days", len(rules), "replaced", len(conflicts))
	return &BulkApplyResult{CreatedIDs: ids}, nil
}

// buildWeek validates the day rules and materializes the schedules with
// their enumerated slot templates, ids pre-assigned.
func (s *Service) buildWeek(doctorID, clinicID string, rules []DayRule) ([]*Schedule, []DayOfWeek, error) {
	seen := make(map[DayOfWeek]struct{}, len(rules))
	schedules := make([]*Schedule, 0, len(rules))
	days := make([]DayOfWeek, 0, len(rules))

	for _, rule := range rules {
		day, err := ParseDayOfWeek(string(rule.DayOfWeek))
		if err != nil {
			return nil, nil, err
		}
		if _, dup := seen[day]; dup {
			return nil, nil, fmt.Errorf("%w: day %s requested twice", ErrInvalidInput, day)
		}
		seen[day] = struct{}{}

		duration := rule.SlotDuration
		if duration == 0 {
			duration = s.defaultSlotMinutes
		}
		slots, err := EnumerateSlots(rule.StartTime, rule.EndTime, duration)
		if err != nil {
			return nil, nil, err
		}
		if len(slots) == 0 {
			return nil, nil, fmt.Errorf("%w: window %s-%s is shorter than one %d minute slot",
				ErrInvalidInput, rule.StartTime, rule.EndTime, duration)
		}

		sched := &Schedule{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			ClinicID:  clinicID,
			DayOfWeek: day,
			StartTime: rule.StartTime,
			EndTime:   rule.EndTime,
			IsActive:  true,
			Slots:     slots,
		}
		for i := range sched.Slots {
			sched.Slots[i].ID = uuid.New()
			sched.Slots[i].ScheduleID = sched.ID
		}
		schedules = append(schedules, sched)
		days = append(days, day)
	}

	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].DayOfWeek.Order() < schedules[j].DayOfWeek.Order()
	})
	sort.Slice(days, func(i, j int) bool { return days[i].Order() < days[j].Order() })
	return schedules, days, nil
}

func (s *Service) ownedSchedule(ctx context.Context, id uuid.UUID, doctorID string) (*Schedule, error) {
	sched, err := s.repo.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched.DoctorID != doctorID {
		return nil, ErrForbidden
	}
	return sched, nil
}
