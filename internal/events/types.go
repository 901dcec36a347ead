package events

// Event types published to the booking workflow collaborator.
const (
	TypeWeekApplied  = "schedule.week_applied"
	TypeBlockToggled = "timeslot.block_toggled"
)

// WeekAppliedPayload describes a committed bulk template application.
type WeekAppliedPayload struct {
	DoctorID     string   `json:"doctor_id"`
	ClinicID     string   `json:"clinic_id"`
	ScheduleIDs  []string `json:"schedule_ids"`
	ReplacedDays []string `json:"replaced_days,omitempty"`
}

// BlockToggledPayload describes a template block flag change.
type BlockToggledPayload struct {
	DoctorID   string `json:"doctor_id"`
	TemplateID string `json:"template_id"`
	IsBlocked  bool   `json:"is_blocked"`
}
