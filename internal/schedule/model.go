package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DayOfWeek is the recurring weekday a schedule applies to.
type DayOfWeek string

const (
	Sunday    DayOfWeek = "SUNDAY"
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
)

var weekdayNames = map[time.Weekday]DayOfWeek{
	time.Sunday:    Sunday,
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
}

var dayOrder = map[DayOfWeek]int{
	Sunday: 0, Monday: 1, Tuesday: 2, Wednesday: 3,
	Thursday: 4, Friday: 5, Saturday: 6,
}

// ParseDayOfWeek validates a day label.
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	day := DayOfWeek(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := dayOrder[day]; !ok {
		return "", fmt.Errorf("%w: day of week %q", ErrInvalidInput, s)
	}
	return day, nil
}

// DayOfWeekFor maps a calendar date to its day label.
func DayOfWeekFor(t time.Time) DayOfWeek {
	return weekdayNames[t.Weekday()]
}

// Order returns the SUN..SAT ordinal used for stable sorting of day sets.
func (d DayOfWeek) Order() int {
	return dayOrder[d]
}

// Schedule is a weekly recurring availability template for one doctor at one
// clinic on one day of week. Times are wall-clock "HH:MM" strings; the
// uniqueness of (doctor, clinic, day) is enforced by the store.
type Schedule struct {
	ID        uuid.UUID          `json:"id"`
	DoctorID  string             `json:"doctor_id"`
	ClinicID  string             `json:"clinic_id"`
	DayOfWeek DayOfWeek          `json:"day_of_week"`
	StartTime string             `json:"start_time"`
	EndTime   string             `json:"end_time"`
	IsActive  bool               `json:"is_active"`
	Slots     []TimeSlotTemplate `json:"slots,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// TimeSlotTemplate is one recurring weekly sub-interval of a Schedule.
// IsBooked is the legacy direct-booking flag: it guards toggling and
// deletion but is never consulted by date-range generation.
type TimeSlotTemplate struct {
	ID         uuid.UUID `json:"id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	IsBlocked  bool      `json:"is_blocked"`
	IsBooked   bool      `json:"is_booked"`
}

// DayRule is one requested day in a bulk template application.
type DayRule struct {
	DayOfWeek    DayOfWeek `json:"day_of_week"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	SlotDuration int       `json:"slot_duration_minutes"`
}

// MinutesOfDay parses a 24-hour "HH:MM" string into minutes since midnight.
func MinutesOfDay(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidInput, s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidInput, s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidInput, s)
	}
	return hh*60 + mm, nil
}

// FormatMinutes renders minutes since midnight back into "HH:MM".
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ValidateWindow checks a start/end pair parses and is ordered.
func ValidateWindow(start, end string) error {
	s, err := MinutesOfDay(start)
	if err != nil {
		return err
	}
	e, err := MinutesOfDay(end)
	if err != nil {
		return err
	}
	if e <= s {
		return fmt.Errorf("%w: end %q must be after start %q", ErrInvalidInput, end, start)
	}
	return nil
}

// EnumerateSlots walks start to end in duration increments. A slot is only
// emitted when it fits entirely inside the window; a trailing partial
// interval is dropped, not rounded.
func EnumerateSlots(start, end string, durationMinutes int) ([]TimeSlotTemplate, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot duration %d", ErrInvalidInput, durationMinutes)
	}
	if err := ValidateWindow(start, end); err != nil {
		return nil, err
	}
	startMin, _ := MinutesOfDay(start)
	endMin, _ := MinutesOfDay(end)

	var slots []TimeSlotTemplate
	for m := startMin; m+durationMinutes <= endMin; m += durationMinutes {
		slots = append(slots, TimeSlotTemplate{
			StartTime: FormatMinutes(m),
			EndTime:   FormatMinutes(m + durationMinutes),
		})
	}
	return slots, nil
}

// InstantOn combines a calendar date with a time-of-day string.
func InstantOn(date time.Time, timeOfDay string) (time.Time, error) {
	m, err := MinutesOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, m/60, m%60, 0, 0, date.Location()), nil
}
