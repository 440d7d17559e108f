package model

import (
	"fmt"
	"time"
)

// ClockLayout is the HH:MM format used for rule bounds and slots.
const ClockLayout = "15:04"

// SlotLength is the fixed scheduling unit.
const SlotLength = 30 * time.Minute

// AvailabilityRule is a doctor's recurring working window on one weekday.
type AvailabilityRule struct {
	ID        int64        `db:"id" json:"id"`
	DoctorID  int64        `db:"doctor_id" json:"doctorId"`
	DayOfWeek time.Weekday `db:"day_of_week" json:"dayOfWeek"`
	StartTime string       `db:"start_time" json:"startTime"`
	EndTime   string       `db:"end_time" json:"endTime"`
	Active    bool         `db:"active" json:"active"`
}

// ClockOffset parses an HH:MM value into the offset from midnight.
func ClockOffset(v string) (time.Duration, error) {
	t, err := time.Parse(ClockLayout, v)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", v, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Bounds returns the rule's start and end as offsets from midnight.
func (r *AvailabilityRule) Bounds() (time.Duration, time.Duration, error) {
	start, err := ClockOffset(r.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err := ClockOffset(r.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Slots returns the 30-minute slot starts of the rule on the given day,
// from the start time up to the exclusive end.
func (r *AvailabilityRule) Slots(day time.Time) ([]time.Time, error) {
	start, end, err := r.Bounds()
	if err != nil {
		return nil, err
	}
	var slots []time.Time
	for off := start; off < end; off += SlotLength {
		// Wall-clock construction keeps slots on the rule's grid across DST changes.
		slots = append(slots, time.Date(day.Year(), day.Month(), day.Day(),
			int(off/time.Hour), int(off%time.Hour/time.Minute), 0, 0, day.Location()))
	}
	return slots, nil
}

// DayBounds returns the first and last instant of t's calendar day in loc.
// Days are 23 or 25 hours long on DST changes.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc).Add(-time.Millisecond)
	return start, end
}

type AvailabilityRuleInput struct {
	DayOfWeek *int   `json:"dayOfWeek" binding:"required,min=0,max=6"`
	StartTime string `json:"startTime" binding:"required,clock"`
	EndTime   string `json:"endTime" binding:"required,clock"`
	Active    *bool  `json:"active"`
}

type ReplaceAvailabilityRequest struct {
	Rules []AvailabilityRuleInput `json:"rules" binding:"required,dive"`
}
