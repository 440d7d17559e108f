package slot

import (
	"strings"
	"time"
)

// Band is a named part of the day used to narrow slot results.
type Band string

const (
	BandAny       Band = ""
	BandMorning   Band = "morning"
	BandAfternoon Band = "afternoon"
	BandEvening   Band = "evening"
)

// ParseBand is case-insensitive; anything unrecognised means BandAny.
func ParseBand(s string) Band {
	switch b := Band(strings.ToLower(strings.TrimSpace(s))); b {
	case BandMorning, BandAfternoon, BandEvening:
		return b
	}
	return BandAny
}

// Contains reports whether the time of day of t falls in the band.
func (b Band) Contains(t time.Time) bool {
	h := t.Hour()
	switch b {
	case BandMorning:
		return h < 12
	case BandAfternoon:
		return h >= 12 && h < 17
	case BandEvening:
		return h >= 17
	}
	return true
}
