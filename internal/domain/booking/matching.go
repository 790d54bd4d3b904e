package booking

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // reference zone must resolve in minimal containers
)

// DefaultReferenceZone is the platform's home zone. All weekday and
// time-of-day comparisons happen there.
const DefaultReferenceZone = "Europe/Copenhagen"

// ReferenceZone loads DefaultReferenceZone.
func ReferenceZone() *time.Location {
	loc, err := time.LoadLocation(DefaultReferenceZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DataError marks upstream data the matcher cannot interpret. The affected
// class is excluded, never fatal.
type DataError struct {
	EventID string
	Field   string
	Value   string
	Err     error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("class %s: invalid %s %q: %v", e.EventID, e.Field, e.Value, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseStart converts the class start into zone. Offset-aware timestamps keep
// their instant; timestamps without an offset are read as wall time in zone.
func ParseStart(c ClassInstance, zone *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(c.StartDateTime)
	if raw == "" {
		return time.Time{}, &DataError{EventID: c.ID, Field: "start", Value: raw, Err: fmt.Errorf("missing")}
	}
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.In(zone), nil
		}
	}
	var lastErr error
	for _, layout := range localLayouts {
		t, err := time.ParseInLocation(layout, raw, zone)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, &DataError{EventID: c.ID, Field: "start", Value: raw, Err: lastErr}
}

// Match reports whether c satisfies r: class name, weekday and exact HH:MM in
// zone, plus location when the rule names one. Names compare
// case-insensitively. Instructor is not compared.
func Match(c ClassInstance, r Rule, zone *time.Location) (bool, error) {
	start, err := ParseStart(c, zone)
	if err != nil {
		return false, err
	}
	if !equalFold(c.Name, r.ClassName) {
		return false, nil
	}
	if strings.ToLower(start.Weekday().String()) != strings.ToLower(strings.TrimSpace(r.DayOfWeek)) {
		return false, nil
	}
	if start.Format("15:04") != strings.TrimSpace(r.Time) {
		return false, nil
	}
	if strings.TrimSpace(r.Location) != "" && !equalFold(c.Location.Name, r.Location) {
		return false, nil
	}
	return true, nil
}

// Matches is Match with invalid timestamps treated as no match.
func Matches(c ClassInstance, r Rule, zone *time.Location) bool {
	ok, err := Match(c, r, zone)
	return err == nil && ok
}

// ShouldBookGivenWaitlist: a free spot always qualifies; a full class
// qualifies only while the waiting list is no longer than the rule allows.
func ShouldBookGivenWaitlist(c ClassInstance, r Rule) bool {
	if c.SpotsAvailable > 0 {
		return true
	}
	limit := r.MaxWaitingList
	if limit < 0 {
		limit = 0
	}
	return c.WaitingListCount <= limit
}

// DaysUntil is the number of calendar days in zone between now and the class
// start. A class later today is 0 days away, tomorrow is 1.
func DaysUntil(c ClassInstance, now time.Time, zone *time.Location) (int, error) {
	start, err := ParseStart(c, zone)
	if err != nil {
		return 0, err
	}
	return CalendarDays(now.In(zone), start), nil
}

// CalendarDays counts civil days from a to b using their own wall dates, so
// DST transitions never shift the count.
func CalendarDays(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// ValidWeekday reports whether s is a lowercase-able English weekday name.
func ValidWeekday(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == s {
			return true
		}
	}
	return false
}

// ValidClock reports whether s is a 24h "HH:MM" time.
func ValidClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
