package booking

import (
	"encoding/json"
	"time"
)

// MaxDaysAhead is how far ahead the platform lets members book.
const MaxDaysAhead = 13

type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

type ClassLocation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClassInstance is one scheduled class as read from the upstream catalog.
// StartDateTime is kept as the raw offset-aware string; use ParseStart to
// interpret it.
type ClassInstance struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	StartDateTime    string        `json:"startDateTime"`
	Location         ClassLocation `json:"location"`
	Instructor       string        `json:"instructor"`
	SpotsAvailable   int           `json:"spotsAvailable"`
	WaitingListCount int           `json:"waitingListCount"`
}

type BookingRef struct {
	EventID string `json:"eventId"`
}

type Rule struct {
	ID         string `json:"id"`
	ClassName  string `json:"className"`
	DayOfWeek  string `json:"dayOfWeek"`
	Time       string `json:"time"`
	Instructor string `json:"instructor,omitempty"`
	Location   string `json:"location,omitempty"`
	Enabled    bool   `json:"enabled"`

	// Waiting-list occupancy tolerated when the class is full. Zero means
	// only book when a spot is free.
	MaxWaitingList int `json:"maxWaitingList"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

type AttemptRecord struct {
	ID         string          `json:"id"`
	EventID    string          `json:"eventId"`
	ClassName  string          `json:"className"`
	ClassTime  string          `json:"classTime"`
	Gym        string          `json:"gym"`
	Instructor string          `json:"instructor"`
	RuleID     string          `json:"ruleId,omitempty"`
	BookedAt   time.Time       `json:"bookedAt"`
	Status     AttemptStatus   `json:"status"`
	Error      string          `json:"error,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	Automatic  bool            `json:"automatic"`
}

const unknown = "Unknown"

// NewAttemptRecord fills the class fields of a history record, substituting
// "Unknown" for anything the upstream left out.
func NewAttemptRecord(c ClassInstance, ruleID string, res BookResult, at time.Time, automatic bool) AttemptRecord {
	rec := AttemptRecord{
		EventID:    c.ID,
		ClassName:  orUnknown(c.Name),
		ClassTime:  c.StartDateTime,
		Gym:        orUnknown(c.Location.Name),
		Instructor: orUnknown(c.Instructor),
		RuleID:     ruleID,
		BookedAt:   at.UTC(),
		Automatic:  automatic,
	}
	if res.Success {
		rec.Status = AttemptSuccess
	} else {
		rec.Status = AttemptFailed
		rec.Error = res.Error
		if rec.Error == "" {
			rec.Error = "Unknown error"
		}
	}
	if hasContent(res.Data) {
		rec.Details = res.Data
	}
	return rec
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// hasContent reports whether raw JSON carries anything worth keeping: not
// empty, not null and not an empty object or array.
func hasContent(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", "{}", "[]":
		return false
	}
	return true
}

// BookResultCode classifies refused bookings callers may want to special-case.
type BookResultCode string

const CodeNoBookingsLeft BookResultCode = "no_bookings_left"

// BookResult is the outcome of a booking call that reached the platform.
// A refusal is a normal result, not an error.
type BookResult struct {
	Success bool            `json:"success"`
	Code    BookResultCode  `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}
