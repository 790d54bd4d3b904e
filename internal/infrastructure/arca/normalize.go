package arca

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/example/arca-scheduler/internal/domain/booking"
)

// Every payload the platform returns passes through this file. Field names
// differ between endpoints and app versions, so each canonical field lists
// the keys it may arrive under, in order of preference.
var (
	classIDKeys    = []string{"id", "event_id", "ss_event_id"}
	classNameKeys  = []string{"name", "title", "event_name"}
	classStartKeys = []string{"start_date_time", "startDateTime", "start_time", "startTime", "start"}
	spotsKeys      = []string{"spots_available", "spotsAvailable", "free_space", "available_spots"}
	waitingKeys    = []string{"waiting_list_count", "waitingListCount", "waitlist_count"}
	locationKeys   = []string{"gym", "location", "center"}
	bookingIDKeys  = []string{"ss_event_id", "event_id", "eventId", "id"}
)

type object = map[string]any

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// list returns the array under the first present key, or the payload
// itself when it is a bare array.
func list(v any, keys ...string) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	m, ok := v.(object)
	if !ok {
		return nil
	}
	for _, k := range keys {
		if arr, ok := m[k].([]any); ok {
			return arr
		}
	}
	return nil
}

func pickString(m object, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// pickID renders numeric and string ids alike as decimal strings.
func pickID(m object, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case json.Number:
			if i, err := v.Int64(); err == nil {
				return strconv.FormatInt(i, 10)
			}
			if f, err := v.Float64(); err == nil && f == math.Trunc(f) {
				return strconv.FormatInt(int64(f), 10)
			}
			return v.String()
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// pickInt returns the first non-zero alias; zero falls through to the next.
func pickInt(m object, keys ...string) int {
	for _, k := range keys {
		var n int
		switch v := m[k].(type) {
		case json.Number:
			if i, err := v.Int64(); err == nil {
				n = int(i)
			} else if f, err := v.Float64(); err == nil {
				n = int(f)
			}
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				n = i
			}
		}
		if n != 0 {
			return n
		}
	}
	return 0
}

func normalizeLocations(raw []byte) ([]booking.Location, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	var out []booking.Location
	for _, item := range list(v, "gyms") {
		m, ok := item.(object)
		if !ok {
			continue
		}
		out = append(out, booking.Location{
			ID:   pickID(m, "id"),
			Name: pickString(m, "name", "title"),
			City: pickString(m, "address_city", "city"),
		})
	}
	return out, nil
}

func normalizeClasses(raw []byte) ([]booking.ClassInstance, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	items := list(v, "ss_events", "events")
	out := make([]booking.ClassInstance, 0, len(items))
	for _, item := range items {
		m, ok := item.(object)
		if !ok {
			continue
		}
		out = append(out, normalizeClass(m))
	}
	return out, nil
}

func normalizeClass(m object) booking.ClassInstance {
	return booking.ClassInstance{
		ID:               pickID(m, classIDKeys...),
		Name:             pickString(m, classNameKeys...),
		StartDateTime:    pickString(m, classStartKeys...),
		Location:         classLocation(m),
		Instructor:       instructor(m),
		SpotsAvailable:   pickInt(m, spotsKeys...),
		WaitingListCount: pickInt(m, waitingKeys...),
	}
}

func classLocation(m object) booking.ClassLocation {
	for _, k := range locationKeys {
		switch v := m[k].(type) {
		case object:
			return booking.ClassLocation{ID: pickID(v, "id"), Name: pickString(v, "name", "title")}
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return booking.ClassLocation{ID: pickID(m, "center_id", "gym_id"), Name: s}
			}
		}
	}
	return booking.ClassLocation{
		ID:   pickID(m, "center_id", "gym_id", "location_id"),
		Name: pickString(m, "gym_name", "center_name", "location_name"),
	}
}

func instructor(m object) string {
	switch v := m["instructor"].(type) {
	case string:
		return strings.TrimSpace(v)
	case object:
		return pickString(v, "name", "full_name")
	}
	if arr, ok := m["instructors"].([]any); ok {
		var names []string
		for _, it := range arr {
			switch iv := it.(type) {
			case string:
				names = append(names, strings.TrimSpace(iv))
			case object:
				if n := pickString(iv, "name", "full_name"); n != "" {
					names = append(names, n)
				}
			}
		}
		return strings.Join(names, ", ")
	}
	return pickString(m, "instructor_name", "instructorName")
}

func normalizeBookings(raw []byte) ([]booking.BookingRef, error) {
	v, err := decode(raw)
	if err != nil {
		return nil, err
	}
	var out []booking.BookingRef
	for _, item := range list(v, "ss_participations", "participations", "bookings") {
		m, ok := item.(object)
		if !ok {
			continue
		}
		id := pickID(m, bookingIDKeys...)
		if id == "" {
			continue
		}
		out = append(out, booking.BookingRef{EventID: id})
	}
	return out, nil
}

func decodeErr(endpoint string, err error) error {
	return &UpstreamError{Method: "GET", Endpoint: endpoint, Status: 200, Message: fmt.Sprintf("unexpected payload: %v", err)}
}
