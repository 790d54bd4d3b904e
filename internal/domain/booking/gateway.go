package booking

import (
	"context"
	"time"
)

// Gateway is an authenticated view of one member's account on the platform.
type Gateway interface {
	ListLocations(ctx context.Context) ([]Location, error)
	// ListClasses returns the classes at a location on the calendar date of
	// day.
	ListClasses(ctx context.Context, locationID string, day time.Time) ([]ClassInstance, error)
	ListMyBookings(ctx context.Context) ([]BookingRef, error)
	// BookClass reports refusals through BookResult; the error return is for
	// authentication and transport failures only.
	BookClass(ctx context.Context, eventID string) (BookResult, error)
}

// Connector opens a fresh, logged-in Gateway for one set of credentials.
type Connector interface {
	Connect(ctx context.Context, username, password string) (Gateway, error)
}
