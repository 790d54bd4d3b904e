package arca

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/example/arca-scheduler/internal/domain/booking"
)

// quotaMessage is what the platform answers when the member's class quota
// is used up.
const quotaMessage = "Hov! Du har ikke flere holdbookinger tilbage."

var _ booking.Gateway = (*Client)(nil)

func (c *Client) ListLocations(ctx context.Context) ([]booking.Location, error) {
	const endpoint = "/react/gyms"
	raw, err := c.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	out, err := normalizeLocations(raw)
	if err != nil {
		return nil, decodeErr(endpoint, err)
	}
	return out, nil
}

// ListClasses asks for the calendar date of day as seen in day's location.
func (c *Client) ListClasses(ctx context.Context, locationID string, day time.Time) ([]booking.ClassInstance, error) {
	q := url.Values{"center_id": {locationID}, "date": {day.Format("2006-01-02")}}
	endpoint := "/react/events?" + q.Encode()
	raw, err := c.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	out, err := normalizeClasses(raw)
	if err != nil {
		return nil, decodeErr(endpoint, err)
	}
	return out, nil
}

func (c *Client) ListMyBookings(ctx context.Context) ([]booking.BookingRef, error) {
	const endpoint = "/react/participations/bookings"
	raw, err := c.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	out, err := normalizeBookings(raw)
	if err != nil {
		return nil, decodeErr(endpoint, err)
	}
	return out, nil
}

func (c *Client) BookClass(ctx context.Context, eventID string) (booking.BookResult, error) {
	endpoint := "/react/events/" + url.PathEscape(eventID) + "/book"
	raw, err := c.Request(ctx, http.MethodPost, endpoint, struct{}{})
	if err == nil {
		c.log.Info("class booked", zap.String("event_id", eventID))
		return booking.BookResult{Success: true, Data: raw}, nil
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return booking.BookResult{}, err
	}
	if ue.Status >= 200 && ue.Status <= 299 {
		// accepted, the body just was not JSON
		c.log.Info("class booked", zap.String("event_id", eventID), zap.String("note", ue.Message))
		return booking.BookResult{Success: true}, nil
	}
	c.log.Info("booking refused", zap.String("event_id", eventID), zap.Int("status", ue.Status), zap.String("reason", ue.Message))
	if ue.Message == quotaMessage {
		return booking.BookResult{
			Code:    booking.CodeNoBookingsLeft,
			Error:   "No more bookings available",
			Message: ue.Message,
		}, nil
	}
	return booking.BookResult{Error: ue.Message, Data: ue.Body}, nil
}

// Connector logs a fresh Client in for every Connect call.
type Connector struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

var _ booking.Connector = Connector{}

func (k Connector) Connect(ctx context.Context, username, password string) (booking.Gateway, error) {
	c, err := k.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Login is Connect with the concrete client type.
func (k Connector) Login(ctx context.Context, username, password string) (*Client, error) {
	c := New(k.options()...)
	if err := c.Login(ctx, username, password); err != nil {
		return nil, err
	}
	return c, nil
}

func (k Connector) options() []Option {
	var opts []Option
	if k.BaseURL != "" {
		opts = append(opts, WithBaseURL(k.BaseURL))
	}
	switch {
	case k.HTTPClient != nil:
		opts = append(opts, WithHTTPClient(k.HTTPClient))
	case k.Timeout > 0:
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: k.Timeout}))
	}
	if k.Logger != nil {
		opts = append(opts, WithLogger(k.Logger))
	}
	return opts
}
