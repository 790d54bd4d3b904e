package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/arca-scheduler/internal/domain/booking"
)

// ManualBooking describes the class being booked so the history entry reads
// well; only EventID reaches the platform.
type ManualBooking struct {
	EventID    string `json:"eventId"`
	ClassName  string `json:"className,omitempty"`
	ClassTime  string `json:"classTime,omitempty"`
	Gym        string `json:"gym,omitempty"`
	Instructor string `json:"instructor,omitempty"`
}

// BookClass is a one-off booking outside any rule. The history entry has no
// rule id and automatic=false.
type BookClass struct {
	Credentials CredentialSource
	Connector   booking.Connector
	History     HistoryStore
	Publisher   AttemptPublisher
	Log         *zap.Logger
	BookTimeout time.Duration
	Now         func() time.Time
}

func (u BookClass) Execute(ctx context.Context, userID string, req ManualBooking) (booking.BookResult, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		return booking.BookResult{}, errors.New("eventId is required")
	}
	creds, err := u.Credentials.Get(ctx, userID)
	if err != nil {
		return booking.BookResult{}, err
	}
	gw, err := u.Connector.Connect(ctx, creds.Username, creds.Password)
	if err != nil {
		return booking.BookResult{}, fmt.Errorf("login: %w", err)
	}

	log := u.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := u.Now
	if now == nil {
		now = time.Now
	}
	c := booking.ClassInstance{
		ID:            req.EventID,
		Name:          req.ClassName,
		StartDateTime: req.ClassTime,
		Location:      booking.ClassLocation{Name: req.Gym},
		Instructor:    req.Instructor,
	}
	return bookAndRecord(ctx, attemptDeps{
		History:     u.History,
		Publisher:   u.Publisher,
		Log:         log.With(zap.String("user_id", userID), zap.String("event_id", req.EventID)),
		BookTimeout: u.BookTimeout,
		Now:         now,
	}, userID, gw, c, "", false)
}
