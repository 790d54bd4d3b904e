package usecases

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/arca-scheduler/internal/domain/booking"
	"github.com/example/arca-scheduler/internal/domain/user"
	"github.com/example/arca-scheduler/internal/internaltypes"
)

type harness struct {
	store *memStore
	conn  *fakeConnector
	pub   *recordingPublisher
	uc    *CheckBookings
	now   time.Time
}

func copenhagen(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(booking.DefaultReferenceZone)
	require.NoError(t, err)
	return loc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	zone := copenhagen(t)
	h := &harness{
		store: newMemStore(),
		conn:  &fakeConnector{gateways: map[string]booking.Gateway{}, errs: map[string]error{}},
		pub:   &recordingPublisher{},
		// a Monday morning, one week before the WOD class
		now: time.Date(2024, 11, 4, 10, 0, 0, 0, zone),
	}
	h.uc = &CheckBookings{
		Users:            h.store,
		Credentials:      plainCreds{store: h.store},
		Rules:            h.store,
		History:          h.store,
		Connector:        h.conn,
		Publisher:        h.pub,
		Log:              zap.NewNop(),
		Zone:             zone,
		MaxDaysAhead:     booking.MaxDaysAhead,
		UserConcurrency:  2,
		FetchConcurrency: 4,
		BookTimeout:      time.Second,
		Now:              func() time.Time { return h.now },
	}
	return h
}

// addUser stores credentials and rules for id and routes its logins to gw.
func (h *harness) addUser(id string, gw booking.Gateway, rules ...booking.Rule) {
	ctx := context.Background()
	_ = h.store.PutCredentials(ctx, user.Credentials{UserID: id, Username: id, Password: "pw"})
	for _, r := range rules {
		_ = h.store.CreateRule(ctx, id, r)
	}
	h.conn.gateways[id] = gw
}

func wodRule() booking.Rule {
	return booking.Rule{ID: "r1", ClassName: "WOD", DayOfWeek: "monday", Time: "18:00", Location: "Kirken", Enabled: true}
}

func wodClass(id string) booking.ClassInstance {
	return booking.ClassInstance{
		ID:            id,
		Name:          "WOD",
		StartDateTime: "2024-11-11T18:00:00+01:00",
		Location:      booking.ClassLocation{ID: "10", Name: "Kirken"},
		Instructor:    "Coach A",
	}
}

func kirken(classes ...booking.ClassInstance) *fakeGateway {
	return &fakeGateway{
		locations: []booking.Location{{ID: "10", Name: "Kirken"}},
		classes:   map[string][]booking.ClassInstance{"10": classes},
	}
}

func TestCheckBookings_BooksMatchingClass(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunResult{Checked: 1, Booked: 1, Failed: 0, Errors: []UserError{}}, res)
	assert.Equal(t, []string{"123"}, gw.bookedIDs())

	recs := h.store.attempts("u1")
	require.Len(t, recs, 1)
	assert.Equal(t, booking.AttemptSuccess, recs[0].Status)
	assert.Equal(t, "r1", recs[0].RuleID)
	assert.True(t, recs[0].Automatic)
	assert.Equal(t, "Kirken", recs[0].Gym)
	assert.NotEmpty(t, recs[0].ID)

	require.Len(t, h.pub.recs, 1)
	assert.Equal(t, "123", h.pub.recs[0].EventID)
}

func TestCheckBookings_FetchesDaysOneThroughThirteen(t *testing.T) {
	h := newHarness(t)
	gw := kirken()
	gw.locations = append(gw.locations, booking.Location{ID: "11", Name: "Boxen"})
	var dates []string
	gw.classesErr = func(loc string, day time.Time) error {
		if loc == "10" {
			gw.mu.Lock()
			dates = append(dates, day.Format("2006-01-02"))
			gw.mu.Unlock()
		}
		return nil
	}
	h.addUser("u1", gw, wodRule())

	_, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 26, gw.classCalls)
	assert.Len(t, dates, 13)
	assert.Contains(t, dates, "2024-11-05")
	assert.Contains(t, dates, "2024-11-17")
	assert.NotContains(t, dates, "2024-11-04")
}

func TestCheckBookings_CountsEveryProcessedUser(t *testing.T) {
	h := newHarness(t)
	h.addUser("u1", kirken(wodClass("123")), wodRule())
	h.addUser("u2", kirken(), wodRule())
	refused := kirken(wodClass("123"))
	refused.bookResult = func(string) (booking.BookResult, error) {
		return booking.BookResult{Error: "Holdet er fuldt"}, nil
	}
	h.addUser("u3", refused, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, res.Booked)
	assert.Equal(t, 1, res.Failed)
}

func TestCheckBookings_NoMatchNoAttempt(t *testing.T) {
	h := newHarness(t)
	late := wodClass("124")
	late.StartDateTime = "2024-11-11T19:00:00+01:00"
	gw := kirken(late)
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Zero(t, res.Booked+res.Failed)
	assert.Empty(t, gw.bookedIDs())
	assert.Empty(t, h.store.attempts("u1"))
}

func TestCheckBookings_WaitingListTooLong(t *testing.T) {
	h := newHarness(t)
	full := wodClass("125")
	full.WaitingListCount = 3
	gw := kirken(full)
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Booked)
	assert.Empty(t, gw.bookedIDs())
}

func TestCheckBookings_Idempotent(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	h.addUser("u1", gw, wodRule())
	ctx := context.Background()

	first, err := h.uc.Execute(ctx)
	require.NoError(t, err)
	second, err := h.uc.Execute(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Booked)
	assert.Equal(t, 0, second.Booked)
	assert.Equal(t, []string{"123"}, gw.bookedIDs())
	assert.Len(t, h.store.attempts("u1"), 1)
}

func TestCheckBookings_SkipsUpstreamBooked(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	gw.bookings = []booking.BookingRef{{EventID: "123"}}
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Booked)
	assert.Empty(t, gw.bookedIDs())
}

func TestCheckBookings_SkipsSuccessfulHistory(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	h.addUser("u1", gw, wodRule())
	require.NoError(t, h.store.AppendAttempt(context.Background(), "u1", booking.AttemptRecord{EventID: "123", Status: booking.AttemptSuccess}))

	_, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gw.bookedIDs())
}

func TestCheckBookings_FailedHistoryDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	h.addUser("u1", gw, wodRule())
	require.NoError(t, h.store.AppendAttempt(context.Background(), "u1", booking.AttemptRecord{EventID: "123", Status: booking.AttemptFailed}))

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booked)
}

func TestCheckBookings_RefusalRecordedAsFailed(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	gw.bookResult = func(string) (booking.BookResult, error) {
		return booking.BookResult{Code: booking.CodeNoBookingsLeft, Error: "No more bookings available"}, nil
	}
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Booked)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, res.Errors)

	recs := h.store.attempts("u1")
	require.Len(t, recs, 1)
	assert.Equal(t, booking.AttemptFailed, recs[0].Status)
	assert.Equal(t, "No more bookings available", recs[0].Error)
}

func TestCheckBookings_TransportErrorOnBookSkipsOnlyThatClass(t *testing.T) {
	h := newHarness(t)
	other := wodClass("456")
	other.StartDateTime = "2024-11-12T18:00:00+01:00"
	rule2 := wodRule()
	rule2.ID = "r2"
	rule2.DayOfWeek = "tuesday"
	gw := kirken(wodClass("123"), other)
	gw.bookResult = func(id string) (booking.BookResult, error) {
		if id == "123" {
			return booking.BookResult{}, errors.New("connection reset")
		}
		return booking.BookResult{Success: true}, nil
	}
	h.addUser("u1", gw, wodRule(), rule2)

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booked)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, res.Errors)

	recs := h.store.attempts("u1")
	require.Len(t, recs, 2)
	assert.Equal(t, "connection reset", recs[0].Error)
}

func TestCheckBookings_AuthErrorOnBookAbortsUser(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	gw.bookResult = func(string) (booking.BookResult, error) {
		return booking.BookResult{}, fmt.Errorf("relogin: %w", internaltypes.ErrUnauthorized)
	}
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "u1", res.Errors[0].UserID)
	assert.Len(t, h.store.attempts("u1"), 1)
}

func TestCheckBookings_UserIsolation(t *testing.T) {
	h := newHarness(t)
	good := kirken(wodClass("123"))
	h.addUser("u1", good, wodRule())
	h.addUser("u2", nil, wodRule())
	h.conn.errs["u2"] = errors.New("login rejected")

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Booked)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "u2", res.Errors[0].UserID)
	assert.Contains(t, res.Errors[0].Error, "login rejected")
}

func TestCheckBookings_BookingsFetchFailureIsUserError(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	gw.bookingsErr = errors.New("502")
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Empty(t, gw.bookedIDs())
}

func TestCheckBookings_UserWithoutCredentialsNotCounted(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.CreateRule(context.Background(), "ghost", wodRule()))

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunResult{Errors: []UserError{}}, res)
	assert.Zero(t, h.conn.connects)
}

func TestCheckBookings_DuplicateRulesSingleAttempt(t *testing.T) {
	h := newHarness(t)
	dup := wodRule()
	dup.ID = "r2"
	dup.Location = ""
	gw := kirken(wodClass("123"))
	// refuse so that neither the booked set nor history short-circuits
	gw.bookResult = func(string) (booking.BookResult, error) {
		return booking.BookResult{Error: "Holdet er fuldt"}, nil
	}
	h.addUser("u1", gw, wodRule(), dup)

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"123"}, gw.bookedIDs())
}

func TestCheckBookings_WindowAndStartedChecks(t *testing.T) {
	h := newHarness(t)
	far := wodClass("far")
	far.StartDateTime = "2024-11-25T18:00:00+01:00" // 21 days out
	started := wodClass("started")
	started.StartDateTime = "2024-11-04T18:00:00+01:00"
	h.now = time.Date(2024, 11, 4, 18, 30, 0, 0, copenhagen(t))
	gw := kirken(far, started)
	gw.anyDay = true
	h.addUser("u1", gw, wodRule())

	_, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gw.bookedIDs())
}

func TestCheckBookings_InvalidTimestampExcluded(t *testing.T) {
	h := newHarness(t)
	bad := wodClass("bad")
	bad.StartDateTime = "soon"
	gw := kirken(bad, wodClass("123"))
	gw.anyDay = true
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booked)
	assert.Equal(t, []string{"123"}, gw.bookedIDs())
}

func TestCheckBookings_FetchFailureSkipsPair(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	gw.locations = append(gw.locations, booking.Location{ID: "11", Name: "Boxen"})
	gw.classesErr = func(loc string, _ time.Time) error {
		if loc == "11" {
			return errors.New("500")
		}
		return nil
	}
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booked)
	assert.Empty(t, res.Errors)
}

func TestCheckBookings_FetchAuthFailureAbortsUser(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	gw.classesErr = func(string, time.Time) error {
		return fmt.Errorf("session: %w", internaltypes.ErrUnauthorized)
	}
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Empty(t, gw.bookedIDs())
}

func TestCheckBookings_CancellationFinishesInFlightOnly(t *testing.T) {
	h := newHarness(t)
	rule := wodRule()
	rule.Location = ""
	b := wodClass("b")
	b.Location = booking.ClassLocation{ID: "11", Name: "Boxen"}
	gw := kirken(wodClass("a"))
	gw.locations = append(gw.locations, booking.Location{ID: "11", Name: "Boxen"})
	gw.classes["11"] = []booking.ClassInstance{b}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gw.bookResult = func(string) (booking.BookResult, error) {
		cancel()
		return booking.BookResult{Success: true}, nil
	}
	h.addUser("u1", gw, rule)

	res, err := h.uc.Execute(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, gw.bookedIDs())
	assert.Equal(t, []bool{true}, gw.bookCtxAlive)
	assert.Equal(t, 1, res.Booked)
	assert.Len(t, h.store.attempts("u1"), 1, "history written despite cancellation")
}

func TestCheckBookings_RejectsOverlappingRuns(t *testing.T) {
	h := newHarness(t)
	gw := kirken(wodClass("123"))
	started := make(chan struct{})
	release := make(chan struct{})
	gw.bookResult = func(string) (booking.BookResult, error) {
		close(started)
		<-release
		return booking.BookResult{Success: true}, nil
	}
	h.addUser("u1", gw, wodRule())

	done := make(chan error, 1)
	go func() {
		_, err := h.uc.Execute(context.Background())
		done <- err
	}()
	<-started

	_, err := h.uc.Execute(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestCheckBookings_HistoryAppendFailureStillCounts(t *testing.T) {
	h := newHarness(t)
	h.store.appendErr = errors.New("disk full")
	gw := kirken(wodClass("123"))
	h.addUser("u1", gw, wodRule())

	res, err := h.uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Booked)
}
