package usecases

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/example/arca-scheduler/internal/domain/booking"
	"github.com/example/arca-scheduler/internal/domain/user"
	"github.com/example/arca-scheduler/internal/internaltypes"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	users   map[string]user.User
	creds   map[string]user.Credentials
	rules   map[string][]booking.Rule
	history map[string][]booking.AttemptRecord

	appendErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]user.User{},
		creds:   map[string]user.Credentials{},
		rules:   map[string][]booking.Rule{},
		history: map[string][]booking.AttemptRecord{},
	}
}

func (s *memStore) Close() error { return nil }

func (s *memStore) CreateUser(_ context.Context, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *memStore) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, internaltypes.ErrNotFound
	}
	return u, nil
}

func (s *memStore) ListUserIDsWithEnabledRules(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, rs := range s.rules {
		for _, r := range rs {
			if r.Enabled {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStore) GetCredentials(_ context.Context, userID string) (user.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[userID]
	if !ok {
		return user.Credentials{}, internaltypes.ErrNotFound
	}
	return c, nil
}

func (s *memStore) PutCredentials(_ context.Context, c user.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[c.UserID] = c
	return nil
}

func (s *memStore) ListRules(_ context.Context, userID string) ([]booking.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]booking.Rule(nil), s.rules[userID]...), nil
}

func (s *memStore) ListEnabledRules(_ context.Context, userID string) ([]booking.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []booking.Rule
	for _, r := range s.rules[userID] {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) GetRule(_ context.Context, userID, ruleID string) (booking.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules[userID] {
		if r.ID == ruleID {
			return r, nil
		}
	}
	return booking.Rule{}, internaltypes.ErrNotFound
}

func (s *memStore) CreateRule(_ context.Context, userID string, r booking.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[userID] = append(s.rules[userID], r)
	return nil
}

func (s *memStore) UpdateRule(_ context.Context, userID string, r booking.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.rules[userID] {
		if cur.ID == r.ID {
			s.rules[userID][i] = r
			return nil
		}
	}
	return internaltypes.ErrNotFound
}

func (s *memStore) DeleteRule(_ context.Context, userID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.rules[userID]
	for i, cur := range rs {
		if cur.ID == ruleID {
			s.rules[userID] = append(rs[:i], rs[i+1:]...)
			return nil
		}
	}
	return internaltypes.ErrNotFound
}

func (s *memStore) AppendAttempt(_ context.Context, userID string, rec booking.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.history[userID] = append(s.history[userID], rec)
	return nil
}

func (s *memStore) HasSuccessfulAttempt(_ context.Context, userID, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.history[userID] {
		if rec.EventID == eventID && rec.Status == booking.AttemptSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListRecentAttempts(_ context.Context, userID string, limit int) ([]booking.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.history[userID]
	out := make([]booking.AttemptRecord, 0, len(src))
	for i := len(src) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

func (s *memStore) attempts(userID string) []booking.AttemptRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]booking.AttemptRecord(nil), s.history[userID]...)
}

// plainCreds hands out stored credentials without encryption.
type plainCreds struct{ store *memStore }

func (p plainCreds) Get(ctx context.Context, userID string) (user.Credentials, error) {
	return p.store.GetCredentials(ctx, userID)
}

// fakeGateway serves a fixed catalog and records booking calls. The
// platform's own booking list grows as bookings succeed.
type fakeGateway struct {
	mu sync.Mutex

	locations []booking.Location
	// classes by location id, returned for the date they start on
	classes  map[string][]booking.ClassInstance
	bookings []booking.BookingRef

	// anyDay returns every class of a location on every date
	anyDay bool

	bookResult  func(eventID string) (booking.BookResult, error)
	classesErr  func(locationID string, day time.Time) error
	bookingsErr error
	bookDelay   time.Duration

	booked       []string
	classCalls   int
	bookCtxAlive []bool
}

func (g *fakeGateway) ListLocations(context.Context) ([]booking.Location, error) {
	return g.locations, nil
}

func (g *fakeGateway) ListClasses(ctx context.Context, locationID string, day time.Time) ([]booking.ClassInstance, error) {
	g.mu.Lock()
	g.classCalls++
	g.mu.Unlock()
	if g.classesErr != nil {
		if err := g.classesErr(locationID, day); err != nil {
			return nil, err
		}
	}
	date := day.Format("2006-01-02")
	var out []booking.ClassInstance
	for _, c := range g.classes[locationID] {
		if g.anyDay || (len(c.StartDateTime) >= 10 && c.StartDateTime[:10] == date) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *fakeGateway) ListMyBookings(context.Context) ([]booking.BookingRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bookingsErr != nil {
		return nil, g.bookingsErr
	}
	return append([]booking.BookingRef(nil), g.bookings...), nil
}

func (g *fakeGateway) BookClass(ctx context.Context, eventID string) (booking.BookResult, error) {
	if g.bookDelay > 0 {
		time.Sleep(g.bookDelay)
	}
	res := booking.BookResult{Success: true}
	var err error
	if g.bookResult != nil {
		res, err = g.bookResult(eventID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.booked = append(g.booked, eventID)
	g.bookCtxAlive = append(g.bookCtxAlive, ctx.Err() == nil)
	if err == nil && res.Success {
		g.bookings = append(g.bookings, booking.BookingRef{EventID: eventID})
	}
	return res, err
}

func (g *fakeGateway) bookedIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.booked...)
}

// fakeConnector maps usernames to gateways.
type fakeConnector struct {
	mu       sync.Mutex
	gateways map[string]booking.Gateway
	errs     map[string]error
	connects int
}

func (f *fakeConnector) Connect(_ context.Context, username, _ string) (booking.Gateway, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if err := f.errs[username]; err != nil {
		return nil, err
	}
	return f.gateways[username], nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	recs []booking.AttemptRecord
}

func (p *recordingPublisher) PublishAttempt(_ context.Context, _ string, rec booking.AttemptRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return nil
}

// mockGateway is a testify mock for call-level expectations.
type mockGateway struct{ mock.Mock }

func (m *mockGateway) ListLocations(ctx context.Context) ([]booking.Location, error) {
	args := m.Called(ctx)
	return args.Get(0).([]booking.Location), args.Error(1)
}

func (m *mockGateway) ListClasses(ctx context.Context, locationID string, day time.Time) ([]booking.ClassInstance, error) {
	args := m.Called(ctx, locationID, day)
	return args.Get(0).([]booking.ClassInstance), args.Error(1)
}

func (m *mockGateway) ListMyBookings(ctx context.Context) ([]booking.BookingRef, error) {
	args := m.Called(ctx)
	return args.Get(0).([]booking.BookingRef), args.Error(1)
}

func (m *mockGateway) BookClass(ctx context.Context, eventID string) (booking.BookResult, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(booking.BookResult), args.Error(1)
}

type mockConnector struct{ mock.Mock }

func (m *mockConnector) Connect(ctx context.Context, username, password string) (booking.Gateway, error) {
	args := m.Called(ctx, username, password)
	gw, _ := args.Get(0).(booking.Gateway)
	return gw, args.Error(1)
}
