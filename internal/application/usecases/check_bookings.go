package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/arca-scheduler/internal/domain/booking"
	"github.com/example/arca-scheduler/internal/internaltypes"
)

var ErrRunInProgress = errors.New("booking run already in progress")

type UserError struct {
	UserID string `json:"userId"`
	Error  string `json:"error"`
}

// RunResult counts one orchestrator run. Errors lists users whose run was
// aborted; it is never nil.
type RunResult struct {
	Checked int         `json:"checked"`
	Booked  int         `json:"booked"`
	Failed  int         `json:"failed"`
	Errors  []UserError `json:"errors"`
}

// CheckBookings books every class matching an enabled rule for every user
// who has one. Use one value for the process: Execute refuses to overlap
// itself.
type CheckBookings struct {
	Users       UserStore
	Credentials CredentialSource
	Rules       RuleStore
	History     HistoryStore
	Connector   booking.Connector
	Publisher   AttemptPublisher // optional
	Log         *zap.Logger

	Zone             *time.Location
	MaxDaysAhead     int
	UserConcurrency  int
	FetchConcurrency int
	BookTimeout      time.Duration
	Now              func() time.Time

	running sync.Mutex
}

func (uc *CheckBookings) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

func (uc *CheckBookings) logger() *zap.Logger {
	if uc.Log == nil {
		return zap.NewNop()
	}
	return uc.Log
}

func (uc *CheckBookings) zone() *time.Location {
	if uc.Zone != nil {
		return uc.Zone
	}
	return booking.ReferenceZone()
}

func (uc *CheckBookings) maxDays() int {
	if uc.MaxDaysAhead > 0 {
		return uc.MaxDaysAhead
	}
	return booking.MaxDaysAhead
}

func positive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Execute runs every user with enabled rules. Per-user failures land in
// RunResult.Errors; the returned error is for failures of the run itself,
// and the partial result is returned alongside it.
func (uc *CheckBookings) Execute(ctx context.Context) (RunResult, error) {
	if !uc.running.TryLock() {
		return RunResult{Errors: []UserError{}}, ErrRunInProgress
	}
	defer uc.running.Unlock()

	log := uc.logger().With(zap.String("run_id", uuid.NewString()))
	started := time.Now()

	var (
		mu  sync.Mutex
		res = RunResult{Errors: []UserError{}}
	)

	ids, err := uc.Users.ListUserIDsWithEnabledRules(ctx)
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}
	log.Info("booking run started", zap.Int("users", len(ids)))

	var g errgroup.Group
	g.SetLimit(positive(uc.UserConcurrency, 2))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			t := uc.runUser(ctx, log.With(zap.String("user_id", id)), id)

			mu.Lock()
			defer mu.Unlock()
			if t.checked {
				res.Checked++
			}
			res.Booked += t.booked
			res.Failed += t.failed
			if t.err != nil {
				res.Errors = append(res.Errors, UserError{UserID: id, Error: t.err.Error()})
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("booking run finished",
		zap.Int("checked", res.Checked),
		zap.Int("booked", res.Booked),
		zap.Int("failed", res.Failed),
		zap.Int("user_errors", len(res.Errors)),
		zap.Duration("took", time.Since(started)),
	)
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("booking run interrupted: %w", err)
	}
	return res, nil
}

type tally struct {
	checked bool
	booked  int
	failed  int
	err     error
}

func (uc *CheckBookings) runUser(ctx context.Context, log *zap.Logger, userID string) (t tally) {
	creds, err := uc.Credentials.Get(ctx, userID)
	if errors.Is(err, internaltypes.ErrNotFound) || (err == nil && !creds.HasArca()) {
		log.Debug("skipping user without credentials")
		return t
	}
	if err != nil {
		t.err = fmt.Errorf("load credentials: %w", err)
		return t
	}

	rules, err := uc.Rules.ListEnabledRules(ctx, userID)
	if err != nil {
		t.err = fmt.Errorf("load rules: %w", err)
		return t
	}
	if len(rules) == 0 {
		return t
	}
	t.checked = true

	gw, err := uc.Connector.Connect(ctx, creds.Username, creds.Password)
	if err != nil {
		t.err = fmt.Errorf("login: %w", err)
		return t
	}

	refs, err := gw.ListMyBookings(ctx)
	if err != nil {
		t.err = fmt.Errorf("list bookings: %w", err)
		return t
	}
	booked := make(map[string]bool, len(refs))
	for _, r := range refs {
		booked[r.EventID] = true
	}

	classes, err := uc.fetchCatalog(ctx, log, gw)
	if err != nil {
		t.err = err
		return t
	}
	log.Info("catalog fetched", zap.Int("bookings", len(booked)), zap.Int("classes", len(classes)), zap.Int("rules", len(rules)))

	run := &userRun{
		uc:        uc,
		log:       log,
		userID:    userID,
		gw:        gw,
		booked:    booked,
		attempted: map[string]bool{},
		invalid:   map[string]bool{},
		tally:     t,
	}
	for _, rule := range rules {
		for _, c := range classes {
			if ctx.Err() != nil {
				return run.tally
			}
			if err := run.consider(ctx, rule, c); err != nil {
				run.tally.err = err
				return run.tally
			}
		}
	}
	return run.tally
}

// fetchCatalog collects classes at every location for each day in
// [1, MaxDaysAhead]. Single failed fetches are skipped; an auth failure
// aborts.
func (uc *CheckBookings) fetchCatalog(ctx context.Context, log *zap.Logger, gw booking.Gateway) ([]booking.ClassInstance, error) {
	locations, err := gw.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}

	today := uc.now().In(uc.zone())
	days := uc.maxDays()
	// indexed by (day, location) so the result order does not depend on
	// scheduling
	slots := make([][]booking.ClassInstance, days*len(locations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(positive(uc.FetchConcurrency, 4))
	for d := 1; d <= days; d++ {
		day := today.AddDate(0, 0, d)
		for i, loc := range locations {
			slot := (d-1)*len(locations) + i
			loc := loc
			g.Go(func() error {
				cs, err := gw.ListClasses(gctx, loc.ID, day)
				if errors.Is(err, internaltypes.ErrUnauthorized) {
					return fmt.Errorf("list classes: %w", err)
				}
				if err != nil {
					log.Warn("class fetch failed",
						zap.String("location_id", loc.ID),
						zap.String("date", day.Format("2006-01-02")),
						zap.Error(err))
					return nil
				}
				slots[slot] = cs
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []booking.ClassInstance
	for _, cs := range slots {
		out = append(out, cs...)
	}
	return out, nil
}

type userRun struct {
	uc     *CheckBookings
	log    *zap.Logger
	userID string
	gw     booking.Gateway

	booked    map[string]bool
	attempted map[string]bool
	invalid   map[string]bool
	tally
}

// consider applies the eligibility checks in order and books when all pass.
// A non-nil error aborts the user's run.
func (r *userRun) consider(ctx context.Context, rule booking.Rule, c booking.ClassInstance) error {
	uc := r.uc
	ok, err := booking.Match(c, rule, uc.zone())
	if err != nil {
		if !r.invalid[c.ID] {
			r.invalid[c.ID] = true
			r.log.Warn("invalid class data", zap.Error(err))
		}
		return nil
	}
	if !ok {
		return nil
	}
	log := r.log.With(zap.String("event_id", c.ID), zap.String("rule_id", rule.ID), zap.String("class", c.Name))

	now := uc.now()
	days, err := booking.DaysUntil(c, now, uc.zone())
	if err != nil {
		return nil
	}
	if days > uc.maxDays() {
		log.Debug("skip: beyond booking window", zap.Int("days", days))
		return nil
	}
	if start, _ := booking.ParseStart(c, uc.zone()); !start.After(now) {
		log.Debug("skip: already started")
		return nil
	}
	if r.booked[c.ID] {
		log.Debug("skip: already booked upstream")
		return nil
	}
	if r.attempted[c.ID] {
		log.Debug("skip: already attempted this run")
		return nil
	}
	if !booking.ShouldBookGivenWaitlist(c, rule) {
		log.Debug("skip: waiting list too long", zap.Int("waiting", c.WaitingListCount), zap.Int("max", rule.MaxWaitingList))
		return nil
	}
	done, err := uc.History.HasSuccessfulAttempt(ctx, r.userID, c.ID)
	if err != nil {
		log.Warn("skip: history lookup failed", zap.Error(err))
		return nil
	}
	if done {
		log.Debug("skip: already in booking history")
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	r.attempted[c.ID] = true
	res, err := uc.attempt(ctx, log, r.userID, r.gw, c, rule.ID, true)
	if res.Success {
		r.booked[c.ID] = true
		r.tally.booked++
	} else {
		r.tally.failed++
	}
	if errors.Is(err, internaltypes.ErrUnauthorized) {
		return fmt.Errorf("book %s: %w", c.ID, err)
	}
	return nil
}

// attempt books c and records the outcome. It runs detached from ctx so a
// cancelled run never leaves a submitted booking without its history entry.
func (uc *CheckBookings) attempt(ctx context.Context, log *zap.Logger, userID string, gw booking.Gateway, c booking.ClassInstance, ruleID string, automatic bool) (booking.BookResult, error) {
	return bookAndRecord(ctx, attemptDeps{
		History:     uc.History,
		Publisher:   uc.Publisher,
		Log:         log,
		BookTimeout: uc.BookTimeout,
		Now:         uc.now,
	}, userID, gw, c, ruleID, automatic)
}

type attemptDeps struct {
	History     HistoryStore
	Publisher   AttemptPublisher
	Log         *zap.Logger
	BookTimeout time.Duration
	Now         func() time.Time
}

func bookAndRecord(ctx context.Context, d attemptDeps, userID string, gw booking.Gateway, c booking.ClassInstance, ruleID string, automatic bool) (booking.BookResult, error) {
	timeout := d.BookTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	res, err := gw.BookClass(bctx, c.ID)
	if err != nil {
		res = booking.BookResult{Error: err.Error()}
	}
	rec := booking.NewAttemptRecord(c, ruleID, res, d.Now(), automatic)
	rec.ID = uuid.NewString()

	if res.Success {
		d.Log.Info("class booked")
	} else {
		d.Log.Warn("booking failed", zap.String("reason", rec.Error), zap.String("code", string(res.Code)))
	}
	if aerr := d.History.AppendAttempt(bctx, userID, rec); aerr != nil {
		d.Log.Error("history append failed", zap.Error(aerr))
	}
	if d.Publisher != nil {
		if perr := d.Publisher.PublishAttempt(bctx, userID, rec); perr != nil {
			d.Log.Warn("attempt event not published", zap.Error(perr))
		}
	}
	return res, err
}
