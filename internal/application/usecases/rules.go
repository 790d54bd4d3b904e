package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/arca-scheduler/internal/domain/booking"
)

var ErrInvalidRule = errors.New("invalid booking rule")

// RuleInput creates a rule. Enabled defaults to true.
type RuleInput struct {
	ClassName      string `json:"className"`
	DayOfWeek      string `json:"dayOfWeek"`
	Time           string `json:"time"`
	Instructor     string `json:"instructor,omitempty"`
	Location       string `json:"location,omitempty"`
	Enabled        *bool  `json:"enabled,omitempty"`
	MaxWaitingList int    `json:"maxWaitingList"`
}

// RulePatch changes only the fields that are set.
type RulePatch struct {
	ClassName      *string `json:"className,omitempty"`
	DayOfWeek      *string `json:"dayOfWeek,omitempty"`
	Time           *string `json:"time,omitempty"`
	Instructor     *string `json:"instructor,omitempty"`
	Location       *string `json:"location,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"`
	MaxWaitingList *int    `json:"maxWaitingList,omitempty"`
}

type RulesService struct {
	Store RuleStore
	Now   func() time.Time
}

func (s RulesService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s RulesService) List(ctx context.Context, userID string) ([]booking.Rule, error) {
	return s.Store.ListRules(ctx, userID)
}

func (s RulesService) Add(ctx context.Context, userID string, in RuleInput) (booking.Rule, error) {
	now := s.now()
	r := booking.Rule{
		ID:             uuid.NewString(),
		ClassName:      strings.TrimSpace(in.ClassName),
		DayOfWeek:      strings.ToLower(strings.TrimSpace(in.DayOfWeek)),
		Time:           strings.TrimSpace(in.Time),
		Instructor:     strings.TrimSpace(in.Instructor),
		Location:       strings.TrimSpace(in.Location),
		Enabled:        in.Enabled == nil || *in.Enabled,
		MaxWaitingList: in.MaxWaitingList,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := validateRule(r); err != nil {
		return booking.Rule{}, err
	}
	if err := s.Store.CreateRule(ctx, userID, r); err != nil {
		return booking.Rule{}, err
	}
	return r, nil
}

func (s RulesService) Update(ctx context.Context, userID, ruleID string, p RulePatch) (booking.Rule, error) {
	r, err := s.Store.GetRule(ctx, userID, ruleID)
	if err != nil {
		return booking.Rule{}, err
	}
	if p.ClassName != nil {
		r.ClassName = strings.TrimSpace(*p.ClassName)
	}
	if p.DayOfWeek != nil {
		r.DayOfWeek = strings.ToLower(strings.TrimSpace(*p.DayOfWeek))
	}
	if p.Time != nil {
		r.Time = strings.TrimSpace(*p.Time)
	}
	if p.Instructor != nil {
		r.Instructor = strings.TrimSpace(*p.Instructor)
	}
	if p.Location != nil {
		r.Location = strings.TrimSpace(*p.Location)
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.MaxWaitingList != nil {
		r.MaxWaitingList = *p.MaxWaitingList
	}
	r.UpdatedAt = s.now()
	if err := validateRule(r); err != nil {
		return booking.Rule{}, err
	}
	if err := s.Store.UpdateRule(ctx, userID, r); err != nil {
		return booking.Rule{}, err
	}
	return r, nil
}

func (s RulesService) Delete(ctx context.Context, userID, ruleID string) error {
	return s.Store.DeleteRule(ctx, userID, ruleID)
}

func validateRule(r booking.Rule) error {
	switch {
	case r.ClassName == "" || r.DayOfWeek == "" || r.Time == "":
		return fmt.Errorf("%w: className, dayOfWeek and time are required", ErrInvalidRule)
	case !booking.ValidWeekday(r.DayOfWeek):
		return fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, r.DayOfWeek)
	case !booking.ValidClock(r.Time):
		return fmt.Errorf("%w: time must be HH:MM, got %q", ErrInvalidRule, r.Time)
	case r.MaxWaitingList < 0:
		return fmt.Errorf("%w: maxWaitingList must not be negative", ErrInvalidRule)
	}
	return nil
}
