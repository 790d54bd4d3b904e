package usecases

import (
	"context"

	"github.com/example/arca-scheduler/internal/domain/booking"
	"github.com/example/arca-scheduler/internal/domain/user"
)

type UserStore interface {
	CreateUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, id string) (user.User, error)
	// ListUserIDsWithEnabledRules is the population of one orchestrator run.
	ListUserIDsWithEnabledRules(ctx context.Context) ([]string, error)
}

// CredentialStore persists credentials exactly as given; encryption is the
// caller's job.
type CredentialStore interface {
	GetCredentials(ctx context.Context, userID string) (user.Credentials, error)
	PutCredentials(ctx context.Context, c user.Credentials) error
}

type RuleStore interface {
	ListRules(ctx context.Context, userID string) ([]booking.Rule, error)
	ListEnabledRules(ctx context.Context, userID string) ([]booking.Rule, error)
	GetRule(ctx context.Context, userID, ruleID string) (booking.Rule, error)
	CreateRule(ctx context.Context, userID string, r booking.Rule) error
	UpdateRule(ctx context.Context, userID string, r booking.Rule) error
	DeleteRule(ctx context.Context, userID, ruleID string) error
}

// HistoryStore is append-only.
type HistoryStore interface {
	AppendAttempt(ctx context.Context, userID string, rec booking.AttemptRecord) error
	HasSuccessfulAttempt(ctx context.Context, userID, eventID string) (bool, error)
	// ListRecentAttempts returns newest first.
	ListRecentAttempts(ctx context.Context, userID string, limit int) ([]booking.AttemptRecord, error)
}

// Store is everything the service persists. Both the Postgres and the
// SQLite backends implement it.
type Store interface {
	UserStore
	CredentialStore
	RuleStore
	HistoryStore
	Close() error
}

// AttemptPublisher announces history records to other systems. Failures
// are logged and never affect the booking.
type AttemptPublisher interface {
	PublishAttempt(ctx context.Context, userID string, rec booking.AttemptRecord) error
}
