package usecases

import (
	"context"

	"github.com/example/arca-scheduler/internal/domain/booking"
)

const DefaultHistoryLimit = 50

type HistoryService struct {
	Store HistoryStore
}

// ListRecent returns the newest attempts first. A non-positive limit means
// DefaultHistoryLimit.
func (s HistoryService) ListRecent(ctx context.Context, userID string, limit int) ([]booking.AttemptRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.Store.ListRecentAttempts(ctx, userID, limit)
}
