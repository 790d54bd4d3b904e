package usecases

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/arca-scheduler/internal/domain/booking"
)

const DefaultBrowseDays = 7

// Browse is read-only access to a user's view of the platform.
type Browse struct {
	Credentials CredentialSource
	Connector   booking.Connector
	Zone        *time.Location
	Log         *zap.Logger
	Now         func() time.Time
}

func (b Browse) connect(ctx context.Context, userID string) (booking.Gateway, error) {
	creds, err := b.Credentials.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.Connector.Connect(ctx, creds.Username, creds.Password)
}

// TestConnection logs in with the stored credentials and nothing else.
func (b Browse) TestConnection(ctx context.Context, userID string) error {
	_, err := b.connect(ctx, userID)
	return err
}

func (b Browse) Locations(ctx context.Context, userID string) ([]booking.Location, error) {
	gw, err := b.connect(ctx, userID)
	if err != nil {
		return nil, err
	}
	return gw.ListLocations(ctx)
}

// Classes lists a location's classes for today and the following days-1
// days. Days that fail to load are left out.
func (b Browse) Classes(ctx context.Context, userID, locationID string, days int) ([]booking.ClassInstance, error) {
	if days <= 0 {
		days = DefaultBrowseDays
	}
	gw, err := b.connect(ctx, userID)
	if err != nil {
		return nil, err
	}
	zone := b.Zone
	if zone == nil {
		zone = booking.ReferenceZone()
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	log := b.Log
	if log == nil {
		log = zap.NewNop()
	}

	today := now().In(zone)
	out := []booking.ClassInstance{}
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i)
		cs, err := gw.ListClasses(ctx, locationID, day)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Warn("class fetch failed", zap.String("location_id", locationID), zap.String("date", day.Format("2006-01-02")), zap.Error(err))
			continue
		}
		out = append(out, cs...)
	}
	return out, nil
}

func (b Browse) Bookings(ctx context.Context, userID string) ([]booking.BookingRef, error) {
	gw, err := b.connect(ctx, userID)
	if err != nil {
		return nil, err
	}
	return gw.ListMyBookings(ctx)
}
