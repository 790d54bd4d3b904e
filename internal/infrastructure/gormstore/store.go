package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/example/arca-scheduler/internal/domain/booking"
	"github.com/example/arca-scheduler/internal/domain/user"
	"github.com/example/arca-scheduler/internal/internaltypes"
)

// Store implements usecases.Store on an embedded SQLite file.
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	gdb, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	s := &Store{db: gdb}
	if err := s.db.AutoMigrate(&userRow{}, &credentialRow{}, &ruleRow{}, &historyRow{}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internaltypes.ErrNotFound
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u user.User) error {
	row := userRow{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return user.User{}, notFound(err)
	}
	return row.toUser(), nil
}

func (s *Store) ListUserIDsWithEnabledRules(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&ruleRow{}).
		Where("enabled = ?", true).
		Distinct().
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (s *Store) GetCredentials(ctx context.Context, userID string) (user.Credentials, error) {
	var row credentialRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error; err != nil {
		return user.Credentials{}, notFound(err)
	}
	return row.toCredentials(), nil
}

func (s *Store) PutCredentials(ctx context.Context, c user.Credentials) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row credentialRow
		err := tx.Where("user_id = ?", c.UserID).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = credentialRow{UserID: c.UserID, CreatedAt: now}
		case err != nil:
			return err
		}
		row.UsernameEnc = c.Username
		row.PasswordEnc = c.Password
		row.UpdatedAt = now
		return tx.Save(&row).Error
	})
}

func (s *Store) ListRules(ctx context.Context, userID string) ([]booking.Rule, error) {
	return s.listRules(s.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (s *Store) ListEnabledRules(ctx context.Context, userID string) ([]booking.Rule, error) {
	return s.listRules(s.db.WithContext(ctx).Where("user_id = ? AND enabled = ?", userID, true))
}

func (s *Store) listRules(q *gorm.DB) ([]booking.Rule, error) {
	var rows []ruleRow
	if err := q.Order("created_at").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]booking.Rule, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRule())
	}
	return out, nil
}

func (s *Store) GetRule(ctx context.Context, userID, ruleID string) (booking.Rule, error) {
	var row ruleRow
	if err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, ruleID).Take(&row).Error; err != nil {
		return booking.Rule{}, notFound(err)
	}
	return row.toRule(), nil
}

func (s *Store) CreateRule(ctx context.Context, userID string, r booking.Rule) error {
	row := ruleRowFrom(userID, r)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) UpdateRule(ctx context.Context, userID string, r booking.Rule) error {
	res := s.db.WithContext(ctx).Model(&ruleRow{}).
		Where("user_id = ? AND id = ?", userID, r.ID).
		Updates(map[string]any{
			"class_name":       r.ClassName,
			"day_of_week":      r.DayOfWeek,
			"time_of_day":      r.Time,
			"instructor":       r.Instructor,
			"location":         r.Location,
			"enabled":          r.Enabled,
			"max_waiting_list": r.MaxWaitingList,
			"updated_at":       r.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internaltypes.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, userID, ruleID string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, ruleID).Delete(&ruleRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internaltypes.ErrNotFound
	}
	return nil
}

func (s *Store) AppendAttempt(ctx context.Context, userID string, rec booking.AttemptRecord) error {
	row := historyRowFrom(userID, rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (s *Store) HasSuccessfulAttempt(ctx context.Context, userID, eventID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&historyRow{}).
		Where("user_id = ? AND event_id = ? AND status = ?", userID, eventID, string(booking.AttemptSuccess)).
		Count(&n).Error
	return n > 0, err
}

func (s *Store) ListRecentAttempts(ctx context.Context, userID string, limit int) ([]booking.AttemptRecord, error) {
	var rows []historyRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("booked_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]booking.AttemptRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}
