package postgres

import (
	"context"
	"time"

	"github.com/example/arca-scheduler/internal/domain/booking"
	"github.com/example/arca-scheduler/internal/domain/user"
	"github.com/example/arca-scheduler/internal/internaltypes"
)

// Store implements usecases.Store on Postgres.
type Store struct{ db *DB }

func NewStore(db *DB) *Store { return &Store{db: db} }

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u user.User) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES ($1,$2,$3,$4)`,
		u.ID, u.Email, u.Name, u.CreatedAt,
	)
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.QueryRow(ctx, `SELECT id, email, name, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return user.User{}, WrapNotFound(err)
	}
	return u, nil
}

func (s *Store) ListUserIDsWithEnabledRules(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT user_id FROM booking_rules WHERE enabled ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) GetCredentials(ctx context.Context, userID string) (user.Credentials, error) {
	var c user.Credentials
	err := s.db.QueryRow(ctx, `
		SELECT user_id, username_enc, password_enc, created_at, updated_at
		FROM credentials WHERE user_id=$1
	`, userID).Scan(&c.UserID, &c.Username, &c.Password, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return user.Credentials{}, WrapNotFound(err)
	}
	return c, nil
}

func (s *Store) PutCredentials(ctx context.Context, c user.Credentials) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO credentials (user_id, username_enc, password_enc, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$4)
		ON CONFLICT (user_id) DO UPDATE
		SET username_enc=EXCLUDED.username_enc, password_enc=EXCLUDED.password_enc, updated_at=EXCLUDED.updated_at
	`, c.UserID, c.Username, c.Password, now)
	return err
}

const ruleColumns = `id, class_name, day_of_week, time_of_day, instructor, location, enabled, max_waiting_list, created_at, updated_at`

func scanRule(r Row) (booking.Rule, error) {
	var out booking.Rule
	err := r.Scan(&out.ID, &out.ClassName, &out.DayOfWeek, &out.Time, &out.Instructor, &out.Location,
		&out.Enabled, &out.MaxWaitingList, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

func (s *Store) queryRules(ctx context.Context, sql string, args ...any) ([]booking.Rule, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []booking.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListRules(ctx context.Context, userID string) ([]booking.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM booking_rules WHERE user_id=$1 ORDER BY created_at, id`, userID)
}

func (s *Store) ListEnabledRules(ctx context.Context, userID string) ([]booking.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM booking_rules WHERE user_id=$1 AND enabled ORDER BY created_at, id`, userID)
}

func (s *Store) GetRule(ctx context.Context, userID, ruleID string) (booking.Rule, error) {
	r, err := scanRule(s.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM booking_rules WHERE user_id=$1 AND id=$2`, userID, ruleID))
	if err != nil {
		return booking.Rule{}, WrapNotFound(err)
	}
	return r, nil
}

func (s *Store) CreateRule(ctx context.Context, userID string, r booking.Rule) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_rules (id, user_id, class_name, day_of_week, time_of_day, instructor, location, enabled, max_waiting_list, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, r.ID, userID, r.ClassName, r.DayOfWeek, r.Time, r.Instructor, r.Location, r.Enabled, r.MaxWaitingList, r.CreatedAt, r.UpdatedAt)
	return err
}

func (s *Store) UpdateRule(ctx context.Context, userID string, r booking.Rule) error {
	n, err := s.db.Exec(ctx, `
		UPDATE booking_rules
		SET class_name=$3, day_of_week=$4, time_of_day=$5, instructor=$6, location=$7, enabled=$8, max_waiting_list=$9, updated_at=$10
		WHERE user_id=$1 AND id=$2
	`, userID, r.ID, r.ClassName, r.DayOfWeek, r.Time, r.Instructor, r.Location, r.Enabled, r.MaxWaitingList, r.UpdatedAt)
	if err != nil {
		return err
	}
	if n == 0 {
		return internaltypes.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, userID, ruleID string) error {
	n, err := s.db.Exec(ctx, `DELETE FROM booking_rules WHERE user_id=$1 AND id=$2`, userID, ruleID)
	if err != nil {
		return err
	}
	if n == 0 {
		return internaltypes.ErrNotFound
	}
	return nil
}

func (s *Store) AppendAttempt(ctx context.Context, userID string, rec booking.AttemptRecord) error {
	var ruleID, details any
	if rec.RuleID != "" {
		ruleID = rec.RuleID
	}
	if len(rec.Details) > 0 {
		details = []byte(rec.Details)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_history (id, user_id, event_id, class_name, class_time, gym, instructor, rule_id, booked_at, status, error, details, automatic)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, rec.ID, userID, rec.EventID, rec.ClassName, rec.ClassTime, rec.Gym, rec.Instructor, ruleID,
		rec.BookedAt, string(rec.Status), rec.Error, details, rec.Automatic)
	return err
}

func (s *Store) HasSuccessfulAttempt(ctx context.Context, userID, eventID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM booking_history WHERE user_id=$1 AND event_id=$2 AND status=$3)
	`, userID, eventID, string(booking.AttemptSuccess)).Scan(&ok)
	return ok, err
}

func (s *Store) ListRecentAttempts(ctx context.Context, userID string, limit int) ([]booking.AttemptRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, event_id, class_name, class_time, gym, instructor, rule_id, booked_at, status, error, details, automatic
		FROM booking_history WHERE user_id=$1
		ORDER BY booked_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []booking.AttemptRecord
	for rows.Next() {
		var (
			rec     booking.AttemptRecord
			ruleID  *string
			status  string
			details []byte
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.ClassName, &rec.ClassTime, &rec.Gym, &rec.Instructor,
			&ruleID, &rec.BookedAt, &status, &rec.Error, &details, &rec.Automatic); err != nil {
			return nil, err
		}
		if ruleID != nil {
			rec.RuleID = *ruleID
		}
		rec.Status = booking.AttemptStatus(status)
		rec.Details = details
		out = append(out, rec)
	}
	return out, rows.Err()
}
