package gormstore

import (
	"time"

	"github.com/example/arca-scheduler/internal/domain/booking"
	"github.com/example/arca-scheduler/internal/domain/user"
)

type userRow struct {
	ID        string    `gorm:"primaryKey;size:191"`
	Email     string    `gorm:"size:191"`
	Name      string    `gorm:"size:191"`
	CreatedAt time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type credentialRow struct {
	UserID      string    `gorm:"primaryKey;size:191"`
	UsernameEnc string    `gorm:"type:text;not null"`
	PasswordEnc string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (credentialRow) TableName() string { return "credentials" }

type ruleRow struct {
	ID             string    `gorm:"primaryKey;size:64"`
	UserID         string    `gorm:"size:191;not null;index"`
	ClassName      string    `gorm:"size:191;not null"`
	DayOfWeek      string    `gorm:"size:16;not null"`
	TimeOfDay      string    `gorm:"size:5;not null"`
	Instructor     string    `gorm:"size:191"`
	Location       string    `gorm:"size:191"`
	Enabled        bool      `gorm:"not null"`
	MaxWaitingList int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (ruleRow) TableName() string { return "booking_rules" }

func (r ruleRow) toRule() booking.Rule {
	return booking.Rule{
		ID:             r.ID,
		ClassName:      r.ClassName,
		DayOfWeek:      r.DayOfWeek,
		Time:           r.TimeOfDay,
		Instructor:     r.Instructor,
		Location:       r.Location,
		Enabled:        r.Enabled,
		MaxWaitingList: r.MaxWaitingList,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func ruleRowFrom(userID string, r booking.Rule) ruleRow {
	return ruleRow{
		ID:             r.ID,
		UserID:         userID,
		ClassName:      r.ClassName,
		DayOfWeek:      r.DayOfWeek,
		TimeOfDay:      r.Time,
		Instructor:     r.Instructor,
		Location:       r.Location,
		Enabled:        r.Enabled,
		MaxWaitingList: r.MaxWaitingList,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type historyRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	UserID     string    `gorm:"size:191;not null;index:idx_history_dedup,priority:1;index:idx_history_recent,priority:1"`
	EventID    string    `gorm:"size:64;not null;index:idx_history_dedup,priority:2"`
	Status     string    `gorm:"size:16;not null;index:idx_history_dedup,priority:3"`
	ClassName  string    `gorm:"size:191"`
	ClassTime  string    `gorm:"size:64"`
	Gym        string    `gorm:"size:191"`
	Instructor string    `gorm:"size:191"`
	RuleID     *string   `gorm:"size:64"`
	BookedAt   time.Time `gorm:"not null;index:idx_history_recent,priority:2"`
	Error      string    `gorm:"type:text"`
	Details    *string   `gorm:"type:text"`
	Automatic  bool      `gorm:"not null"`
}

func (historyRow) TableName() string { return "booking_history" }

func historyRowFrom(userID string, rec booking.AttemptRecord) historyRow {
	row := historyRow{
		ID:         rec.ID,
		UserID:     userID,
		EventID:    rec.EventID,
		Status:     string(rec.Status),
		ClassName:  rec.ClassName,
		ClassTime:  rec.ClassTime,
		Gym:        rec.Gym,
		Instructor: rec.Instructor,
		BookedAt:   rec.BookedAt,
		Error:      rec.Error,
		Automatic:  rec.Automatic,
	}
	if rec.RuleID != "" {
		id := rec.RuleID
		row.RuleID = &id
	}
	if len(rec.Details) > 0 {
		d := string(rec.Details)
		row.Details = &d
	}
	return row
}

func (r historyRow) toRecord() booking.AttemptRecord {
	rec := booking.AttemptRecord{
		ID:         r.ID,
		EventID:    r.EventID,
		ClassName:  r.ClassName,
		ClassTime:  r.ClassTime,
		Gym:        r.Gym,
		Instructor: r.Instructor,
		BookedAt:   r.BookedAt,
		Status:     booking.AttemptStatus(r.Status),
		Error:      r.Error,
		Automatic:  r.Automatic,
	}
	if r.RuleID != nil {
		rec.RuleID = *r.RuleID
	}
	if r.Details != nil {
		rec.Details = []byte(*r.Details)
	}
	return rec
}

func (r userRow) toUser() user.User {
	return user.User{ID: r.ID, Email: r.Email, Name: r.Name, CreatedAt: r.CreatedAt}
}

func (r credentialRow) toCredentials() user.Credentials {
	return user.Credentials{
		UserID:    r.UserID,
		Username:  r.UsernameEnc,
		Password:  r.PasswordEnc,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
