package user

import "time"

// Credentials are the member's login for the booking platform. Stored
// encrypted; only the credentials service sees plaintext.
type Credentials struct {
	UserID string

	Username string
	Password string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Credentials) HasArca() bool {
	return c.Username != "" && c.Password != ""
}
