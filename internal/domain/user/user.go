package user

import "time"

// User is an account of this service. Identity is established elsewhere;
// the ID is opaque.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}
