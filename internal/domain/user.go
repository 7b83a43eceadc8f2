package domain

import "time"

// User is the domain entity for a user account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Ref returns the denormalized view embedded in tasks.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}

// Public returns a copy with the credential hash removed.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
