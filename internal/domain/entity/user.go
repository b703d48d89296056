package entity

import "time"

// User is an account owner. Drafts and customers are scoped per user.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash, never plaintext in the domain after persisting
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
