// Package identity is the user directory the engine consults to translate
// unknown users into not-found failures. It owns account records, never
// policy tuples.
package identity

import "time"

// User represents a directory account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
