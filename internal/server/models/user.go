// Package models defines server-side data models persisted in the database.
package models

import "time"

// MaxUserNameLength bounds usernames; the users.username column is
// VARCHAR(50).
const MaxUserNameLength = 50

// User is a stored credential: a unique username and its bcrypt digest.
type User struct {
	ID           int64
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
}
