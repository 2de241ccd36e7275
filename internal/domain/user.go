package domain

import "time"

// User represents a registered account holder.
type User struct {
	Username     string
	PasswordHash string
	Age          int
	Balance      int64
	CreatedAt    time.Time
}
