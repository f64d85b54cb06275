package identity

import "time"

// User is a registered swarm operator.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// Credentials carries a login or registration attempt.
type Credentials struct {
	Email    string
	Password string
}
