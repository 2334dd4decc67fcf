package entity

import "time"

type User struct {
	ID               string    `db:"id"`
	Username         string    `db:"username"`
	Password         string    `db:"password"`
	OrganizationName string    `db:"organization_name"`
	Location         string    `db:"location"`
	Size             int       `db:"size"`
	Verification     string    `db:"verification"`
	Status           string    `db:"status"`
	LastLoginAt      time.Time `db:"last_login_at"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type UserLoginData struct {
	ID           string
	Username     string
	Organization string
}

const (
	UserStatusActive  = "active"
	UserStatusBlocked = "blocked"

	VerificationPending  = "pending"
	VerificationVerified = "verified"
)
