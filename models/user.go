package models

import "time"

// Roles assignable to users.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an account row for JWT authentication and role-based access control.
type User struct {
	ID           int64     `json:"id"            db:"id"`
	Username     string    `json:"username"      db:"username"`
	PasswordHash string    `json:"-"             db:"password_hash"`
	Role         string    `json:"role"          db:"role"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
}
