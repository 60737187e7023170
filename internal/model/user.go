package model

import "time"

// Roles stored in users.role. Admins may delete any file; regular users
// manage only what they own.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User mirrors the 'users' table. Accounts are created at signup with
// approved=false and become usable once an external approval process flips
// the flag; login rejects unapproved accounts.
type User struct {
	ID           uint64    // users.id
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	Email        string    // users.email (unique, lowercased)
	DateOfBirth  string    // users.date_of_birth
	PasswordHash string    // users.password_hash (bcrypt)
	Role         string    // users.role ("user" or "admin")
	Approved     bool      // users.approved
	CreatedAt    time.Time // users.created_at
}
