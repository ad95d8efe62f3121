package users

import "time"

// User represents a host account. Each user holds one role reference plus
// optional extra individual permissions managed in the permission store.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	RoleID       int64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
