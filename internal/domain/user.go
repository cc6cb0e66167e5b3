package domain

import "time"

// UserRole enumerates actor roles.
type UserRole string

const (
	RoleUser    UserRole = "USER"
	RoleAgent   UserRole = "AGENT"
	RoleManager UserRole = "MANAGER"
	RoleAdmin   UserRole = "ADMIN"
)

// SystemActorID identifies automated actions such as breach escalation.
const SystemActorID = "system"

// User models requesters, agents, and administrators alike.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         UserRole
	DepartmentID *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
