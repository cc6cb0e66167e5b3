package domain

import "time"

// ServiceCategory classifies incoming requests for routing.
type ServiceCategory struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CategoryDepartmentMapping routes a category to its responsible
// department. At most one active mapping per category.
type CategoryDepartmentMapping struct {
	ID           string
	CategoryID   string
	DepartmentID string
	CreatedAt    time.Time
}
