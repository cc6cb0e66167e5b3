package domain

import "time"

// TaskStatus enumerates agent task states.
type TaskStatus string

const (
	TaskOpen TaskStatus = "OPEN"
	TaskDone TaskStatus = "DONE"
)

// Task is the work item created for an agent when a request is
// assigned to them. Due date derives from the request's SLA.
type Task struct {
	ID        string
	RequestID string
	AgentID   string
	Title     string
	DueAt     time.Time
	Status    TaskStatus
	CreatedAt time.Time
}
