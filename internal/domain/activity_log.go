package domain

import "time"

// ActivityAction captures what kind of administrative action occurred.
type ActivityAction string

const (
	ActionStatusChange     ActivityAction = "STATUS_CHANGE"
	ActionDepartmentAssign ActivityAction = "DEPARTMENT_ASSIGN"
	ActionAgentAssign      ActivityAction = "AGENT_ASSIGN"
	ActionPriorityChange   ActivityAction = "PRIORITY_CHANGE"
	ActionEscalate         ActivityAction = "ESCALATE"
)

// ActivityLog is an append-only audit record. Entries are never
// mutated or deleted while the request exists.
type ActivityLog struct {
	ID        string
	RequestID string
	Action    ActivityAction
	ActorID   *string
	OldValue  string
	NewValue  string
	Notes     string
	CreatedAt time.Time
}
