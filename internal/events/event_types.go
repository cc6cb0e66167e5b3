package events

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated         EventType = "request_created"
	EventRequestStatusChanged   EventType = "request_status_changed"
	EventRequestAssigned        EventType = "request_assigned"
	EventRequestPriorityChanged EventType = "request_priority_changed"
	EventRequestEscalated       EventType = "request_escalated"
	EventSLABreached            EventType = "sla_breached"
)

// Actor encapsulates actor metadata for an event. A nil UserID means
// the system actor (scheduled automation).
type Actor struct {
	UserID *string         `json:"user_id,omitempty"`
	Role   domain.UserRole `json:"role,omitempty"`
}

// SystemActor identifies automated actions.
func SystemActor() Actor {
	id := domain.SystemActorID
	return Actor{UserID: &id, Role: domain.RoleAdmin}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	TicketCode string                 `json:"ticket_code"`
	CategoryID *string                `json:"category_id,omitempty"`
	Priority   domain.RequestPriority `json:"priority"`
	Title      string                 `json:"title"`
}

// RequestStatusChangedPayload payload.
type RequestStatusChangedPayload struct {
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
	Notes     string               `json:"notes,omitempty"`
}

// RequestAssignedPayload payload.
type RequestAssignedPayload struct {
	DepartmentID *string `json:"department_id,omitempty"`
	AgentID      *string `json:"agent_id,omitempty"`
}

// RequestPriorityChangedPayload payload.
type RequestPriorityChangedPayload struct {
	OldPriority domain.RequestPriority `json:"old_priority"`
	NewPriority domain.RequestPriority `json:"new_priority"`
}

// RequestEscalatedPayload payload.
type RequestEscalatedPayload struct {
	Reason       string  `json:"reason"`
	DepartmentID *string `json:"department_id,omitempty"`
	AgentID      *string `json:"agent_id,omitempty"`
}

// SLABreachedPayload payload. Kind is "response" or "resolution".
type SLABreachedPayload struct {
	TrackingID string    `json:"tracking_id"`
	Kind       string    `json:"kind"`
	DueAt      time.Time `json:"due_at"`
}
