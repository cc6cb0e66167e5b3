package domain

import "time"

// RequestStatus enumerates lifecycle states for service requests.
type RequestStatus string

const (
	StatusNew             RequestStatus = "NEW"
	StatusPendingApproval RequestStatus = "PENDING_APPROVAL"
	StatusApproved        RequestStatus = "APPROVED"
	StatusRejected        RequestStatus = "REJECTED"
	StatusAssigned        RequestStatus = "ASSIGNED"
	StatusInProgress      RequestStatus = "IN_PROGRESS"
	StatusWaitingForUser  RequestStatus = "WAITING_FOR_USER"
	StatusResolved        RequestStatus = "RESOLVED"
	StatusClosed          RequestStatus = "CLOSED"
	StatusCancelled       RequestStatus = "CANCELLED"
)

// RequestPriority enumerates SLA urgency tiers.
type RequestPriority string

const (
	PriorityLow      RequestPriority = "LOW"
	PriorityMedium   RequestPriority = "MEDIUM"
	PriorityHigh     RequestPriority = "HIGH"
	PriorityCritical RequestPriority = "CRITICAL"
)

// ValidPriority reports whether the value is a known tier.
func ValidPriority(p RequestPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Request is the aggregate for service requests.
type Request struct {
	ID              string
	TicketCode      string
	RequesterID     string
	CategoryID      *string
	DepartmentID    *string
	AgentID         *string
	Title           string
	Description     string
	Status          RequestStatus
	Priority        RequestPriority
	ResolutionNotes string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
}

var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusNew:             {StatusPendingApproval, StatusAssigned, StatusCancelled},
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:        {StatusAssigned, StatusCancelled},
	StatusAssigned:        {StatusInProgress, StatusCancelled},
	StatusInProgress:      {StatusWaitingForUser, StatusResolved, StatusCancelled},
	StatusWaitingForUser:  {StatusInProgress, StatusResolved, StatusCancelled},
	StatusResolved:        {StatusClosed, StatusCancelled},
	StatusClosed:          {},
	StatusCancelled:       {},
	StatusRejected:        {},
}

// CanTransition reports whether next is reachable from current.
func CanTransition(current, next RequestStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(status RequestStatus) bool {
	return len(allowedTransitions[status]) == 0
}
