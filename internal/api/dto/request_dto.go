package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// CreateRequestPayload payload.
type CreateRequestPayload struct {
	CategoryID       *string                `json:"category_id"`
	Title            string                 `json:"title"`
	Description      string                 `json:"description"`
	Priority         domain.RequestPriority `json:"priority"`
	RequiresApproval bool                   `json:"requires_approval"`
}

// UpdateStatusPayload payload.
type UpdateStatusPayload struct {
	Status domain.RequestStatus `json:"status"`
	Notes  string               `json:"notes"`
}

// UpdatePriorityPayload payload.
type UpdatePriorityPayload struct {
	Priority domain.RequestPriority `json:"priority"`
	Notes    string                 `json:"notes"`
}

// AssignDepartmentPayload payload.
type AssignDepartmentPayload struct {
	DepartmentID string `json:"department_id"`
}

// AssignAgentPayload payload.
type AssignAgentPayload struct {
	AgentID string `json:"agent_id"`
}

// ApprovalPayload carries approve/reject notes.
type ApprovalPayload struct {
	Notes string `json:"notes"`
}

// EscalatePayload payload.
type EscalatePayload struct {
	Reason       string  `json:"reason"`
	DepartmentID *string `json:"department_id"`
	AgentID      *string `json:"agent_id"`
	Notes        string  `json:"notes"`
}

// RequestListQuery captures query filters for list endpoints.
type RequestListQuery struct {
	Statuses    []domain.RequestStatus
	Priorities  []domain.RequestPriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Search      *string
	Page        int
	PageSize    int
}

// RequestSummary response.
type RequestSummary struct {
	ID           string                 `json:"id"`
	TicketCode   string                 `json:"ticket_code"`
	CategoryID   *string                `json:"category_id"`
	DepartmentID *string                `json:"department_id"`
	AgentID      *string                `json:"agent_id"`
	Title        string                 `json:"title"`
	Status       domain.RequestStatus   `json:"status"`
	Priority     domain.RequestPriority `json:"priority"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// RequestDetailResponse provides full request info.
type RequestDetailResponse struct {
	ID              string                 `json:"id"`
	TicketCode      string                 `json:"ticket_code"`
	RequesterID     string                 `json:"requester_id"`
	CategoryID      *string                `json:"category_id"`
	DepartmentID    *string                `json:"department_id"`
	AgentID         *string                `json:"agent_id"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Status          domain.RequestStatus   `json:"status"`
	Priority        domain.RequestPriority `json:"priority"`
	ResolutionNotes string                 `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	ResolvedAt      *time.Time             `json:"resolved_at"`
	ClosedAt        *time.Time             `json:"closed_at"`
	SLA             *SLATrackingResponse   `json:"sla,omitempty"`
}

// SLATrackingResponse mirrors the SLA tracking row for a request.
type SLATrackingResponse struct {
	SLAID           string    `json:"sla_id"`
	ResponseDueAt   time.Time `json:"response_due_at"`
	ResolutionDueAt time.Time `json:"resolution_due_at"`
	ResponseMet     bool      `json:"response_met"`
	ResolutionMet   bool      `json:"resolution_met"`
	Breached        bool      `json:"breached"`
}

// ActivityEntryResponse is a single timeline entry.
type ActivityEntryResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   *string   `json:"actor_id"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SLAStatisticsResponse aggregates compliance numbers.
type SLAStatisticsResponse struct {
	TotalTracked       int64 `json:"total_tracked"`
	ResponseBreaches   int64 `json:"response_breaches"`
	ResolutionBreaches int64 `json:"resolution_breaches"`
}

// FromRequest maps the aggregate to a summary.
func FromRequest(r *domain.Request) RequestSummary {
	return RequestSummary{
		ID:           r.ID,
		TicketCode:   r.TicketCode,
		CategoryID:   r.CategoryID,
		DepartmentID: r.DepartmentID,
		AgentID:      r.AgentID,
		Title:        r.Title,
		Status:       r.Status,
		Priority:     r.Priority,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// FromRequestDetail maps the aggregate and optional tracking to a detail view.
func FromRequestDetail(r *domain.Request, tracking *domain.SLATracking) RequestDetailResponse {
	resp := RequestDetailResponse{
		ID:              r.ID,
		TicketCode:      r.TicketCode,
		RequesterID:     r.RequesterID,
		CategoryID:      r.CategoryID,
		DepartmentID:    r.DepartmentID,
		AgentID:         r.AgentID,
		Title:           r.Title,
		Description:     r.Description,
		Status:          r.Status,
		Priority:        r.Priority,
		ResolutionNotes: r.ResolutionNotes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ResolvedAt:      r.ResolvedAt,
		ClosedAt:        r.ClosedAt,
	}
	if tracking != nil {
		resp.SLA = &SLATrackingResponse{
			SLAID:           tracking.SLAID,
			ResponseDueAt:   tracking.ResponseDueAt,
			ResolutionDueAt: tracking.ResolutionDueAt,
			ResponseMet:     tracking.ResponseMet,
			ResolutionMet:   tracking.ResolutionMet,
			Breached:        tracking.Breached,
		}
	}
	return resp
}

// FromActivity maps an audit entry.
func FromActivity(entry domain.ActivityLog) ActivityEntryResponse {
	return ActivityEntryResponse{
		ID:        entry.ID,
		Action:    string(entry.Action),
		ActorID:   entry.ActorID,
		OldValue:  entry.OldValue,
		NewValue:  entry.NewValue,
		Notes:     entry.Notes,
		CreatedAt: entry.CreatedAt,
	}
}
