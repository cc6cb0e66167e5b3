package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// EscalationInput describes what an escalation should change beyond
// the automatic priority raise.
type EscalationInput struct {
	Reason       string
	DepartmentID *string
	AgentID      *string
	Notes        string
}

// EscalationService applies the escalation policy: optional
// reassignment plus a priority raise, recorded as one consolidated
// audit entry. Triggered by admins or by the breach scan.
type EscalationService struct {
	requests    repository.RequestRepository
	departments repository.DepartmentRepository
	users       repository.UserRepository
	activity    repository.ActivityLogRepository
	dispatcher  events.Dispatcher
	notifier    Notifier
	clk         clock.Clock
	logger      *zap.Logger
}

// EscalationDependencies bundles collaborators.
type EscalationDependencies struct {
	RequestRepo    repository.RequestRepository
	DepartmentRepo repository.DepartmentRepository
	UserRepo       repository.UserRepository
	ActivityRepo   repository.ActivityLogRepository
	Dispatcher     events.Dispatcher
	Notifier       Notifier
	Clock          clock.Clock
	Logger         *zap.Logger
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	return &EscalationService{
		requests:    deps.RequestRepo,
		departments: deps.DepartmentRepo,
		users:       deps.UserRepo,
		activity:    deps.ActivityRepo,
		dispatcher:  deps.Dispatcher,
		notifier:    deps.Notifier,
		clk:         deps.Clock,
		logger:      deps.Logger,
	}
}

// Escalate reassigns and raises priority. Requests below CRITICAL are
// raised straight to HIGH whatever their starting tier; a CRITICAL
// request keeps its priority and only the reassignment/notes apply.
func (s *EscalationService) Escalate(ctx context.Context, requestID string, input EscalationInput, actor Actor) (*domain.Request, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}

	details := []string{"Reason: " + input.Reason}
	var newOwnerDept, newOwnerAgent *string

	if input.DepartmentID != nil {
		dept, err := s.departments.GetByID(ctx, *input.DepartmentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("department", map[string]any{"department_id": *input.DepartmentID})
			}
			return nil, apperrors.MapError(err)
		}
		if !dept.IsActive {
			return nil, apperrors.NewInactiveTarget("department", map[string]any{"department_id": dept.ID})
		}
		request.DepartmentID = &dept.ID
		newOwnerDept = &dept.ID
		details = append(details, "Escalated to department: "+dept.Name)
	}

	if input.AgentID != nil {
		agent, err := s.users.GetByID(ctx, *input.AgentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": *input.AgentID})
			}
			return nil, apperrors.MapError(err)
		}
		request.AgentID = &agent.ID
		newOwnerAgent = &agent.ID
		details = append(details, "Escalated to agent: "+agent.Username)
	}

	if request.Priority != domain.PriorityCritical {
		oldPriority := request.Priority
		request.Priority = domain.PriorityHigh
		details = append(details, fmt.Sprintf("Priority increased: %s -> %s", oldPriority, domain.PriorityHigh))
	}

	if err := s.requests.Update(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}

	summary := strings.Join(details, ", ")
	s.recordEscalation(ctx, request.ID, actor, summary, input.Notes)
	s.publishEscalated(ctx, actor, request, input)

	s.notifier.NotifyUser(ctx, request.RequesterID, "Request Escalated",
		fmt.Sprintf("Your request %s has been escalated.", DescribeRequest(request)))
	if newOwnerAgent != nil {
		s.notifier.NotifyUser(ctx, *newOwnerAgent, "Escalated Request Assigned",
			fmt.Sprintf("Request %s has been escalated to you.", DescribeRequest(request)))
	} else if newOwnerDept != nil {
		s.notifier.NotifyDepartment(ctx, *newOwnerDept, "Escalated Request Assigned",
			fmt.Sprintf("Request %s has been escalated to your department.", DescribeRequest(request)))
	}

	s.logger.Info("request escalated",
		zap.String("request_id", request.ID),
		zap.String("ticket_code", request.TicketCode),
		zap.String("summary", summary))
	return request, nil
}

func (s *EscalationService) recordEscalation(ctx context.Context, requestID string, actor Actor, summary, notes string) {
	entry := &domain.ActivityLog{
		RequestID: requestID,
		Action:    domain.ActionEscalate,
		NewValue:  summary,
		Notes:     notes,
	}
	if actor.ID != "" {
		actorID := actor.ID
		entry.ActorID = &actorID
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logger.Error("record escalation", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *EscalationService) publishEscalated(ctx context.Context, actor Actor, request *domain.Request, input EscalationInput) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventRequestEscalated,
		RequestID: request.ID,
		Actor:     eventActor(actor),
		Timestamp: s.clk.Now(),
		Payload: events.RequestEscalatedPayload{
			Reason:       input.Reason,
			DepartmentID: input.DepartmentID,
			AgentID:      input.AgentID,
		},
	})
}
