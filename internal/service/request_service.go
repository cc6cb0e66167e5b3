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

// Actor identifies who performs an operation.
type Actor struct {
	ID   string
	Role domain.UserRole
}

// SystemActor is used by scheduled automation (breach scan, auto-close).
func SystemActor() Actor {
	return Actor{ID: domain.SystemActorID, Role: domain.RoleAdmin}
}

// AutoAssigner routes a freshly created request. Must never fail the
// caller; a broken mapping table must not block ticket intake.
type AutoAssigner interface {
	AutoAssign(ctx context.Context, request *domain.Request)
}

// SLAStarter begins deadline tracking for a new request. Best effort.
type SLAStarter interface {
	StartTracking(ctx context.Context, request *domain.Request)
}

// RequestService owns the request state machine: it is the only place
// that mutates request status.
type RequestService struct {
	requests   repository.RequestRepository
	categories repository.CategoryRepository
	activity   repository.ActivityLogRepository
	codes      *TicketCodeGenerator
	dispatcher events.Dispatcher
	clk        clock.Clock
	logger     *zap.Logger

	autoAssigner AutoAssigner
	slaStarter   SLAStarter
}

// RequestDependencies bundles collaborators for the service.
type RequestDependencies struct {
	RequestRepo  repository.RequestRepository
	CategoryRepo repository.CategoryRepository
	ActivityRepo repository.ActivityLogRepository
	Codes        *TicketCodeGenerator
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
	AutoAssigner AutoAssigner
	SLAStarter   SLAStarter
}

// RequestCreateInput describes request creation payload.
type RequestCreateInput struct {
	CategoryID       *string
	Title            string
	Description      string
	Priority         domain.RequestPriority
	RequiresApproval bool
}

// NewRequestService constructs the service.
func NewRequestService(deps RequestDependencies) *RequestService {
	return &RequestService{
		requests:     deps.RequestRepo,
		categories:   deps.CategoryRepo,
		activity:     deps.ActivityRepo,
		codes:        deps.Codes,
		dispatcher:   deps.Dispatcher,
		clk:          deps.Clock,
		logger:       deps.Logger,
		autoAssigner: deps.AutoAssigner,
		slaStarter:   deps.SLAStarter,
	}
}

// CreateRequest registers a new service request. Auto-assignment and
// SLA tracking run best-effort after the save: their failure leaves
// the request in NEW / untracked but never surfaces to the caller.
func (s *RequestService) CreateRequest(ctx context.Context, requesterID string, input RequestCreateInput) (*domain.Request, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	if input.CategoryID != nil {
		category, err := s.categories.GetByID(ctx, *input.CategoryID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("category", map[string]any{"category_id": *input.CategoryID})
			}
			return nil, apperrors.MapError(err)
		}
		if !category.IsActive {
			return nil, apperrors.NewInactiveTarget("category", map[string]any{"category_id": category.ID})
		}
	}

	status := domain.StatusNew
	if input.RequiresApproval {
		status = domain.StatusPendingApproval
	}

	request := &domain.Request{
		TicketCode:  s.codes.Next(ctx, s.clk.Now()),
		RequesterID: requesterID,
		CategoryID:  input.CategoryID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Priority:    priority,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestCreated,
		RequestID: request.ID,
		Actor:     userActor(requesterID),
		Payload: events.RequestCreatedPayload{
			TicketCode: request.TicketCode,
			CategoryID: request.CategoryID,
			Priority:   request.Priority,
			Title:      request.Title,
		},
	})

	if s.autoAssigner != nil && request.Status == domain.StatusNew {
		s.autoAssigner.AutoAssign(ctx, request)
	}
	if s.slaStarter != nil {
		s.slaStarter.StartTracking(ctx, request)
	}
	return request, nil
}

// Transition validates and applies a status change, stamping
// resolution/closure timestamps, appending an audit entry, and
// emitting a status-changed event.
func (s *RequestService) Transition(ctx context.Context, requestID string, target domain.RequestStatus, actor Actor, notes string) (*domain.Request, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.applyTransition(ctx, request, target, actor, notes); err != nil {
		return nil, err
	}
	return request, nil
}

// applyTransition mutates an already-loaded request. Shared between
// Transition and the assignment paths that force a status.
func (s *RequestService) applyTransition(ctx context.Context, request *domain.Request, target domain.RequestStatus, actor Actor, notes string) error {
	if !domain.CanTransition(request.Status, target) {
		return apperrors.NewInvalidTransition(string(request.Status), string(target))
	}
	if target == domain.StatusAssigned && request.DepartmentID == nil {
		return apperrors.NewPreconditionFailed("request has no department", map[string]any{"request_id": request.ID})
	}
	if target == domain.StatusInProgress && request.AgentID == nil {
		return apperrors.NewPreconditionFailed("request has no agent", map[string]any{"request_id": request.ID})
	}

	now := s.clk.Now()
	oldStatus := request.Status
	request.Status = target
	switch target {
	case domain.StatusResolved:
		request.ResolvedAt = &now
		if notes != "" {
			request.ResolutionNotes = notes
		}
	case domain.StatusClosed, domain.StatusCancelled, domain.StatusRejected:
		request.ClosedAt = &now
	}

	if err := s.requests.Update(ctx, request); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("request", map[string]any{"request_id": request.ID})
		}
		return apperrors.MapError(err)
	}

	s.recordActivity(ctx, request.ID, domain.ActionStatusChange, actor, string(oldStatus), string(target), notes)
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestStatusChanged,
		RequestID: request.ID,
		Actor:     eventActor(actor),
		Payload: events.RequestStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: target,
			Notes:     notes,
		},
	})
	return nil
}

// Approve moves a pending request to APPROVED.
func (s *RequestService) Approve(ctx context.Context, requestID string, actor Actor, notes string) (*domain.Request, error) {
	return s.Transition(ctx, requestID, domain.StatusApproved, actor, notes)
}

// Reject moves a pending request to REJECTED, recording the reason.
func (s *RequestService) Reject(ctx context.Context, requestID string, actor Actor, reason string) (*domain.Request, error) {
	return s.Transition(ctx, requestID, domain.StatusRejected, actor, reason)
}

// UpdatePriority changes the priority tier. Existing SLA due
// timestamps are deliberately left untouched.
func (s *RequestService) UpdatePriority(ctx context.Context, requestID string, priority domain.RequestPriority, actor Actor, notes string) (*domain.Request, error) {
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	oldPriority := request.Priority
	if oldPriority == priority {
		return request, nil
	}
	request.Priority = priority
	if err := s.requests.Update(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordActivity(ctx, request.ID, domain.ActionPriorityChange, actor, string(oldPriority), string(priority), notes)
	s.publishEvent(ctx, events.Event{
		Type:      events.EventRequestPriorityChanged,
		RequestID: request.ID,
		Actor:     eventActor(actor),
		Payload: events.RequestPriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: priority,
		},
	})
	return request, nil
}

// Delete permanently removes a request; tracking, task, and activity
// rows cascade.
func (s *RequestService) Delete(ctx context.Context, requestID string) error {
	if err := s.requests.Delete(ctx, requestID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("request", map[string]any{"request_id": requestID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// GetByID fetches a single request.
func (s *RequestService) GetByID(ctx context.Context, requestID string) (*domain.Request, error) {
	return s.getRequest(ctx, requestID)
}

// GetByTicketCode fetches a request by its human-readable code.
func (s *RequestService) GetByTicketCode(ctx context.Context, code string) (*domain.Request, error) {
	request, err := s.requests.GetByTicketCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("request", map[string]any{"ticket_code": code})
		}
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

// List returns requests matching the filter.
func (s *RequestService) List(ctx context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	result, err := s.requests.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return result, nil
}

// Timeline returns audit entries for a request, newest first.
func (s *RequestService) Timeline(ctx context.Context, requestID string, limit, offset int) ([]domain.ActivityLog, error) {
	if _, err := s.getRequest(ctx, requestID); err != nil {
		return nil, err
	}
	entries, err := s.activity.ListByRequest(ctx, requestID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *RequestService) getRequest(ctx context.Context, requestID string) (*domain.Request, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

// recordActivity appends an audit entry. Audit failures are logged,
// not propagated: the transition itself has already been applied.
func (s *RequestService) recordActivity(ctx context.Context, requestID string, action domain.ActivityAction, actor Actor, oldValue, newValue, notes string) {
	entry := &domain.ActivityLog{
		RequestID: requestID,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		Notes:     notes,
	}
	if actor.ID != "" {
		actorID := actor.ID
		entry.ActorID = &actorID
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logger.Error("record activity", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *RequestService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clk.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func userActor(userID string) events.Actor {
	return events.Actor{UserID: &userID, Role: domain.RoleUser}
}

func eventActor(actor Actor) events.Actor {
	if actor.ID == "" {
		return events.SystemActor()
	}
	id := actor.ID
	return events.Actor{UserID: &id, Role: actor.Role}
}

// DescribeRequest renders a short human-readable reference used in
// notification bodies.
func DescribeRequest(request *domain.Request) string {
	return fmt.Sprintf("%s (%s)", request.TicketCode, request.Title)
}
