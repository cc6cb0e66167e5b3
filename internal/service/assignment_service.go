package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

const routingCacheKeyPrefix = "servicedesk:routing:"
const routingCacheTTL = 10 * time.Minute

// AssignmentService handles department/agent assignment, including the
// category-based auto-assignment applied at request creation.
type AssignmentService struct {
	requests    repository.RequestRepository
	departments repository.DepartmentRepository
	users       repository.UserRepository
	mappings    repository.MappingRepository
	tasks       repository.TaskRepository
	slas        repository.SLARepository
	activity    repository.ActivityLogRepository
	dispatcher  events.Dispatcher
	notifier    Notifier
	clk         clock.Clock
	logger      *zap.Logger
	cache       *redis.Client
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	RequestRepo    repository.RequestRepository
	DepartmentRepo repository.DepartmentRepository
	UserRepo       repository.UserRepository
	MappingRepo    repository.MappingRepository
	TaskRepo       repository.TaskRepository
	SLARepo        repository.SLARepository
	ActivityRepo   repository.ActivityLogRepository
	Dispatcher     events.Dispatcher
	Notifier       Notifier
	Clock          clock.Clock
	Logger         *zap.Logger
	Cache          *redis.Client
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		requests:    deps.RequestRepo,
		departments: deps.DepartmentRepo,
		users:       deps.UserRepo,
		mappings:    deps.MappingRepo,
		tasks:       deps.TaskRepo,
		slas:        deps.SLARepo,
		activity:    deps.ActivityRepo,
		dispatcher:  deps.Dispatcher,
		notifier:    deps.Notifier,
		clk:         deps.Clock,
		logger:      deps.Logger,
		cache:       deps.Cache,
	}
}

// AssignDepartment sets the owning department and forces the request
// to ASSIGNED. Idempotent: assigning the same department again is a
// no-op, without error and without a duplicate audit entry.
func (s *AssignmentService) AssignDepartment(ctx context.Context, requestID, departmentID string, actor Actor) (*domain.Request, error) {
	dept, err := s.departments.GetByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("department", map[string]any{"department_id": departmentID})
		}
		return nil, apperrors.MapError(err)
	}
	if !dept.IsActive {
		return nil, apperrors.NewInactiveTarget("department", map[string]any{"department_id": departmentID})
	}

	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminal(request.Status) {
		return nil, apperrors.NewInvalidTransition(string(request.Status), string(domain.StatusAssigned))
	}
	if request.DepartmentID != nil && *request.DepartmentID == dept.ID && request.Status == domain.StatusAssigned {
		return request, nil
	}

	oldDept := ""
	if request.DepartmentID != nil {
		oldDept = *request.DepartmentID
	}
	oldStatus := request.Status
	request.DepartmentID = &dept.ID
	request.Status = domain.StatusAssigned
	if err := s.requests.Update(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordAssignment(ctx, request.ID, domain.ActionDepartmentAssign, actor, oldDept, dept.ID, "")
	s.publishAssigned(ctx, actor, request, oldStatus)
	s.notifier.NotifyDepartment(ctx, dept.ID, "New Request Assigned",
		fmt.Sprintf("Request %s has been assigned to your department.", DescribeRequest(request)))
	return request, nil
}

// AssignAgent hands the request to an agent and moves it to
// IN_PROGRESS, creating an agent task due one SLA resolution window
// from now.
func (s *AssignmentService) AssignAgent(ctx context.Context, requestID, agentID string, actor Actor) (*domain.Request, error) {
	request, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.DepartmentID == nil {
		return nil, apperrors.NewPreconditionFailed("request has no department", map[string]any{"request_id": requestID})
	}
	if domain.IsTerminal(request.Status) {
		return nil, apperrors.NewInvalidTransition(string(request.Status), string(domain.StatusInProgress))
	}

	agent, err := s.users.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.MapError(err)
	}
	if !agent.Active {
		return nil, apperrors.NewInactiveTarget("agent", map[string]any{"agent_id": agentID})
	}
	if agent.Role != domain.RoleAgent {
		return nil, apperrors.NewPreconditionFailed("user cannot act as agent", map[string]any{"agent_id": agentID, "role": agent.Role})
	}
	if agent.DepartmentID == nil || *agent.DepartmentID != *request.DepartmentID {
		return nil, apperrors.NewPreconditionFailed("agent outside request department", map[string]any{
			"agent_id":      agentID,
			"department_id": *request.DepartmentID,
		})
	}

	oldAgent := ""
	if request.AgentID != nil {
		oldAgent = *request.AgentID
	}
	oldStatus := request.Status
	request.AgentID = &agent.ID
	request.Status = domain.StatusInProgress
	if err := s.requests.Update(ctx, request); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordAssignment(ctx, request.ID, domain.ActionAgentAssign, actor, oldAgent, agent.ID, "")
	s.publishAssigned(ctx, actor, request, oldStatus)
	s.createAgentTask(ctx, request, agent)
	s.notifier.NotifyUser(ctx, agent.ID, "Request Assigned To You",
		fmt.Sprintf("Request %s is now in your queue.", DescribeRequest(request)))
	return request, nil
}

// AutoAssign consults the category routing table and assigns the
// responsible department. Any failure is logged and swallowed: the
// request stays in NEW for manual triage and creation always succeeds.
func (s *AssignmentService) AutoAssign(ctx context.Context, request *domain.Request) {
	if request.CategoryID == nil {
		s.logger.Debug("auto-assign skipped: no category", zap.String("request_id", request.ID))
		return
	}

	departmentID, err := s.resolveDepartment(ctx, *request.CategoryID)
	if err != nil {
		s.logger.Warn("auto-assign failed; request left for manual triage",
			zap.String("request_id", request.ID),
			zap.String("category_id", *request.CategoryID),
			zap.Error(err))
		return
	}

	dept, err := s.departments.GetByID(ctx, departmentID)
	if err != nil || !dept.IsActive {
		s.logger.Warn("auto-assign failed: mapped department unavailable",
			zap.String("request_id", request.ID),
			zap.String("department_id", departmentID),
			zap.Error(err))
		return
	}

	oldStatus := request.Status
	request.DepartmentID = &dept.ID
	request.Status = domain.StatusAssigned
	if err := s.requests.Update(ctx, request); err != nil {
		// restore in-memory state so the caller still sees reality
		request.DepartmentID = nil
		request.Status = oldStatus
		s.logger.Warn("auto-assign failed: could not persist assignment",
			zap.String("request_id", request.ID), zap.Error(err))
		return
	}

	s.recordAssignment(ctx, request.ID, domain.ActionDepartmentAssign, SystemActor(), "", dept.ID, "auto-assigned by category routing")
	s.publishAssigned(ctx, SystemActor(), request, oldStatus)
	s.notifier.NotifyDepartment(ctx, dept.ID, "New Request Assigned",
		fmt.Sprintf("Request %s has been assigned to your department.", DescribeRequest(request)))
	s.logger.Info("request auto-assigned",
		zap.String("request_id", request.ID),
		zap.String("department", dept.Name))
}

// resolveDepartment returns the department for a category, checking
// the Redis cache before Postgres.
func (s *AssignmentService) resolveDepartment(ctx context.Context, categoryID string) (string, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, routingCacheKeyPrefix+categoryID).Result(); err == nil && cached != "" {
			return cached, nil
		}
	}
	mapping, err := s.mappings.GetByCategoryID(ctx, categoryID)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Set(ctx, routingCacheKeyPrefix+categoryID, mapping.DepartmentID, routingCacheTTL)
	}
	return mapping.DepartmentID, nil
}

// createAgentTask derives a work item whose due date is one SLA
// resolution window out. SLA lookup failures fall back to fixed
// windows per tier, mirroring manual dispatch practice.
func (s *AssignmentService) createAgentTask(ctx context.Context, request *domain.Request, agent *domain.User) {
	now := s.clk.Now()
	due := now.Add(fallbackResolutionWindow(request.Priority))
	if sla, err := s.slas.GetByPriority(ctx, request.Priority); err == nil {
		due = now.Add(time.Duration(sla.ResolutionTimeHours) * time.Hour)
	}
	task := &domain.Task{
		RequestID: request.ID,
		AgentID:   agent.ID,
		Title:     fmt.Sprintf("Resolve %s", request.TicketCode),
		DueAt:     due,
		Status:    domain.TaskOpen,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		s.logger.Error("create agent task", zap.String("request_id", request.ID), zap.Error(err))
	}
}

func fallbackResolutionWindow(priority domain.RequestPriority) time.Duration {
	switch priority {
	case domain.PriorityCritical:
		return 4 * time.Hour
	case domain.PriorityHigh:
		return 24 * time.Hour
	case domain.PriorityMedium:
		return 72 * time.Hour
	default:
		return 168 * time.Hour
	}
}

func (s *AssignmentService) getRequest(ctx context.Context, requestID string) (*domain.Request, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("request", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	return request, nil
}

func (s *AssignmentService) recordAssignment(ctx context.Context, requestID string, action domain.ActivityAction, actor Actor, oldValue, newValue, notes string) {
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
		s.logger.Error("record assignment", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *AssignmentService) publishAssigned(ctx context.Context, actor Actor, request *domain.Request, oldStatus domain.RequestStatus) {
	if s.dispatcher == nil {
		return
	}
	now := s.clk.Now()
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventRequestAssigned,
		RequestID: request.ID,
		Actor:     eventActor(actor),
		Timestamp: now,
		Payload: events.RequestAssignedPayload{
			DepartmentID: request.DepartmentID,
			AgentID:      request.AgentID,
		},
	})
	if oldStatus != request.Status {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventRequestStatusChanged,
			RequestID: request.ID,
			Actor:     eventActor(actor),
			Timestamp: now,
			Payload: events.RequestStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: request.Status,
			},
		})
	}
}
