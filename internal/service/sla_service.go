package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// Escalator raises a request's urgency after a breach.
type Escalator interface {
	Escalate(ctx context.Context, requestID string, input EscalationInput, actor Actor) (*domain.Request, error)
}

// SLAService owns deadline tracking: it creates tracking rows at
// request creation, records milestones on status changes, and scans
// for breaches.
type SLAService struct {
	slas       repository.SLARepository
	tracking   repository.SLATrackingRepository
	requests   repository.RequestRepository
	dispatcher events.Dispatcher
	notifier   Notifier
	escalator  Escalator
	clk        clock.Clock
	logger     *zap.Logger
	metrics    *observability.Metrics

	warningWindow time.Duration
}

// SLADependencies bundles collaborators.
type SLADependencies struct {
	SLARepo       repository.SLARepository
	TrackingRepo  repository.SLATrackingRepository
	RequestRepo   repository.RequestRepository
	Dispatcher    events.Dispatcher
	Notifier      Notifier
	Escalator     Escalator
	Clock         clock.Clock
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	WarningWindow time.Duration
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	window := deps.WarningWindow
	if window <= 0 {
		window = time.Hour
	}
	return &SLAService{
		slas:          deps.SLARepo,
		tracking:      deps.TrackingRepo,
		requests:      deps.RequestRepo,
		dispatcher:    deps.Dispatcher,
		notifier:      deps.Notifier,
		escalator:     deps.Escalator,
		clk:           deps.Clock,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		warningWindow: window,
	}
}

// Lookup returns the SLA definition for a priority tier.
func (s *SLAService) Lookup(ctx context.Context, priority domain.RequestPriority) (*domain.SLADefinition, error) {
	sla, err := s.slas.GetByPriority(ctx, priority)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("sla definition", map[string]any{"priority": priority})
		}
		return nil, apperrors.MapError(err)
	}
	return sla, nil
}

// StartTracking creates the compliance row for a new request. Due
// timestamps are computed once, here, and never recomputed even if
// the priority changes later. A missing SLA definition leaves the
// request untracked; creation is never blocked.
func (s *SLAService) StartTracking(ctx context.Context, request *domain.Request) {
	sla, err := s.slas.GetByPriority(ctx, request.Priority)
	if err != nil {
		s.logger.Warn("sla tracking skipped",
			zap.String("request_id", request.ID),
			zap.String("priority", string(request.Priority)),
			zap.Error(err))
		return
	}

	now := s.clk.Now()
	tracking := &domain.SLATracking{
		RequestID:       request.ID,
		SLAID:           sla.ID,
		ResponseDueAt:   now.Add(time.Duration(sla.ResponseTimeHours) * time.Hour),
		ResolutionDueAt: now.Add(time.Duration(sla.ResolutionTimeHours) * time.Hour),
	}
	if err := s.tracking.Create(ctx, tracking); err != nil {
		s.logger.Error("sla tracking create failed",
			zap.String("request_id", request.ID),
			zap.Error(err))
		return
	}
	s.logger.Info("sla tracking started",
		zap.String("request_id", request.ID),
		zap.Time("resolution_due_at", tracking.ResolutionDueAt))
}

// RegisterHandlers subscribes milestone recording to status changes.
func (s *SLAService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventRequestStatusChanged, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.RequestStatusChangedPayload)
		if !ok {
			return nil
		}
		s.OnStatusChanged(ctx, event.RequestID, payload.NewStatus)
		return nil
	})
}

// OnStatusChanged records milestones: first agent engagement satisfies
// the response SLA and entry to RESOLVED satisfies the resolution SLA,
// regardless of how long either took. Punctuality is the scan's
// concern, not this method's.
func (s *SLAService) OnStatusChanged(ctx context.Context, requestID string, newStatus domain.RequestStatus) {
	tracking, err := s.tracking.GetByRequestID(ctx, requestID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("sla tracking lookup failed", zap.String("request_id", requestID), zap.Error(err))
		}
		return
	}

	if newStatus == domain.StatusInProgress && !tracking.ResponseMet {
		if err := s.tracking.SetResponseMet(ctx, tracking.ID); err != nil {
			s.logger.Error("sla response milestone", zap.String("request_id", requestID), zap.Error(err))
			return
		}
		s.logger.Info("response sla met", zap.String("request_id", requestID))
	}
	if newStatus == domain.StatusResolved && !tracking.ResolutionMet {
		if err := s.tracking.SetResolutionMet(ctx, tracking.ID); err != nil {
			s.logger.Error("sla resolution milestone", zap.String("request_id", requestID), zap.Error(err))
			return
		}
		s.logger.Info("resolution sla met", zap.String("request_id", requestID))
	}
}

// ScanForBreaches marks overdue tracking rows, notifies management,
// and escalates. The conditional MarkBreached update makes the breach
// action exactly-once per row even under concurrent scans. Advance
// warnings repeat every cycle until the request is resolved.
func (s *SLAService) ScanForBreaches(ctx context.Context) error {
	now := s.clk.Now()

	responseOverdue, err := s.tracking.ListResponseBreaches(ctx, now)
	if err != nil {
		return apperrors.MapError(err)
	}
	for i := range responseOverdue {
		s.handleBreach(ctx, &responseOverdue[i], "response")
	}

	resolutionOverdue, err := s.tracking.ListResolutionBreaches(ctx, now)
	if err != nil {
		return apperrors.MapError(err)
	}
	for i := range resolutionOverdue {
		s.handleBreach(ctx, &resolutionOverdue[i], "resolution")
	}

	approaching, err := s.tracking.ListResolutionDueBetween(ctx, now, now.Add(s.warningWindow))
	if err != nil {
		return apperrors.MapError(err)
	}
	for i := range approaching {
		s.sendDeadlineWarning(ctx, &approaching[i])
	}

	return nil
}

func (s *SLAService) handleBreach(ctx context.Context, tracking *domain.SLATracking, kind string) {
	flipped, err := s.tracking.MarkBreached(ctx, tracking.ID)
	if err != nil {
		s.logger.Error("mark breached", zap.String("tracking_id", tracking.ID), zap.Error(err))
		return
	}
	if !flipped {
		// another scan got here first
		return
	}
	s.metrics.RecordBreach()

	request, err := s.requests.GetByID(ctx, tracking.RequestID)
	if err != nil {
		s.logger.Error("breached request lookup", zap.String("request_id", tracking.RequestID), zap.Error(err))
		return
	}

	s.logger.Warn("sla breached",
		zap.String("request_id", request.ID),
		zap.String("ticket_code", request.TicketCode),
		zap.String("kind", kind))

	s.notifier.NotifyManagement(ctx, "SLA Breach Alert",
		fmt.Sprintf("Request %s has breached its %s SLA. Immediate attention required.", DescribeRequest(request), kind))

	dueAt := tracking.ResolutionDueAt
	if kind == "response" {
		dueAt = tracking.ResponseDueAt
	}
	s.publishBreach(ctx, request.ID, tracking.ID, kind, dueAt)

	if s.escalator != nil {
		if _, err := s.escalator.Escalate(ctx, request.ID, EscalationInput{
			Reason: fmt.Sprintf("%s SLA breached", kind),
		}, SystemActor()); err != nil {
			s.logger.Error("breach escalation failed", zap.String("request_id", request.ID), zap.Error(err))
		}
	}
}

func (s *SLAService) sendDeadlineWarning(ctx context.Context, tracking *domain.SLATracking) {
	request, err := s.requests.GetByID(ctx, tracking.RequestID)
	if err != nil {
		s.logger.Error("warning request lookup", zap.String("request_id", tracking.RequestID), zap.Error(err))
		return
	}
	message := fmt.Sprintf("Request %s is approaching its SLA deadline at %s.",
		DescribeRequest(request), tracking.ResolutionDueAt.Format(time.RFC3339))
	if request.AgentID != nil {
		s.notifier.NotifyUser(ctx, *request.AgentID, "SLA Warning", message)
		return
	}
	if request.DepartmentID != nil {
		s.notifier.NotifyDepartment(ctx, *request.DepartmentID, "SLA Warning", message)
	}
}

// Statistics summarizes compliance across all tracked requests.
func (s *SLAService) Statistics(ctx context.Context) (*domain.SLAStatistics, error) {
	stats, err := s.tracking.Statistics(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

// TrackingForRequest exposes the compliance row for API consumers.
func (s *SLAService) TrackingForRequest(ctx context.Context, requestID string) (*domain.SLATracking, error) {
	tracking, err := s.tracking.GetByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("sla tracking", map[string]any{"request_id": requestID})
		}
		return nil, apperrors.MapError(err)
	}
	return tracking, nil
}

func (s *SLAService) publishBreach(ctx context.Context, requestID, trackingID, kind string, dueAt time.Time) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSLABreached,
		RequestID: requestID,
		Actor:     events.SystemActor(),
		Timestamp: s.clk.Now(),
		Payload: events.SLABreachedPayload{
			TrackingID: trackingID,
			Kind:       kind,
			DueAt:      dueAt,
		},
	})
}
