package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

type escalationFixture struct {
	svc         *EscalationService
	requests    *fakeRequestRepo
	departments *fakeDepartmentRepo
	users       *fakeUserRepo
	activity    *fakeActivityRepo
	notifier    *recordingNotifier
	escalated   *capturedEvents
}

func newEscalationFixture(t *testing.T) *escalationFixture {
	t.Helper()
	f := &escalationFixture{
		requests:    newFakeRequestRepo(),
		departments: newFakeDepartmentRepo(),
		users:       newFakeUserRepo(),
		activity:    newFakeActivityRepo(),
		notifier:    newRecordingNotifier(),
		escalated:   &capturedEvents{},
	}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventRequestEscalated, func(ctx context.Context, e events.Event) error {
		f.escalated.all = append(f.escalated.all, e)
		return nil
	})
	f.svc = NewEscalationService(EscalationDependencies{
		RequestRepo:    f.requests,
		DepartmentRepo: f.departments,
		UserRepo:       f.users,
		ActivityRepo:   f.activity,
		Dispatcher:     dispatcher,
		Notifier:       f.notifier,
		Clock:          clock.NewMock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)),
		Logger:         zap.NewNop(),
	})
	return f
}

func (f *escalationFixture) seedRequest(t *testing.T, priority domain.RequestPriority) *domain.Request {
	t.Helper()
	request := &domain.Request{
		TicketCode:  "SR-20240315-0001",
		RequesterID: "requester-1",
		Title:       "VPN unreachable",
		Status:      domain.StatusInProgress,
		Priority:    priority,
	}
	require.NoError(t, f.requests.Create(context.Background(), request))
	return request
}

func TestEscalateRaisesLowStraightToHigh(t *testing.T) {
	f := newEscalationFixture(t)
	request := f.seedRequest(t, domain.PriorityLow)

	updated, err := f.svc.Escalate(context.Background(), request.ID,
		EscalationInput{Reason: "stalled"}, Actor{ID: "mgr-1", Role: domain.RoleManager})
	require.NoError(t, err)

	assert.Equal(t, domain.PriorityHigh, updated.Priority)

	entries := f.activity.byAction(domain.ActionEscalate)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].NewValue, "Reason: stalled")
	assert.Contains(t, entries[0].NewValue, "Priority increased: LOW -> HIGH")

	// the requester always hears about escalations
	require.NotEmpty(t, f.notifier.users)
	assert.Equal(t, "requester-1", f.notifier.users[0].Target)
	assert.Len(t, f.escalated.all, 1)
}

func TestEscalateMediumToHigh(t *testing.T) {
	f := newEscalationFixture(t)
	request := f.seedRequest(t, domain.PriorityMedium)

	updated, err := f.svc.Escalate(context.Background(), request.ID,
		EscalationInput{Reason: "sla pressure"}, SystemActor())
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)
}

func TestEscalateCriticalKeepsPriority(t *testing.T) {
	f := newEscalationFixture(t)
	request := f.seedRequest(t, domain.PriorityCritical)

	updated, err := f.svc.Escalate(context.Background(), request.ID,
		EscalationInput{Reason: "still down"}, SystemActor())
	require.NoError(t, err)

	assert.Equal(t, domain.PriorityCritical, updated.Priority)
	entries := f.activity.byAction(domain.ActionEscalate)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].NewValue, "Priority increased")
}

func TestEscalateReassignsDepartmentAndAgent(t *testing.T) {
	f := newEscalationFixture(t)
	ctx := context.Background()
	dept := &domain.Department{Name: "Tier 2", IsActive: true}
	require.NoError(t, f.departments.Create(ctx, dept))
	senior := &domain.User{Username: "senior", Role: domain.RoleAgent, DepartmentID: &dept.ID, Active: true}
	require.NoError(t, f.users.Create(ctx, senior))
	request := f.seedRequest(t, domain.PriorityMedium)

	updated, err := f.svc.Escalate(ctx, request.ID, EscalationInput{
		Reason:       "needs tier 2",
		DepartmentID: &dept.ID,
		AgentID:      &senior.ID,
	}, Actor{ID: "mgr-1"})
	require.NoError(t, err)

	require.NotNil(t, updated.DepartmentID)
	assert.Equal(t, dept.ID, *updated.DepartmentID)
	require.NotNil(t, updated.AgentID)
	assert.Equal(t, senior.ID, *updated.AgentID)

	// requester plus the newly assigned agent are notified
	targets := make([]string, 0, len(f.notifier.users))
	for _, note := range f.notifier.users {
		targets = append(targets, note.Target)
	}
	assert.Contains(t, targets, "requester-1")
	assert.Contains(t, targets, senior.ID)
}

func TestEscalateToInactiveDepartmentFails(t *testing.T) {
	f := newEscalationFixture(t)
	ctx := context.Background()
	dept := &domain.Department{Name: "Disbanded", IsActive: false}
	require.NoError(t, f.departments.Create(ctx, dept))
	request := f.seedRequest(t, domain.PriorityMedium)

	_, err := f.svc.Escalate(ctx, request.ID, EscalationInput{
		Reason:       "x",
		DepartmentID: &dept.ID,
	}, Actor{ID: "mgr-1"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInactiveTarget))
}

func TestEscalateUnknownRequest(t *testing.T) {
	f := newEscalationFixture(t)

	_, err := f.svc.Escalate(context.Background(), "ghost", EscalationInput{Reason: "x"}, SystemActor())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
