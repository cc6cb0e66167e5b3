package service

import (
	"context"
	"regexp"
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

type requestFixture struct {
	svc      *RequestService
	requests *fakeRequestRepo
	category *fakeCategoryRepo
	activity *fakeActivityRepo
	clk      *clock.Mock
	events   *capturedEvents
}

type capturedEvents struct {
	all []events.Event
}

func (c *capturedEvents) byType(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range c.all {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	f := &requestFixture{
		requests: newFakeRequestRepo(),
		category: newFakeCategoryRepo(),
		activity: newFakeActivityRepo(),
		clk:      clock.NewMock(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)),
		events:   &capturedEvents{},
	}
	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventRequestCreated,
		events.EventRequestStatusChanged,
		events.EventRequestPriorityChanged,
	} {
		eventType := et
		dispatcher.Subscribe(eventType, func(ctx context.Context, e events.Event) error {
			f.events.all = append(f.events.all, e)
			return nil
		})
	}
	f.svc = NewRequestService(RequestDependencies{
		RequestRepo:  f.requests,
		CategoryRepo: f.category,
		ActivityRepo: f.activity,
		Codes:        NewTicketCodeGenerator(nil),
		Dispatcher:   dispatcher,
		Clock:        f.clk,
		Logger:       zap.NewNop(),
	})
	return f
}

func (f *requestFixture) mustCreate(t *testing.T, input RequestCreateInput) *domain.Request {
	t.Helper()
	request, err := f.svc.CreateRequest(context.Background(), "requester-1", input)
	require.NoError(t, err)
	return request
}

func TestCreateRequestDefaults(t *testing.T) {
	f := newRequestFixture(t)

	request := f.mustCreate(t, RequestCreateInput{Title: "  Laptop broken  ", Description: "screen dead"})

	assert.Equal(t, domain.StatusNew, request.Status)
	assert.Equal(t, domain.PriorityMedium, request.Priority)
	assert.Equal(t, "Laptop broken", request.Title)
	assert.Regexp(t, regexp.MustCompile(`^SR-20240315-\d{4}$`), request.TicketCode)
	assert.Len(t, f.events.byType(events.EventRequestCreated), 1)
}

func TestCreateRequestRequiresApproval(t *testing.T) {
	f := newRequestFixture(t)

	request := f.mustCreate(t, RequestCreateInput{Title: "New hire access", RequiresApproval: true})
	assert.Equal(t, domain.StatusPendingApproval, request.Status)
}

func TestCreateRequestValidation(t *testing.T) {
	f := newRequestFixture(t)

	_, err := f.svc.CreateRequest(context.Background(), "requester-1", RequestCreateInput{Title: "   "})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))

	_, err = f.svc.CreateRequest(context.Background(), "requester-1", RequestCreateInput{Title: "x", Priority: "URGENT"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
}

func TestCreateRequestRejectsUnknownCategory(t *testing.T) {
	f := newRequestFixture(t)
	missing := "no-such-category"

	_, err := f.svc.CreateRequest(context.Background(), "requester-1", RequestCreateInput{Title: "x", CategoryID: &missing})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCreateRequestRejectsInactiveCategory(t *testing.T) {
	f := newRequestFixture(t)
	category := &domain.ServiceCategory{Name: "Hardware", IsActive: false}
	require.NoError(t, f.category.Create(context.Background(), category))

	_, err := f.svc.CreateRequest(context.Background(), "requester-1", RequestCreateInput{Title: "x", CategoryID: &category.ID})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInactiveTarget))
}

func TestTransitionStampsResolvedAt(t *testing.T) {
	f := newRequestFixture(t)
	request := f.mustCreate(t, RequestCreateInput{Title: "x"})
	dept := "dept-1"
	agent := "agent-1"
	request.DepartmentID = &dept
	request.AgentID = &agent
	require.NoError(t, f.requests.Update(context.Background(), request))

	actor := Actor{ID: "agent-1", Role: domain.RoleAgent}
	_, err := f.svc.Transition(context.Background(), request.ID, domain.StatusAssigned, actor, "")
	require.NoError(t, err)
	_, err = f.svc.Transition(context.Background(), request.ID, domain.StatusInProgress, actor, "")
	require.NoError(t, err)

	f.clk.Advance(2 * time.Hour)
	resolved, err := f.svc.Transition(context.Background(), request.ID, domain.StatusResolved, actor, "replaced the PSU")
	require.NoError(t, err)

	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, f.clk.Now(), *resolved.ResolvedAt)
	assert.Equal(t, "replaced the PSU", resolved.ResolutionNotes)
	assert.Nil(t, resolved.ClosedAt)

	closed, err := f.svc.Transition(context.Background(), request.ID, domain.StatusClosed, actor, "")
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	f := newRequestFixture(t)
	request := f.mustCreate(t, RequestCreateInput{Title: "x"})

	_, err := f.svc.Transition(context.Background(), request.ID, domain.StatusResolved, Actor{ID: "u"}, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))

	// request untouched on failure
	stored, getErr := f.requests.GetByID(context.Background(), request.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusNew, stored.Status)
}

func TestTransitionGuards(t *testing.T) {
	f := newRequestFixture(t)
	request := f.mustCreate(t, RequestCreateInput{Title: "x"})

	// ASSIGNED requires a department
	_, err := f.svc.Transition(context.Background(), request.ID, domain.StatusAssigned, Actor{ID: "u"}, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodePreconditionFailed))

	dept := "dept-1"
	request.DepartmentID = &dept
	require.NoError(t, f.requests.Update(context.Background(), request))
	_, err = f.svc.Transition(context.Background(), request.ID, domain.StatusAssigned, Actor{ID: "u"}, "")
	require.NoError(t, err)

	// IN_PROGRESS requires an agent
	_, err = f.svc.Transition(context.Background(), request.ID, domain.StatusInProgress, Actor{ID: "u"}, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodePreconditionFailed))
}

func TestTransitionFromTerminalFails(t *testing.T) {
	f := newRequestFixture(t)
	request := f.mustCreate(t, RequestCreateInput{Title: "x"})

	_, err := f.svc.Transition(context.Background(), request.ID, domain.StatusCancelled, Actor{ID: "u"}, "changed my mind")
	require.NoError(t, err)

	_, err = f.svc.Transition(context.Background(), request.ID, domain.StatusAssigned, Actor{ID: "u"}, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
}

func TestTransitionWritesAuditTrail(t *testing.T) {
	f := newRequestFixture(t)
	request := f.mustCreate(t, RequestCreateInput{Title: "x"})

	_, err := f.svc.Transition(context.Background(), request.ID, domain.StatusCancelled, Actor{ID: "user-7", Role: domain.RoleUser}, "dup")
	require.NoError(t, err)

	entries := f.activity.byAction(domain.ActionStatusChange)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.StatusNew), entries[0].OldValue)
	assert.Equal(t, string(domain.StatusCancelled), entries[0].NewValue)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, "user-7", *entries[0].ActorID)
}

func TestApproveAndReject(t *testing.T) {
	f := newRequestFixture(t)
	manager := Actor{ID: "mgr-1", Role: domain.RoleManager}

	pending := f.mustCreate(t, RequestCreateInput{Title: "a", RequiresApproval: true})
	approved, err := f.svc.Approve(context.Background(), pending.ID, manager, "ok")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)

	pending2 := f.mustCreate(t, RequestCreateInput{Title: "b", RequiresApproval: true})
	rejected, err := f.svc.Reject(context.Background(), pending2.ID, manager, "not in budget")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.ClosedAt)

	// approval only applies to pending requests
	plain := f.mustCreate(t, RequestCreateInput{Title: "c"})
	_, err = f.svc.Approve(context.Background(), plain.ID, manager, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
}

func TestUpdatePriority(t *testing.T) {
	f := newRequestFixture(t)
	request := f.mustCreate(t, RequestCreateInput{Title: "x", Priority: domain.PriorityLow})

	updated, err := f.svc.UpdatePriority(context.Background(), request.ID, domain.PriorityCritical, Actor{ID: "mgr"}, "outage")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityCritical, updated.Priority)
	assert.Len(t, f.events.byType(events.EventRequestPriorityChanged), 1)

	// same priority is a silent no-op
	again, err := f.svc.UpdatePriority(context.Background(), request.ID, domain.PriorityCritical, Actor{ID: "mgr"}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityCritical, again.Priority)
	assert.Len(t, f.events.byType(events.EventRequestPriorityChanged), 1)
	assert.Len(t, f.activity.byAction(domain.ActionPriorityChange), 1)
}

func TestDeleteRequest(t *testing.T) {
	f := newRequestFixture(t)
	request := f.mustCreate(t, RequestCreateInput{Title: "x"})

	require.NoError(t, f.svc.Delete(context.Background(), request.ID))

	_, err := f.svc.GetByID(context.Background(), request.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	err = f.svc.Delete(context.Background(), request.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestGetByTicketCode(t *testing.T) {
	f := newRequestFixture(t)
	request := f.mustCreate(t, RequestCreateInput{Title: "x"})

	found, err := f.svc.GetByTicketCode(context.Background(), request.TicketCode)
	require.NoError(t, err)
	assert.Equal(t, request.ID, found.ID)

	_, err = f.svc.GetByTicketCode(context.Background(), "SR-19700101-0000")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
