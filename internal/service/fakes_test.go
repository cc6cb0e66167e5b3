package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
)

var assertAnError = errors.New("storage unavailable")

// In-memory repository fakes. They mimic the pgx repositories closely
// enough for service tests: missing rows come back as pgx.ErrNoRows
// and reads return copies so only Update persists mutations.

type fakeRequestRepo struct {
	mu       sync.Mutex
	rows     map[string]domain.Request
	failNext error
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{rows: make(map[string]domain.Request)}
}

func (r *fakeRequestRepo) Create(ctx context.Context, request *domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.CreatedAt = time.Now()
	request.UpdatedAt = request.CreatedAt
	r.rows[request.ID] = *request
	return nil
}

func (r *fakeRequestRepo) Update(ctx context.Context, request *domain.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.rows[request.ID]; !ok {
		return pgx.ErrNoRows
	}
	request.UpdatedAt = time.Now()
	r.rows[request.ID] = *request
	return nil
}

func (r *fakeRequestRepo) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := row
	return &cp, nil
}

func (r *fakeRequestRepo) GetByTicketCode(ctx context.Context, code string) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.TicketCode == code {
			cp := row
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRequestRepo) ListWithFilter(ctx context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Request
	for _, row := range r.rows {
		if filter.RequesterID != nil && row.RequesterID != *filter.RequesterID {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *fakeRequestRepo) ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Request
	for _, row := range r.rows {
		if row.Status == domain.StatusResolved && row.ResolvedAt != nil && row.ResolvedAt.Before(cutoff) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeRequestRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeRequestRepo) failOnce(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *fakeRequestRepo) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

type fakeCategoryRepo struct {
	rows map[string]domain.ServiceCategory
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{rows: make(map[string]domain.ServiceCategory)}
}

func (r *fakeCategoryRepo) Create(ctx context.Context, category *domain.ServiceCategory) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	r.rows[category.ID] = *category
	return nil
}

func (r *fakeCategoryRepo) GetByID(ctx context.Context, id string) (*domain.ServiceCategory, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := row
	return &cp, nil
}

func (r *fakeCategoryRepo) ListActive(ctx context.Context) ([]domain.ServiceCategory, error) {
	var out []domain.ServiceCategory
	for _, row := range r.rows {
		if row.IsActive {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeDepartmentRepo struct {
	rows map[string]domain.Department
}

func newFakeDepartmentRepo() *fakeDepartmentRepo {
	return &fakeDepartmentRepo{rows: make(map[string]domain.Department)}
}

func (r *fakeDepartmentRepo) Create(ctx context.Context, dept *domain.Department) error {
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	r.rows[dept.ID] = *dept
	return nil
}

func (r *fakeDepartmentRepo) Update(ctx context.Context, dept *domain.Department) error {
	if _, ok := r.rows[dept.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.rows[dept.ID] = *dept
	return nil
}

func (r *fakeDepartmentRepo) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := row
	return &cp, nil
}

func (r *fakeDepartmentRepo) ListActive(ctx context.Context) ([]domain.Department, error) {
	var out []domain.Department
	for _, row := range r.rows {
		if row.IsActive {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	rows map[string]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{rows: make(map[string]domain.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.rows[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := row
	return &cp, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, row := range r.rows {
		if row.Username == username {
			cp := row
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListAgentsByDepartment(ctx context.Context, departmentID string) ([]domain.User, error) {
	var out []domain.User
	for _, row := range r.rows {
		if row.Role == domain.RoleAgent && row.DepartmentID != nil && *row.DepartmentID == departmentID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeMappingRepo struct {
	rows map[string]domain.CategoryDepartmentMapping // keyed by category ID
}

func newFakeMappingRepo() *fakeMappingRepo {
	return &fakeMappingRepo{rows: make(map[string]domain.CategoryDepartmentMapping)}
}

func (r *fakeMappingRepo) Upsert(ctx context.Context, mapping *domain.CategoryDepartmentMapping) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	r.rows[mapping.CategoryID] = *mapping
	return nil
}

func (r *fakeMappingRepo) GetByCategoryID(ctx context.Context, categoryID string) (*domain.CategoryDepartmentMapping, error) {
	row, ok := r.rows[categoryID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := row
	return &cp, nil
}

func (r *fakeMappingRepo) DeleteByCategoryID(ctx context.Context, categoryID string) error {
	delete(r.rows, categoryID)
	return nil
}

func (r *fakeMappingRepo) List(ctx context.Context) ([]domain.CategoryDepartmentMapping, error) {
	var out []domain.CategoryDepartmentMapping
	for _, row := range r.rows {
		out = append(out, row)
	}
	return out, nil
}

type fakeTaskRepo struct {
	created []domain.Task
}

func newFakeTaskRepo() *fakeTaskRepo { return &fakeTaskRepo{} }

func (r *fakeTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	r.created = append(r.created, *task)
	return nil
}

func (r *fakeTaskRepo) ListOpenByAgent(ctx context.Context, agentID string) ([]domain.Task, error) {
	var out []domain.Task
	for _, task := range r.created {
		if task.AgentID == agentID && task.Status == domain.TaskOpen {
			out = append(out, task)
		}
	}
	return out, nil
}

type fakeSLARepo struct {
	rows map[domain.RequestPriority]domain.SLADefinition
}

func newFakeSLARepo() *fakeSLARepo {
	return &fakeSLARepo{rows: make(map[domain.RequestPriority]domain.SLADefinition)}
}

func (r *fakeSLARepo) seed(priority domain.RequestPriority, responseHours, resolutionHours int) {
	r.rows[priority] = domain.SLADefinition{
		ID:                  uuid.NewString(),
		Name:                string(priority) + " SLA",
		Priority:            priority,
		ResponseTimeHours:   responseHours,
		ResolutionTimeHours: resolutionHours,
	}
}

func (r *fakeSLARepo) Create(ctx context.Context, sla *domain.SLADefinition) error {
	if sla.ID == "" {
		sla.ID = uuid.NewString()
	}
	r.rows[sla.Priority] = *sla
	return nil
}

func (r *fakeSLARepo) GetByPriority(ctx context.Context, priority domain.RequestPriority) (*domain.SLADefinition, error) {
	row, ok := r.rows[priority]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := row
	return &cp, nil
}

func (r *fakeSLARepo) List(ctx context.Context) ([]domain.SLADefinition, error) {
	var out []domain.SLADefinition
	for _, row := range r.rows {
		out = append(out, row)
	}
	return out, nil
}

type fakeTrackingRepo struct {
	mu   sync.Mutex
	rows map[string]domain.SLATracking
}

func newFakeTrackingRepo() *fakeTrackingRepo {
	return &fakeTrackingRepo{rows: make(map[string]domain.SLATracking)}
}

func (r *fakeTrackingRepo) Create(ctx context.Context, tracking *domain.SLATracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tracking.ID == "" {
		tracking.ID = uuid.NewString()
	}
	r.rows[tracking.ID] = *tracking
	return nil
}

func (r *fakeTrackingRepo) GetByRequestID(ctx context.Context, requestID string) (*domain.SLATracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.RequestID == requestID {
			cp := row
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTrackingRepo) SetResponseMet(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	row.ResponseMet = true
	r.rows[id] = row
	return nil
}

func (r *fakeTrackingRepo) SetResolutionMet(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return pgx.ErrNoRows
	}
	row.ResolutionMet = true
	r.rows[id] = row
	return nil
}

func (r *fakeTrackingRepo) ListResponseBreaches(ctx context.Context, now time.Time) ([]domain.SLATracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SLATracking
	for _, row := range r.rows {
		if !row.ResponseMet && !row.Breached && row.ResponseDueAt.Before(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeTrackingRepo) ListResolutionBreaches(ctx context.Context, now time.Time) ([]domain.SLATracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SLATracking
	for _, row := range r.rows {
		if !row.ResolutionMet && !row.Breached && row.ResolutionDueAt.Before(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeTrackingRepo) ListResolutionDueBetween(ctx context.Context, from, to time.Time) ([]domain.SLATracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SLATracking
	for _, row := range r.rows {
		if !row.ResolutionMet && !row.Breached && row.ResolutionDueAt.After(from) && row.ResolutionDueAt.Before(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeTrackingRepo) MarkBreached(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Breached {
		return false, nil
	}
	row.Breached = true
	r.rows[id] = row
	return true, nil
}

func (r *fakeTrackingRepo) Statistics(ctx context.Context) (*domain.SLAStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.SLAStatistics{}
	for _, row := range r.rows {
		stats.TotalTracked++
		if row.Breached {
			if !row.ResponseMet {
				stats.ResponseBreaches++
			}
			if !row.ResolutionMet {
				stats.ResolutionBreaches++
			}
		}
	}
	return stats, nil
}

type fakeActivityRepo struct {
	mu      sync.Mutex
	entries []domain.ActivityLog
}

func newFakeActivityRepo() *fakeActivityRepo { return &fakeActivityRepo{} }

func (r *fakeActivityRepo) Create(ctx context.Context, entry *domain.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeActivityRepo) ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ActivityLog
	for _, entry := range r.entries {
		if entry.RequestID == requestID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeActivityRepo) byAction(action domain.ActivityAction) []domain.ActivityLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ActivityLog
	for _, entry := range r.entries {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out
}

// recordedNote captures a single notification delivery.
type recordedNote struct {
	Target  string
	Title   string
	Message string
}

// recordingNotifier satisfies Notifier and remembers everything sent.
type recordingNotifier struct {
	mu         sync.Mutex
	users      []recordedNote
	depts      []recordedNote
	management []recordedNote
}

func newRecordingNotifier() *recordingNotifier { return &recordingNotifier{} }

func (n *recordingNotifier) NotifyUser(ctx context.Context, userID, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, recordedNote{Target: userID, Title: title, Message: message})
}

func (n *recordingNotifier) NotifyDepartment(ctx context.Context, departmentID, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.depts = append(n.depts, recordedNote{Target: departmentID, Title: title, Message: message})
}

func (n *recordingNotifier) NotifyManagement(ctx context.Context, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.management = append(n.management, recordedNote{Title: title, Message: message})
}

func (n *recordingNotifier) managementCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.management)
}
