package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// RequestFilter captures listing parameters.
type RequestFilter struct {
	RequesterID  *string
	DepartmentID *string
	AgentID      *string
	CategoryID   *string
	Statuses     []domain.RequestStatus
	Priorities   []domain.RequestPriority
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// RequestRepository encapsulates service request persistence.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.Request) error
	Update(ctx context.Context, request *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	GetByTicketCode(ctx context.Context, code string) (*domain.Request, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error)
	ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]domain.Request, error)
	Delete(ctx context.Context, id string) error
}

type requestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository instantiates the repository.
func NewRequestRepository(pool *pgxpool.Pool) RequestRepository {
	return &requestRepository{pool: pool}
}

const requestColumns = `id, ticket_code, requester_id, category_id, department_id, agent_id,
               title, description, status, priority, resolution_notes,
               created_at, updated_at, resolved_at, closed_at`

func (r *requestRepository) Create(ctx context.Context, request *domain.Request) error {
	const query = `
        INSERT INTO service_requests (ticket_code, requester_id, category_id, department_id, agent_id, title, description, status, priority, resolution_notes, resolved_at, closed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		request.TicketCode,
		request.RequesterID,
		request.CategoryID,
		request.DepartmentID,
		request.AgentID,
		request.Title,
		request.Description,
		request.Status,
		request.Priority,
		request.ResolutionNotes,
		request.ResolvedAt,
		request.ClosedAt,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
}

// Update persists every mutable field except ticket_code, which is
// immutable after creation.
func (r *requestRepository) Update(ctx context.Context, request *domain.Request) error {
	const query = `
        UPDATE service_requests SET category_id=$1, department_id=$2, agent_id=$3, title=$4, description=$5,
            status=$6, priority=$7, resolution_notes=$8, resolved_at=$9, closed_at=$10, updated_at=NOW()
        WHERE id=$11`
	cmd, err := r.pool.Exec(ctx, query,
		request.CategoryID,
		request.DepartmentID,
		request.AgentID,
		request.Title,
		request.Description,
		request.Status,
		request.Priority,
		request.ResolutionNotes,
		request.ResolvedAt,
		request.ClosedAt,
		request.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE id=$1`, requestColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *requestRepository) GetByTicketCode(ctx context.Context, code string) (*domain.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE ticket_code=$1`, requestColumns)
	return r.fetchSingle(ctx, query, code)
}

func (r *requestRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Request, error) {
	var request domain.Request
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&request.ID,
		&request.TicketCode,
		&request.RequesterID,
		&request.CategoryID,
		&request.DepartmentID,
		&request.AgentID,
		&request.Title,
		&request.Description,
		&request.Status,
		&request.Priority,
		&request.ResolutionNotes,
		&request.CreatedAt,
		&request.UpdatedAt,
		&request.ResolvedAt,
		&request.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.Request, error) {
	base := fmt.Sprintf(`SELECT %s FROM service_requests`, requestColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if filter.AgentID != nil {
		args = append(args, *filter.AgentID)
		clauses = append(clauses, fmt.Sprintf("agent_id=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) ListResolvedBefore(ctx context.Context, cutoff time.Time) ([]domain.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE status=$1 AND resolved_at < $2`, requestColumns)
	rows, err := r.pool.Query(ctx, query, domain.StatusResolved, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// Delete removes the request; tracking, tasks, and activity log rows
// cascade at the schema level.
func (r *requestRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM service_requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRequests(rows pgx.Rows) ([]domain.Request, error) {
	var result []domain.Request
	for rows.Next() {
		var request domain.Request
		if err := rows.Scan(
			&request.ID,
			&request.TicketCode,
			&request.RequesterID,
			&request.CategoryID,
			&request.DepartmentID,
			&request.AgentID,
			&request.Title,
			&request.Description,
			&request.Status,
			&request.Priority,
			&request.ResolutionNotes,
			&request.CreatedAt,
			&request.UpdatedAt,
			&request.ResolvedAt,
			&request.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}
