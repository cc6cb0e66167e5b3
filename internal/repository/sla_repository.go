package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// SLARepository manages SLA definitions, one per priority tier.
type SLARepository interface {
	Create(ctx context.Context, sla *domain.SLADefinition) error
	GetByPriority(ctx context.Context, priority domain.RequestPriority) (*domain.SLADefinition, error)
	List(ctx context.Context) ([]domain.SLADefinition, error)
}

type slaRepository struct {
	pool *pgxpool.Pool
}

// NewSLARepository builds the repository.
func NewSLARepository(pool *pgxpool.Pool) SLARepository {
	return &slaRepository{pool: pool}
}

func (r *slaRepository) Create(ctx context.Context, sla *domain.SLADefinition) error {
	const query = `
        INSERT INTO sla_definitions (name, priority, response_time_hours, resolution_time_hours)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		sla.Name,
		sla.Priority,
		sla.ResponseTimeHours,
		sla.ResolutionTimeHours,
	).Scan(&sla.ID, &sla.CreatedAt)
}

func (r *slaRepository) GetByPriority(ctx context.Context, priority domain.RequestPriority) (*domain.SLADefinition, error) {
	const query = `
        SELECT id, name, priority, response_time_hours, resolution_time_hours, created_at
        FROM sla_definitions WHERE priority=$1`
	var sla domain.SLADefinition
	if err := r.pool.QueryRow(ctx, query, priority).Scan(
		&sla.ID,
		&sla.Name,
		&sla.Priority,
		&sla.ResponseTimeHours,
		&sla.ResolutionTimeHours,
		&sla.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &sla, nil
}

func (r *slaRepository) List(ctx context.Context) ([]domain.SLADefinition, error) {
	const query = `
        SELECT id, name, priority, response_time_hours, resolution_time_hours, created_at
        FROM sla_definitions ORDER BY priority`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLADefinition
	for rows.Next() {
		var sla domain.SLADefinition
		if err := rows.Scan(&sla.ID, &sla.Name, &sla.Priority, &sla.ResponseTimeHours, &sla.ResolutionTimeHours, &sla.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, sla)
	}
	return result, rows.Err()
}
