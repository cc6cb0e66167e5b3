package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// SLATrackingRepository manages SLA compliance rows.
type SLATrackingRepository interface {
	Create(ctx context.Context, tracking *domain.SLATracking) error
	GetByRequestID(ctx context.Context, requestID string) (*domain.SLATracking, error)
	SetResponseMet(ctx context.Context, id string) error
	SetResolutionMet(ctx context.Context, id string) error
	ListResponseBreaches(ctx context.Context, now time.Time) ([]domain.SLATracking, error)
	ListResolutionBreaches(ctx context.Context, now time.Time) ([]domain.SLATracking, error)
	ListResolutionDueBetween(ctx context.Context, from, to time.Time) ([]domain.SLATracking, error)
	MarkBreached(ctx context.Context, id string) (bool, error)
	Statistics(ctx context.Context) (*domain.SLAStatistics, error)
}

type slaTrackingRepository struct {
	pool *pgxpool.Pool
}

// NewSLATrackingRepository builds the repository.
func NewSLATrackingRepository(pool *pgxpool.Pool) SLATrackingRepository {
	return &slaTrackingRepository{pool: pool}
}

const trackingColumns = `id, request_id, sla_id, response_due_at, resolution_due_at,
               response_met, resolution_met, breached, created_at, updated_at`

func (r *slaTrackingRepository) Create(ctx context.Context, tracking *domain.SLATracking) error {
	const query = `
        INSERT INTO sla_tracking (request_id, sla_id, response_due_at, resolution_due_at, response_met, resolution_met, breached)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		tracking.RequestID,
		tracking.SLAID,
		tracking.ResponseDueAt,
		tracking.ResolutionDueAt,
		tracking.ResponseMet,
		tracking.ResolutionMet,
		tracking.Breached,
	).Scan(&tracking.ID, &tracking.CreatedAt, &tracking.UpdatedAt)
}

func (r *slaTrackingRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.SLATracking, error) {
	query := `SELECT ` + trackingColumns + ` FROM sla_tracking WHERE request_id=$1`
	var tracking domain.SLATracking
	if err := r.pool.QueryRow(ctx, query, requestID).Scan(
		&tracking.ID,
		&tracking.RequestID,
		&tracking.SLAID,
		&tracking.ResponseDueAt,
		&tracking.ResolutionDueAt,
		&tracking.ResponseMet,
		&tracking.ResolutionMet,
		&tracking.Breached,
		&tracking.CreatedAt,
		&tracking.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tracking, nil
}

func (r *slaTrackingRepository) SetResponseMet(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE sla_tracking SET response_met=TRUE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaTrackingRepository) SetResolutionMet(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE sla_tracking SET resolution_met=TRUE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaTrackingRepository) ListResponseBreaches(ctx context.Context, now time.Time) ([]domain.SLATracking, error) {
	query := `SELECT ` + trackingColumns + `
        FROM sla_tracking
        WHERE response_due_at < $1 AND response_met = FALSE AND breached = FALSE`
	return r.list(ctx, query, now)
}

func (r *slaTrackingRepository) ListResolutionBreaches(ctx context.Context, now time.Time) ([]domain.SLATracking, error) {
	query := `SELECT ` + trackingColumns + `
        FROM sla_tracking
        WHERE resolution_due_at < $1 AND resolution_met = FALSE AND breached = FALSE`
	return r.list(ctx, query, now)
}

func (r *slaTrackingRepository) ListResolutionDueBetween(ctx context.Context, from, to time.Time) ([]domain.SLATracking, error) {
	query := `SELECT ` + trackingColumns + `
        FROM sla_tracking
        WHERE resolution_due_at >= $1 AND resolution_due_at < $2
          AND resolution_met = FALSE AND breached = FALSE`
	return r.list(ctx, query, from, to)
}

// MarkBreached flips the breached flag with a conditional update so
// concurrent scans cannot trigger the breach action twice. Returns
// true only for the caller that performed the flip.
func (r *slaTrackingRepository) MarkBreached(ctx context.Context, id string) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE sla_tracking SET breached=TRUE, updated_at=NOW() WHERE id=$1 AND breached=FALSE`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *slaTrackingRepository) Statistics(ctx context.Context) (*domain.SLAStatistics, error) {
	const query = `
        SELECT
            COUNT(*) FILTER (WHERE breached AND NOT response_met),
            COUNT(*) FILTER (WHERE breached AND NOT resolution_met),
            COUNT(*)
        FROM sla_tracking`
	var stats domain.SLAStatistics
	if err := r.pool.QueryRow(ctx, query).Scan(
		&stats.ResponseBreaches,
		&stats.ResolutionBreaches,
		&stats.TotalTracked,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *slaTrackingRepository) list(ctx context.Context, query string, args ...any) ([]domain.SLATracking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLATracking
	for rows.Next() {
		var tracking domain.SLATracking
		if err := rows.Scan(
			&tracking.ID,
			&tracking.RequestID,
			&tracking.SLAID,
			&tracking.ResponseDueAt,
			&tracking.ResolutionDueAt,
			&tracking.ResponseMet,
			&tracking.ResolutionMet,
			&tracking.Breached,
			&tracking.CreatedAt,
			&tracking.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, tracking)
	}
	return result, rows.Err()
}
