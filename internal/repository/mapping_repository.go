package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// MappingRepository manages category to department routing rules.
type MappingRepository interface {
	Upsert(ctx context.Context, mapping *domain.CategoryDepartmentMapping) error
	GetByCategoryID(ctx context.Context, categoryID string) (*domain.CategoryDepartmentMapping, error)
	DeleteByCategoryID(ctx context.Context, categoryID string) error
	List(ctx context.Context) ([]domain.CategoryDepartmentMapping, error)
}

type mappingRepository struct {
	pool *pgxpool.Pool
}

// NewMappingRepository builds the repository.
func NewMappingRepository(pool *pgxpool.Pool) MappingRepository {
	return &mappingRepository{pool: pool}
}

// Upsert replaces any existing mapping for the category, keeping the
// at-most-one-per-category invariant at the schema level.
func (r *mappingRepository) Upsert(ctx context.Context, mapping *domain.CategoryDepartmentMapping) error {
	const query = `
        INSERT INTO category_department_mappings (category_id, department_id)
        VALUES ($1,$2)
        ON CONFLICT (category_id) DO UPDATE SET department_id = EXCLUDED.department_id
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		mapping.CategoryID,
		mapping.DepartmentID,
	).Scan(&mapping.ID, &mapping.CreatedAt)
}

func (r *mappingRepository) GetByCategoryID(ctx context.Context, categoryID string) (*domain.CategoryDepartmentMapping, error) {
	const query = `
        SELECT id, category_id, department_id, created_at
        FROM category_department_mappings WHERE category_id=$1`
	var mapping domain.CategoryDepartmentMapping
	if err := r.pool.QueryRow(ctx, query, categoryID).Scan(
		&mapping.ID,
		&mapping.CategoryID,
		&mapping.DepartmentID,
		&mapping.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *mappingRepository) DeleteByCategoryID(ctx context.Context, categoryID string) error {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM category_department_mappings WHERE category_id=$1`, categoryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *mappingRepository) List(ctx context.Context) ([]domain.CategoryDepartmentMapping, error) {
	const query = `
        SELECT id, category_id, department_id, created_at
        FROM category_department_mappings`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CategoryDepartmentMapping
	for rows.Next() {
		var mapping domain.CategoryDepartmentMapping
		if err := rows.Scan(&mapping.ID, &mapping.CategoryID, &mapping.DepartmentID, &mapping.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, mapping)
	}
	return result, rows.Err()
}
