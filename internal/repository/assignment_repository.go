package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/vendor-desk/internal/domain"
)

// AssignmentRepository stores the customer to vendor routing table.
type AssignmentRepository interface {
	// Upsert sets the vendor for a customer, replacing any previous one.
	Upsert(ctx context.Context, assignment *domain.Assignment) error
	Delete(ctx context.Context, customerUID string) error
	GetByCustomer(ctx context.Context, customerUID string) (*domain.Assignment, error)
	List(ctx context.Context) ([]domain.Assignment, error)
	ListByVendor(ctx context.Context, vendorUID string) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	db DB
}

// NewAssignmentRepository returns a Postgres-backed implementation.
func NewAssignmentRepository(db DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Upsert(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO customer_vendor_assignments (customer_uid, vendor_uid, assigned_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (customer_uid)
        DO UPDATE SET vendor_uid = EXCLUDED.vendor_uid, assigned_at = EXCLUDED.assigned_at
        RETURNING assigned_at`

	return r.db.QueryRow(ctx, query, assignment.CustomerUID, assignment.VendorUID).Scan(&assignment.AssignedAt)
}

func (r *assignmentRepository) Delete(ctx context.Context, customerUID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM customer_vendor_assignments WHERE customer_uid=$1`, customerUID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *assignmentRepository) GetByCustomer(ctx context.Context, customerUID string) (*domain.Assignment, error) {
	const query = `
        SELECT customer_uid, vendor_uid, assigned_at
        FROM customer_vendor_assignments WHERE customer_uid=$1`

	var a domain.Assignment
	if err := r.db.QueryRow(ctx, query, customerUID).Scan(&a.CustomerUID, &a.VendorUID, &a.AssignedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepository) List(ctx context.Context) ([]domain.Assignment, error) {
	const query = `
        SELECT customer_uid, vendor_uid, assigned_at
        FROM customer_vendor_assignments ORDER BY customer_uid`
	return r.query(ctx, query)
}

func (r *assignmentRepository) ListByVendor(ctx context.Context, vendorUID string) ([]domain.Assignment, error) {
	const query = `
        SELECT customer_uid, vendor_uid, assigned_at
        FROM customer_vendor_assignments WHERE vendor_uid=$1 ORDER BY assigned_at DESC, customer_uid`
	return r.query(ctx, query, vendorUID)
}

func (r *assignmentRepository) query(ctx context.Context, query string, args ...any) ([]domain.Assignment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.CustomerUID, &a.VendorUID, &a.AssignedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
