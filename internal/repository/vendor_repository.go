package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/vendor-desk/internal/domain"
)

const uniqueViolation = "23505"

// syncLockKey serializes vendor directory writes across replicas.
const syncLockKey int64 = 0x76656e646f72 // "vendor"

// ErrVendorExists is returned by Create when the email or uid is already taken.
var ErrVendorExists = errors.New("vendor already exists")

// VendorRepository handles persistence for vendors.
type VendorRepository interface {
	Create(ctx context.Context, vendor *domain.Vendor) error
	Update(ctx context.Context, vendor *domain.Vendor) error
	GetByUID(ctx context.Context, uid string) (*domain.Vendor, error)
	GetByEmail(ctx context.Context, email string) (*domain.Vendor, error)
	List(ctx context.Context, filter VendorFilter) ([]domain.Vendor, error)
	Count(ctx context.Context) (int, error)
	// WithinTx runs fn against a repository bound to one exclusive
	// transaction. Returning an error from fn rolls everything back.
	WithinTx(ctx context.Context, fn func(repo VendorRepository) error) error
}

// VendorFilter defines query params for vendor listing.
type VendorFilter struct {
	Active *bool
	Limit  int
	Offset int
}

type vendorRepository struct {
	db   DB
	pool TxBeginner
}

// NewVendorRepository instantiates the Postgres-backed repository.
func NewVendorRepository(pool TxBeginner) VendorRepository {
	return &vendorRepository{db: pool, pool: pool}
}

const vendorColumns = `uid, external_id, email, name, password_hash, active_flag, created_at, updated_at`

func (r *vendorRepository) Create(ctx context.Context, vendor *domain.Vendor) error {
	const query = `
        INSERT INTO vendors (uid, external_id, email, name, password_hash, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		vendor.UID,
		vendor.ExternalID,
		vendor.Email,
		vendor.Name,
		vendor.PasswordHash,
		vendor.Active,
	).Scan(&vendor.CreatedAt, &vendor.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrVendorExists
	}
	return err
}

func (r *vendorRepository) Update(ctx context.Context, vendor *domain.Vendor) error {
	const query = `
        UPDATE vendors
        SET external_id=$1, email=$2, name=$3, password_hash=$4, active_flag=$5, updated_at=NOW()
        WHERE uid=$6
        RETURNING updated_at`

	return r.db.QueryRow(ctx, query,
		vendor.ExternalID,
		vendor.Email,
		vendor.Name,
		vendor.PasswordHash,
		vendor.Active,
		vendor.UID,
	).Scan(&vendor.UpdatedAt)
}

func (r *vendorRepository) GetByUID(ctx context.Context, uid string) (*domain.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE uid=$1`
	return scanVendor(r.db.QueryRow(ctx, query, uid))
}

func (r *vendorRepository) GetByEmail(ctx context.Context, email string) (*domain.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE email=lower($1)`
	return scanVendor(r.db.QueryRow(ctx, query, email))
}

func (r *vendorRepository) List(ctx context.Context, filter VendorFilter) ([]domain.Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors`
	args := []any{}

	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += fmt.Sprintf(" WHERE active_flag=$%d", len(args))
	}
	query += " ORDER BY name ASC, uid ASC"
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Vendor
	for rows.Next() {
		vendor, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *vendor)
	}
	return result, rows.Err()
}

func (r *vendorRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM vendors`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *vendorRepository) WithinTx(ctx context.Context, fn func(repo VendorRepository) error) error {
	if r.pool == nil {
		return errors.New("vendor repository: transactions unavailable inside a transaction")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin vendor tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, syncLockKey); err != nil {
		return fmt.Errorf("lock vendor directory: %w", err)
	}
	if err := fn(&vendorRepository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit vendor tx: %w", err)
	}
	return nil
}

func scanVendor(row pgx.Row) (*domain.Vendor, error) {
	var vendor domain.Vendor
	if err := row.Scan(
		&vendor.UID,
		&vendor.ExternalID,
		&vendor.Email,
		&vendor.Name,
		&vendor.PasswordHash,
		&vendor.Active,
		&vendor.CreatedAt,
		&vendor.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &vendor, nil
}
