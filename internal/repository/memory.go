package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/vendor-desk/internal/domain"
)

// The in-memory repositories back local runs without POSTGRES_DSN/Redis and
// the test suites. They report missing rows with pgx.ErrNoRows like the
// Postgres implementations do.

type memoryVendorRepository struct {
	// writeMu serializes writers, including whole transactions.
	writeMu *sync.Mutex
	mu      sync.RWMutex
	byUID   map[string]domain.Vendor
	inTx    bool
}

// NewMemoryVendorRepository returns an empty in-memory vendor repository.
func NewMemoryVendorRepository() VendorRepository {
	return &memoryVendorRepository{writeMu: &sync.Mutex{}, byUID: make(map[string]domain.Vendor)}
}

func (r *memoryVendorRepository) lockWrite() func() {
	if r.inTx {
		return func() {}
	}
	r.writeMu.Lock()
	return r.writeMu.Unlock
}

func (r *memoryVendorRepository) Create(_ context.Context, vendor *domain.Vendor) error {
	defer r.lockWrite()()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUID[vendor.UID]; ok {
		return ErrVendorExists
	}
	email := strings.ToLower(vendor.Email)
	for _, v := range r.byUID {
		if v.Email == email {
			return ErrVendorExists
		}
	}
	now := time.Now().UTC()
	vendor.Email = email
	vendor.CreatedAt = now
	vendor.UpdatedAt = now
	r.byUID[vendor.UID] = *vendor
	return nil
}

func (r *memoryVendorRepository) Update(_ context.Context, vendor *domain.Vendor) error {
	defer r.lockWrite()()
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byUID[vendor.UID]
	if !ok {
		return pgx.ErrNoRows
	}
	vendor.CreatedAt = existing.CreatedAt
	vendor.UpdatedAt = time.Now().UTC()
	r.byUID[vendor.UID] = *vendor
	return nil
}

func (r *memoryVendorRepository) GetByUID(_ context.Context, uid string) (*domain.Vendor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.byUID[uid]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &v, nil
}

func (r *memoryVendorRepository) GetByEmail(_ context.Context, email string) (*domain.Vendor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(email)
	for _, v := range r.byUID {
		if v.Email == email {
			return &v, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryVendorRepository) List(_ context.Context, filter VendorFilter) ([]domain.Vendor, error) {
	r.mu.RLock()
	result := make([]domain.Vendor, 0, len(r.byUID))
	for _, v := range r.byUID {
		if filter.Active != nil && v.Active != *filter.Active {
			continue
		}
		result = append(result, v)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].UID < result[j].UID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *memoryVendorRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUID), nil
}

// WithinTx runs fn on a private copy and swaps it in only when fn succeeds.
func (r *memoryVendorRepository) WithinTx(ctx context.Context, fn func(repo VendorRepository) error) error {
	if r.inTx {
		return errors.New("vendor repository: nested transaction")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	working := make(map[string]domain.Vendor, len(r.byUID))
	for k, v := range r.byUID {
		working[k] = v
	}
	r.mu.RUnlock()

	tx := &memoryVendorRepository{writeMu: r.writeMu, byUID: working, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.byUID = tx.byUID
	r.mu.Unlock()
	return nil
}

type memoryAssignmentRepository struct {
	mu         sync.RWMutex
	byCustomer map[string]domain.Assignment
}

// NewMemoryAssignmentRepository returns an empty in-memory assignment table.
func NewMemoryAssignmentRepository() AssignmentRepository {
	return &memoryAssignmentRepository{byCustomer: make(map[string]domain.Assignment)}
}

func (r *memoryAssignmentRepository) Upsert(_ context.Context, assignment *domain.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	assignment.AssignedAt = time.Now().UTC()
	r.byCustomer[assignment.CustomerUID] = *assignment
	return nil
}

func (r *memoryAssignmentRepository) Delete(_ context.Context, customerUID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCustomer[customerUID]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.byCustomer, customerUID)
	return nil
}

func (r *memoryAssignmentRepository) GetByCustomer(_ context.Context, customerUID string) (*domain.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byCustomer[customerUID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r *memoryAssignmentRepository) List(_ context.Context) ([]domain.Assignment, error) {
	return r.filter(func(domain.Assignment) bool { return true }), nil
}

func (r *memoryAssignmentRepository) ListByVendor(_ context.Context, vendorUID string) ([]domain.Assignment, error) {
	return r.filter(func(a domain.Assignment) bool { return a.VendorUID == vendorUID }), nil
}

func (r *memoryAssignmentRepository) filter(keep func(domain.Assignment) bool) []domain.Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Assignment, 0, len(r.byCustomer))
	for _, a := range r.byCustomer {
		if keep(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CustomerUID < result[j].CustomerUID })
	return result
}

type memoryActiveVendorStore struct {
	mu        sync.Mutex
	uid       string
	expiresAt time.Time
}

// NewMemoryActiveVendorStore returns a process-local ActiveVendorStore.
func NewMemoryActiveVendorStore() ActiveVendorStore {
	return &memoryActiveVendorStore{}
}

func (s *memoryActiveVendorStore) Set(_ context.Context, vendorUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uid = vendorUID
	s.expiresAt = time.Now().Add(ActiveVendorTTL)
	return nil
}

func (s *memoryActiveVendorStore) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uid == "" || time.Now().After(s.expiresAt) {
		return "", ErrNoActiveVendor
	}
	return s.uid, nil
}
