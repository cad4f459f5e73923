package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/domain"
	"github.com/spec-kit/vendor-desk/internal/repository"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

// ActiveVendorService tracks which vendor the storefront widget routes to.
type ActiveVendorService struct {
	store   repository.ActiveVendorStore
	vendors repository.VendorRepository
	logger  *zap.Logger
}

// NewActiveVendorService creates the service.
func NewActiveVendorService(store repository.ActiveVendorStore, vendors repository.VendorRepository, logger *zap.Logger) *ActiveVendorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActiveVendorService{store: store, vendors: vendors, logger: logger}
}

// SetActive marks uid as the active vendor. The write is best-effort: a store
// failure is logged and not returned.
func (s *ActiveVendorService) SetActive(ctx context.Context, uid string) error {
	if _, err := s.vendors.GetByUID(ctx, uid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("vendor", map[string]any{"vendor_uid": uid})
		}
		return apperrors.MapError(err)
	}
	if err := s.store.Set(ctx, uid); err != nil {
		s.logger.Warn("set active vendor", zap.String("vendor_uid", uid), zap.Error(err))
	}
	return nil
}

// Current returns the active vendor.
func (s *ActiveVendorService) Current(ctx context.Context) (*domain.Vendor, error) {
	uid, err := s.store.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveVendor) {
			return nil, apperrors.NewNotFound("active vendor", nil)
		}
		return nil, apperrors.MapError(err)
	}
	vendor, err := s.vendors.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("active vendor", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return vendor, nil
}
