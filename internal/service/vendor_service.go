package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/archive"
	"github.com/spec-kit/vendor-desk/internal/auth"
	"github.com/spec-kit/vendor-desk/internal/config"
	"github.com/spec-kit/vendor-desk/internal/csvimport"
	"github.com/spec-kit/vendor-desk/internal/domain"
	"github.com/spec-kit/vendor-desk/internal/events"
	"github.com/spec-kit/vendor-desk/internal/repository"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

const (
	minSuppliedPasswordLength = 8
	maxUIDAttempts            = 5
	maxSlugLength             = 40
)

// SyncMetrics receives vendor directory counters.
type SyncMetrics interface {
	RecordSync(result string, created int)
	RecordVendorCreated()
}

// VendorService owns the vendor directory: CSV sync, manual add and reads.
type VendorService struct {
	vendors        repository.VendorRepository
	dispatcher     events.Dispatcher
	archiver       archive.Archiver
	metrics        SyncMetrics
	logger         *zap.Logger
	bcryptCost     int
	passwordLength int
	maxUploadBytes int
	now            func() time.Time

	// syncMu serializes every write path into the directory.
	syncMu sync.Mutex
}

// VendorDependencies bundles collaborators.
type VendorDependencies struct {
	VendorRepo repository.VendorRepository
	Dispatcher events.Dispatcher
	Archiver   archive.Archiver
	Metrics    SyncMetrics
	Logger     *zap.Logger
}

// AddVendorInput is a manual single-vendor add.
type AddVendorInput struct {
	ExternalID string
	Email      string
	Name       string
	Password   string
}

// NewVendorService creates the service.
func NewVendorService(cfg config.Config, deps VendorDependencies) *VendorService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	archiver := deps.Archiver
	if archiver == nil {
		archiver = archive.NopArchiver{}
	}
	return &VendorService{
		vendors:        deps.VendorRepo,
		dispatcher:     deps.Dispatcher,
		archiver:       archiver,
		metrics:        deps.Metrics,
		logger:         logger,
		bcryptCost:     cfg.Auth.BcryptCost,
		passwordLength: cfg.Sync.PasswordLength,
		maxUploadBytes: cfg.Sync.MaxUploadBytes,
		now:            time.Now,
	}
}

// Sync reconciles the directory against a vendor CSV export. The whole file
// is applied in one transaction: a malformed file or any write failure leaves
// the directory untouched.
func (s *VendorService) Sync(ctx context.Context, body io.Reader) (*domain.SyncResult, error) {
	raw, err := s.readUpload(body)
	if err != nil {
		s.recordSync("rejected", 0)
		return nil, err
	}

	parsed, err := csvimport.Parse(bytes.NewReader(raw))
	if err != nil {
		s.recordSync("rejected", 0)
		var perr *csvimport.ParseError
		if errors.As(err, &perr) {
			return nil, apperrors.NewValidationError("malformed csv", map[string]any{
				"line":   perr.Line,
				"column": perr.Column,
				"reason": perr.Err.Error(),
			})
		}
		return nil, apperrors.NewValidationError("unreadable csv", map[string]any{"reason": err.Error()})
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	result := &domain.SyncResult{Skipped: parsed.Skipped}
	var created []domain.Vendor
	var updated []domain.Vendor

	err = s.vendors.WithinTx(ctx, func(tx repository.VendorRepository) error {
		for _, row := range parsed.Rows {
			existing, err := tx.GetByEmail(ctx, row.Email)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
				vendor, password, err := s.createVendor(ctx, tx, row, "")
				if err != nil {
					return err
				}
				result.Added++
				result.NewVendors = append(result.NewVendors, domain.VendorCredential{
					UID:      vendor.UID,
					Name:     vendor.Name,
					Email:    vendor.Email,
					Password: password,
				})
				created = append(created, *vendor)
			case err != nil:
				return err
			default:
				if !applyRow(existing, row) {
					continue
				}
				if err := tx.Update(ctx, existing); err != nil {
					return err
				}
				result.Updated++
				updated = append(updated, *existing)
			}
		}
		total, err := tx.Count(ctx)
		if err != nil {
			return err
		}
		result.Total = total
		return nil
	})
	if err != nil {
		s.recordSync("failed", 0)
		s.logger.Error("vendor sync failed", zap.Error(err))
		return nil, apperrors.MapError(err)
	}

	s.recordSync("ok", result.Added)

	archiveKey := s.archive(ctx, raw)
	for _, v := range created {
		s.publish(ctx, events.EventVendorCreated, v.UID, events.VendorCreatedPayload{
			UID: v.UID, Name: v.Name, Email: v.Email, Source: "sync",
		})
	}
	for _, v := range updated {
		s.publish(ctx, events.EventVendorUpdated, v.UID, events.VendorUpdatedPayload{
			UID: v.UID, Name: v.Name, ExternalID: v.ExternalID,
		})
	}
	s.publish(ctx, events.EventVendorsSynced, "", events.VendorsSyncedPayload{
		Added: result.Added, Updated: result.Updated, Skipped: result.Skipped,
		Total: result.Total, ArchiveKey: archiveKey,
	})

	s.logger.Info("vendor sync applied",
		zap.Int("added", result.Added),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("total", result.Total))
	return result, nil
}

// AddVendor creates one vendor through the same normalization as Sync. An
// existing email is a conflict rather than an update. The returned password
// is non-empty only when it was generated here.
func (s *VendorService) AddVendor(ctx context.Context, input AddVendorInput) (*domain.Vendor, string, error) {
	row, ok := csvimport.NormalizeRow(input.ExternalID, input.Email, input.Name)
	if !ok {
		field := csvimport.InvalidField(row)
		return nil, "", apperrors.NewValidationError("invalid "+field, map[string]any{"field": field})
	}
	if input.Password != "" && len(input.Password) < minSuppliedPasswordLength {
		return nil, "", apperrors.NewValidationError("password too short", map[string]any{
			"field":      "password",
			"min_length": minSuppliedPasswordLength,
		})
	}
	if len(input.Password) > auth.MaxPasswordBytes {
		return nil, "", apperrors.NewValidationError("password too long", map[string]any{
			"field":     "password",
			"max_bytes": auth.MaxPasswordBytes,
		})
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	var vendor *domain.Vendor
	var generated string
	err := s.vendors.WithinTx(ctx, func(tx repository.VendorRepository) error {
		if _, err := tx.GetByEmail(ctx, row.Email); err == nil {
			return apperrors.NewConflict("vendor email already registered", map[string]any{"email": row.Email})
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		v, password, err := s.createVendor(ctx, tx, row, input.Password)
		if err != nil {
			return err
		}
		vendor = v
		if input.Password == "" {
			generated = password
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrVendorExists) {
			return nil, "", apperrors.NewConflict("vendor email already registered", map[string]any{"email": row.Email})
		}
		return nil, "", apperrors.MapError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordVendorCreated()
	}
	s.publish(ctx, events.EventVendorCreated, vendor.UID, events.VendorCreatedPayload{
		UID: vendor.UID, Name: vendor.Name, Email: vendor.Email, Source: "manual",
	})
	return vendor, generated, nil
}

// List returns vendors ordered by name.
func (s *VendorService) List(ctx context.Context, filter repository.VendorFilter) ([]domain.Vendor, error) {
	vendors, err := s.vendors.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return vendors, nil
}

// Get loads one vendor by uid.
func (s *VendorService) Get(ctx context.Context, uid string) (*domain.Vendor, error) {
	vendor, err := s.vendors.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("vendor", map[string]any{"vendor_uid": uid})
		}
		return nil, apperrors.MapError(err)
	}
	return vendor, nil
}

func (s *VendorService) readUpload(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, apperrors.NewValidationError("csv body required", nil)
	}
	limit := s.maxUploadBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	raw, err := io.ReadAll(io.LimitReader(body, int64(limit)+1))
	if err != nil {
		return nil, apperrors.NewValidationError("unreadable csv", map[string]any{"reason": err.Error()})
	}
	if len(raw) > limit {
		return nil, apperrors.NewPayloadTooLarge(limit)
	}
	return raw, nil
}

// createVendor inserts a new vendor. An empty password is generated.
func (s *VendorService) createVendor(ctx context.Context, repo repository.VendorRepository, row csvimport.Row, password string) (*domain.Vendor, string, error) {
	if password == "" {
		generated, err := auth.GeneratePassword(s.passwordLength)
		if err != nil {
			return nil, "", err
		}
		password = generated
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", err
	}
	uid, err := deriveUID(ctx, repo, row)
	if err != nil {
		return nil, "", err
	}

	vendor := &domain.Vendor{
		UID:          uid,
		ExternalID:   row.ExternalID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: hash,
		Active:       true,
	}
	if err := repo.Create(ctx, vendor); err != nil {
		return nil, "", err
	}
	return vendor, password, nil
}

func (s *VendorService) archive(ctx context.Context, raw []byte) string {
	key := archive.SyncKey(s.now())
	if err := s.archiver.Store(ctx, key, raw); err != nil {
		s.logger.Warn("archive vendor csv", zap.String("key", key), zap.Error(err))
		return ""
	}
	if _, nop := s.archiver.(archive.NopArchiver); nop {
		return ""
	}
	return key
}

func (s *VendorService) recordSync(result string, created int) {
	if s.metrics != nil {
		s.metrics.RecordSync(result, created)
	}
}

func (s *VendorService) publish(ctx context.Context, eventType events.EventType, subject string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Actor:     events.Actor{Type: domain.SubjectTypeAdmin},
		Timestamp: s.now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

// applyRow copies changed fields from row onto v. A blank external id never
// clears a stored one. The credential is never touched.
func applyRow(v *domain.Vendor, row csvimport.Row) bool {
	changed := false
	if row.Name != v.Name {
		v.Name = row.Name
		changed = true
	}
	if row.ExternalID != "" && row.ExternalID != v.ExternalID {
		v.ExternalID = row.ExternalID
		changed = true
	}
	return changed
}

// deriveUID picks the vendor's permanent chat identity.
func deriveUID(ctx context.Context, repo repository.VendorRepository, row csvimport.Row) (string, error) {
	base := ""
	if row.ExternalID != "" {
		base = "vendor_" + slug(row.ExternalID)
	} else {
		local := row.Email
		if at := strings.IndexByte(local, '@'); at >= 0 {
			local = local[:at]
		}
		base = "vendor_" + slug(local)
	}

	for attempt := 0; attempt < maxUIDAttempts; attempt++ {
		candidate := base
		if row.ExternalID == "" || attempt > 0 {
			candidate = base + "_" + randomSuffix()
		}
		_, err := repo.GetByUID(ctx, candidate)
		if errors.Is(err, pgx.ErrNoRows) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free uid for %s", row.Email)
}

func slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore && b.Len() > 0 {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if len(out) > maxSlugLength {
		out = strings.TrimRight(out[:maxSlugLength], "_")
	}
	if out == "" {
		return "v"
	}
	return out
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
