package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/domain"
	"github.com/spec-kit/vendor-desk/internal/events"
	"github.com/spec-kit/vendor-desk/internal/repository"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

// customerLookupConcurrency bounds parallel chat directory lookups.
const customerLookupConcurrency = 8

// AssignmentService routes customers to vendors.
type AssignmentService struct {
	assignments repository.AssignmentRepository
	vendors     repository.VendorRepository
	transport   chat.Transport
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	AssignmentRepo repository.AssignmentRepository
	VendorRepo     repository.VendorRepository
	Transport      chat.Transport
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: deps.AssignmentRepo,
		vendors:     deps.VendorRepo,
		transport:   deps.Transport,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// Assign routes customerUID to vendorUID, replacing any earlier vendor. Both
// ids must exist; on any failure the mapping is left as it was.
func (s *AssignmentService) Assign(ctx context.Context, customerUID, vendorUID string) (*domain.Assignment, error) {
	customerUID = strings.TrimSpace(customerUID)
	vendorUID = strings.TrimSpace(vendorUID)
	if customerUID == "" {
		return nil, apperrors.NewValidationError("customer uid required", map[string]any{"field": "customerId"})
	}
	if vendorUID == "" {
		return nil, apperrors.NewValidationError("vendor uid required", map[string]any{"field": "vendorId"})
	}

	vendor, err := s.vendors.GetByUID(ctx, vendorUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("vendor", map[string]any{"vendor_uid": vendorUID})
		}
		return nil, apperrors.MapError(err)
	}
	if !vendor.Active {
		return nil, apperrors.NewConflict("vendor inactive", map[string]any{"vendor_uid": vendorUID})
	}

	if err := s.ensureCustomer(ctx, customerUID); err != nil {
		return nil, err
	}

	previous := ""
	if current, err := s.assignments.GetByCustomer(ctx, customerUID); err == nil {
		previous = current.VendorUID
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	assignment := &domain.Assignment{CustomerUID: customerUID, VendorUID: vendorUID}
	if err := s.assignments.Upsert(ctx, assignment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventCustomerAssigned, customerUID, events.CustomerAssignedPayload{
		CustomerUID:       customerUID,
		VendorUID:         vendorUID,
		PreviousVendorUID: previous,
	})
	return assignment, nil
}

// Unassign drops the customer's routing entry.
func (s *AssignmentService) Unassign(ctx context.Context, customerUID string) error {
	current, err := s.assignments.GetByCustomer(ctx, customerUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("assignment", map[string]any{"customer_uid": customerUID})
		}
		return apperrors.MapError(err)
	}
	if err := s.assignments.Delete(ctx, customerUID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("assignment", map[string]any{"customer_uid": customerUID})
		}
		return apperrors.MapError(err)
	}
	s.publish(ctx, events.EventCustomerUnassigned, customerUID, events.CustomerUnassignedPayload{
		CustomerUID: customerUID,
		VendorUID:   current.VendorUID,
	})
	return nil
}

// ListAssignments returns the full customer to vendor mapping.
func (s *AssignmentService) ListAssignments(ctx context.Context) (map[string]string, error) {
	rows, err := s.assignments.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	mapping := make(map[string]string, len(rows))
	for _, a := range rows {
		mapping[a.CustomerUID] = a.VendorUID
	}
	return mapping, nil
}

// CustomersForVendor returns the customer uids currently routed to vendorUID,
// read from the store on every call.
func (s *AssignmentService) CustomersForVendor(ctx context.Context, vendorUID string) ([]string, error) {
	if _, err := s.vendors.GetByUID(ctx, vendorUID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("vendor", map[string]any{"vendor_uid": vendorUID})
		}
		return nil, apperrors.MapError(err)
	}
	rows, err := s.assignments.ListByVendor(ctx, vendorUID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	uids := make([]string, 0, len(rows))
	for _, a := range rows {
		uids = append(uids, a.CustomerUID)
	}
	return uids, nil
}

// AssignedCustomers resolves the vendor's customers against the chat
// directory. Customers the directory no longer knows are dropped.
func (s *AssignmentService) AssignedCustomers(ctx context.Context, vendorUID string) ([]domain.Customer, error) {
	uids, err := s.CustomersForVendor(ctx, vendorUID)
	if err != nil {
		return nil, err
	}

	found := make([]*domain.Customer, len(uids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(customerLookupConcurrency)
	for i, uid := range uids {
		g.Go(func() error {
			user, err := s.transport.GetUser(gctx, uid)
			if errors.Is(err, chat.ErrUserNotFound) {
				s.logger.Warn("assigned customer missing from chat directory",
					zap.String("customer_uid", uid), zap.String("vendor_uid", vendorUID))
				return nil
			}
			if err != nil {
				return chatFailure("get_user", err)
			}
			c := customerFromUser(*user)
			found[i] = &c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	customers := make([]domain.Customer, 0, len(found))
	for _, c := range found {
		if c != nil {
			customers = append(customers, *c)
		}
	}
	return customers, nil
}

// IsAssigned reports whether customerUID is routed to vendorUID.
func (s *AssignmentService) IsAssigned(ctx context.Context, customerUID, vendorUID string) (bool, error) {
	current, err := s.assignments.GetByCustomer(ctx, customerUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.MapError(err)
	}
	return current.VendorUID == vendorUID, nil
}

func (s *AssignmentService) ensureCustomer(ctx context.Context, customerUID string) error {
	notFound := apperrors.NewNotFound("customer", map[string]any{"customer_uid": customerUID})

	// vendor identities live in the same chat directory but are not customers
	if _, err := s.vendors.GetByUID(ctx, customerUID); err == nil {
		return notFound
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}

	user, err := s.transport.GetUser(ctx, customerUID)
	if errors.Is(err, chat.ErrUserNotFound) {
		return notFound
	}
	if err != nil {
		return chatFailure("get_user", err)
	}
	if user.Role == chat.RoleVendor {
		return notFound
	}
	return nil
}

func (s *AssignmentService) publish(ctx context.Context, eventType events.EventType, subject string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Actor:     events.Actor{Type: domain.SubjectTypeAdmin},
		Timestamp: time.Now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
