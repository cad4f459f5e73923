package service

import (
	"context"

	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/domain"
	"github.com/spec-kit/vendor-desk/internal/repository"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

// CustomerService reads customers from the chat directory.
type CustomerService struct {
	transport chat.Transport
	vendors   repository.VendorRepository
}

// NewCustomerService creates the service.
func NewCustomerService(transport chat.Transport, vendors repository.VendorRepository) *CustomerService {
	return &CustomerService{transport: transport, vendors: vendors}
}

// List returns every chat user that is not a vendor.
func (s *CustomerService) List(ctx context.Context) ([]domain.Customer, error) {
	users, err := s.transport.ListUsers(ctx)
	if err != nil {
		return nil, chatFailure("list_users", err)
	}
	vendors, err := s.vendors.List(ctx, repository.VendorFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	vendorUIDs := make(map[string]struct{}, len(vendors))
	for _, v := range vendors {
		vendorUIDs[v.UID] = struct{}{}
	}

	customers := make([]domain.Customer, 0, len(users))
	for _, u := range users {
		if _, isVendor := vendorUIDs[u.UID]; isVendor || u.Role == chat.RoleVendor {
			continue
		}
		customers = append(customers, customerFromUser(u))
	}
	return customers, nil
}

func customerFromUser(u chat.User) domain.Customer {
	return domain.Customer{UID: u.UID, Name: u.Name, Email: u.Email(), Status: u.Status}
}
