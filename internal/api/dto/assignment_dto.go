package dto

import "github.com/spec-kit/vendor-desk/internal/domain"

// AssignRequest routes a customer to a vendor.
type AssignRequest struct {
	CustomerID string `json:"customerId" validate:"required,max=100"`
	VendorID   string `json:"vendorId" validate:"required,max=100"`
}

// AssignmentsResponse maps customer uid to vendor uid.
type AssignmentsResponse struct {
	Assignments map[string]string `json:"assignments"`
}

// CustomerResponse is a chat directory customer.
type CustomerResponse struct {
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status,omitempty"`
}

// CustomerListResponse wraps customer lists.
type CustomerListResponse struct {
	Customers []CustomerResponse `json:"customers"`
}

// NewCustomerListResponse maps customers for output.
func NewCustomerListResponse(customers []domain.Customer) CustomerListResponse {
	out := CustomerListResponse{Customers: make([]CustomerResponse, 0, len(customers))}
	for _, c := range customers {
		out.Customers = append(out.Customers, CustomerResponse{UID: c.UID, Name: c.Name, Email: c.Email, Status: c.Status})
	}
	return out
}

// SetActiveRequest marks a vendor active for the storefront widget.
type SetActiveRequest struct {
	UID string `json:"uid" validate:"omitempty,max=100"`
}

// ActiveVendorResponse names the active vendor.
type ActiveVendorResponse struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}
