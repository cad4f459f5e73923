package dto

import (
	"time"

	"github.com/spec-kit/vendor-desk/internal/domain"
)

// AddVendorRequest payload for a manual vendor add.
type AddVendorRequest struct {
	ExternalID string `json:"externalId" validate:"max=128"`
	Email      string `json:"email" validate:"required,max=320"`
	Name       string `json:"name" validate:"required,max=200"`
	Password   string `json:"password" validate:"omitempty,min=8,max=72"`
}

// VendorResponse is the public view of a vendor. The credential never leaves
// the service.
type VendorResponse struct {
	UID        string    `json:"uid"`
	ExternalID string    `json:"externalId,omitempty"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AddVendorResponse is returned once, on creation.
type AddVendorResponse struct {
	Message  string         `json:"message"`
	Vendor   VendorResponse `json:"vendor"`
	Password string         `json:"password,omitempty"`
}

// NewVendorCredential is a generated password handed out exactly once.
type NewVendorCredential struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SyncResponse summarizes a vendor CSV sync.
type SyncResponse struct {
	Added      int                   `json:"added"`
	Updated    int                   `json:"updated"`
	Skipped    int                   `json:"skipped"`
	Total      int                   `json:"total"`
	NewVendors []NewVendorCredential `json:"newVendors"`
}

// VendorListResponse wraps GET /api/vendors.
type VendorListResponse struct {
	Vendors []VendorResponse `json:"vendors"`
}

// NewVendorResponse maps a vendor for output.
func NewVendorResponse(v domain.Vendor) VendorResponse {
	return VendorResponse{
		UID:        v.UID,
		ExternalID: v.ExternalID,
		Email:      v.Email,
		Name:       v.Name,
		Active:     v.Active,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

// NewSyncResponse maps a sync result for output.
func NewSyncResponse(res *domain.SyncResult) SyncResponse {
	out := SyncResponse{
		Added:      res.Added,
		Updated:    res.Updated,
		Skipped:    res.Skipped,
		Total:      res.Total,
		NewVendors: make([]NewVendorCredential, 0, len(res.NewVendors)),
	}
	for _, c := range res.NewVendors {
		out.NewVendors = append(out.NewVendors, NewVendorCredential{
			UID: c.UID, Name: c.Name, Email: c.Email, Password: c.Password,
		})
	}
	return out
}
