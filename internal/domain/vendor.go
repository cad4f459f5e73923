package domain

import "time"

// Vendor is a seller account with dashboard and chat access.
type Vendor struct {
	UID          string
	ExternalID   string
	Email        string
	Name         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VendorCredential is the one-time plaintext handed out when a vendor is created.
type VendorCredential struct {
	UID      string
	Name     string
	Email    string
	Password string
}
