package domain

import "time"

// Assignment routes one customer to one vendor.
type Assignment struct {
	CustomerUID string
	VendorUID   string
	AssignedAt  time.Time
}
