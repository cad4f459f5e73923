package events

import (
	"time"

	"github.com/spec-kit/vendor-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventVendorCreated      EventType = "vendor_created"
	EventVendorUpdated      EventType = "vendor_updated"
	EventVendorsSynced      EventType = "vendors_synced"
	EventCustomerAssigned   EventType = "customer_assigned"
	EventCustomerUnassigned EventType = "customer_unassigned"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{
	EventVendorCreated,
	EventVendorUpdated,
	EventVendorsSynced,
	EventCustomerAssigned,
	EventCustomerUnassigned,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   string             `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// VendorCreatedPayload payload. Source is "sync" or "manual".
type VendorCreatedPayload struct {
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Source string `json:"source"`
}

// VendorUpdatedPayload payload.
type VendorUpdatedPayload struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id,omitempty"`
}

// VendorsSyncedPayload payload.
type VendorsSyncedPayload struct {
	Added      int    `json:"added"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Total      int    `json:"total"`
	ArchiveKey string `json:"archive_key,omitempty"`
}

// CustomerAssignedPayload payload.
type CustomerAssignedPayload struct {
	CustomerUID       string `json:"customer_uid"`
	VendorUID         string `json:"vendor_uid"`
	PreviousVendorUID string `json:"previous_vendor_uid,omitempty"`
}

// CustomerUnassignedPayload payload.
type CustomerUnassignedPayload struct {
	CustomerUID string `json:"customer_uid"`
	VendorUID   string `json:"vendor_uid"`
}
