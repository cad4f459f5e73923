package domain

import "time"

// SubjectType differentiates vendor and super-user tokens.
type SubjectType string

const (
	SubjectTypeVendor SubjectType = "VENDOR"
	SubjectTypeAdmin  SubjectType = "ADMIN"
)

// Session is what a successful vendor login hands back.
type Session struct {
	Vendor      *Vendor
	ChatToken   string
	AccessToken string
	ExpiresAt   time.Time
}
