package dto

import "time"

// LoginRequest payload for vendor and super-user login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=320"`
	Password string `json:"password" validate:"required,max=256"`
}

// VendorLoginResponse carries the chat session token next to the dashboard
// access token.
type VendorLoginResponse struct {
	Token       string    `json:"token"`
	UID         string    `json:"uid"`
	Name        string    `json:"name"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AdminLoginResponse standard response for super-user login.
type AdminLoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
