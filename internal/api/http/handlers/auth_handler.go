package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vendor-desk/internal/api/dto"
	"github.com/spec-kit/vendor-desk/internal/service"
)

// AuthHandler exposes login endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// VendorLogin handles POST /api/vendor/login.
func (h *AuthHandler) VendorLogin(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	session, err := h.auth.LoginVendor(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(dto.VendorLoginResponse{
		Token:       session.ChatToken,
		UID:         session.Vendor.UID,
		Name:        session.Vendor.Name,
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
	})
}

// AdminLogin handles POST /api/admin/login.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	token, exp, err := h.auth.LoginAdmin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.AdminLoginResponse{AccessToken: token, ExpiresAt: exp})
}

// Logout handles POST /api/vendor/logout. Sessions are stateless, so this
// only acknowledges.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.UserContext(), ""); err != nil {
		return err
	}
	return c.JSON(fiber.Map{})
}
