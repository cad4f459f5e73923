package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/vendor-desk/internal/api/dto"
	"github.com/spec-kit/vendor-desk/internal/auth"
	"github.com/spec-kit/vendor-desk/internal/service"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

// ActiveVendorHandler exposes the storefront's active vendor.
type ActiveVendorHandler struct {
	active *service.ActiveVendorService
}

// NewActiveVendorHandler constructs handler.
func NewActiveVendorHandler(active *service.ActiveVendorService) *ActiveVendorHandler {
	return &ActiveVendorHandler{active: active}
}

// SetActive handles POST /api/vendor/set-active. A vendor may only mark
// themselves; the body uid defaults to the caller.
func (h *ActiveVendorHandler) SetActive(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Vendor == nil {
		return apperrors.NewForbidden("vendor required")
	}
	var req dto.SetActiveRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	if req.UID != "" && req.UID != principal.Vendor.UID {
		return apperrors.NewForbidden("access denied")
	}

	if err := h.active.SetActive(c.UserContext(), principal.Vendor.UID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{})
}

// Current handles GET /api/vendor/active.
func (h *ActiveVendorHandler) Current(c *fiber.Ctx) error {
	vendor, err := h.active.Current(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.ActiveVendorResponse{UID: vendor.UID, Name: vendor.Name})
}
