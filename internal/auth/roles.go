package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

// RequireAdmin ensures the super-user is authenticated.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || !principal.IsAdmin() {
			return apperrors.NewForbidden("super-user required")
		}
		return c.Next()
	}
}

// RequireVendor ensures a vendor is authenticated.
func RequireVendor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Vendor == nil {
			return apperrors.NewForbidden("vendor required")
		}
		return c.Next()
	}
}

// RequireVendorSelf lets a vendor reach only routes whose uid parameter names
// themselves. The super-user passes for any uid.
func RequireVendorSelf(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.IsAdmin() {
			return c.Next()
		}
		if principal.Vendor == nil || principal.Vendor.UID != c.Params(param) {
			return apperrors.NewForbidden("access denied")
		}
		return c.Next()
	}
}
