package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/vendor-desk/internal/domain"
	"github.com/spec-kit/vendor-desk/internal/repository"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	SubjectID   string
	Vendor      *domain.Vendor
}

// IsAdmin reports whether the caller is the super-user.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.SubjectType == domain.SubjectTypeAdmin
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens  *TokenManager
	vendors repository.VendorRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, vendors repository.VendorRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, vendors: vendors}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{SubjectType: claims.Kind, SubjectID: claims.Subject}

	switch claims.Kind {
	case domain.SubjectTypeAdmin:
	case domain.SubjectTypeVendor:
		vendor, err := m.vendors.GetByUID(c.UserContext(), claims.Subject)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("vendor not found")
			}
			return apperrors.MapError(err)
		}
		if !vendor.Active {
			return apperrors.NewUnauthorized("vendor inactive")
		}
		principal.Vendor = vendor
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
