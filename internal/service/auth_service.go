package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/auth"
	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/config"
	"github.com/spec-kit/vendor-desk/internal/domain"
	"github.com/spec-kit/vendor-desk/internal/repository"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

const invalidCredentials = "invalid credentials"

// AuthService handles vendor and super-user login.
type AuthService struct {
	vendors       repository.VendorRepository
	transport     chat.Transport
	tokenMgr      *auth.TokenManager
	adminEmail    string
	adminPassword string
	dummyHash     string
	logger        *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	VendorRepo repository.VendorRepository
	Transport  chat.Transport
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	// compared against when the email is unknown so both failures cost one bcrypt run
	dummyHash, err := auth.HashPassword("vendor-desk-unknown-account", cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		vendors:       deps.VendorRepo,
		transport:     deps.Transport,
		tokenMgr:      auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		adminEmail:    strings.ToLower(strings.TrimSpace(cfg.Auth.AdminEmail)),
		adminPassword: cfg.Auth.AdminPassword,
		dummyHash:     dummyHash,
		logger:        logger,
	}, nil
}

// LoginVendor checks the vendor's credential and opens a chat session for
// their identity. Unknown email, inactive account and wrong password fail
// with the same error.
func (s *AuthService) LoginVendor(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		_ = auth.ComparePassword(s.dummyHash, password)
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}

	vendor, err := s.vendors.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = auth.ComparePassword(s.dummyHash, password)
			return nil, apperrors.NewUnauthorized(invalidCredentials)
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(vendor.PasswordHash, password); err != nil || !vendor.Active {
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}

	chatToken, err := s.chatToken(ctx, vendor)
	if err != nil {
		return nil, err
	}

	token, exp, err := s.tokenMgr.GenerateToken(vendor.UID, domain.SubjectTypeVendor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("vendor logged in", zap.String("vendor_uid", vendor.UID))
	return &domain.Session{Vendor: vendor, ChatToken: chatToken, AccessToken: token, ExpiresAt: exp}, nil
}

// LoginAdmin checks the configured super-user credentials.
func (s *AuthService) LoginAdmin(_ context.Context, email, password string) (string, time.Time, error) {
	if s.adminEmail == "" || s.adminPassword == "" {
		return "", time.Time{}, apperrors.NewUnauthorized(invalidCredentials)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1
	if !emailOK || !passwordOK {
		return "", time.Time{}, apperrors.NewUnauthorized(invalidCredentials)
	}

	token, exp, err := s.tokenMgr.GenerateToken(s.adminEmail, domain.SubjectTypeAdmin)
	if err != nil {
		return "", time.Time{}, apperrors.MapError(err)
	}
	return token, exp, nil
}

// Logout currently no-ops for stateless JWT approach.
func (s *AuthService) Logout(_ context.Context, _ string) error {
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// chatToken requests a chat session token, creating the vendor's chat
// identity first when provisioning never happened.
func (s *AuthService) chatToken(ctx context.Context, vendor *domain.Vendor) (string, error) {
	token, err := s.transport.CreateAuthToken(ctx, vendor.UID)
	if errors.Is(err, chat.ErrUserNotFound) {
		s.logger.Warn("vendor chat identity missing; creating", zap.String("vendor_uid", vendor.UID))
		if err := s.transport.CreateUser(ctx, vendorChatUser(vendor.UID, vendor.Name, vendor.Email)); err != nil {
			return "", chatFailure("create_user", err)
		}
		token, err = s.transport.CreateAuthToken(ctx, vendor.UID)
	}
	if err != nil {
		if errors.Is(err, chat.ErrUserNotFound) {
			return "", apperrors.NewTransportError("create_auth_token", err)
		}
		return "", chatFailure("create_auth_token", err)
	}
	return token, nil
}
