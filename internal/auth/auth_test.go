package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/vendor-desk/internal/domain"
)

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]struct{})
	for range 50 {
		pw, err := GeneratePassword(12)
		require.NoError(t, err)
		assert.Len(t, pw, 12)
		for _, r := range pw {
			assert.Contains(t, passwordAlphabet, string(r))
		}
		seen[pw] = struct{}{}
	}
	assert.Len(t, seen, 50)
}

func TestGeneratePasswordRejectsShortLength(t *testing.T) {
	_, err := GeneratePassword(MinGeneratedPasswordLength - 1)
	require.Error(t, err)
}

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "s3cret-pass"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	token, exp, err := tm.GenerateToken("vendor_v1", domain.SubjectTypeVendor)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "vendor_v1", claims.Subject)
	assert.Equal(t, domain.SubjectTypeVendor, claims.Kind)
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", 5).GenerateToken("admin", domain.SubjectTypeAdmin)
	require.NoError(t, err)

	_, err = NewTokenManager("two", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{Kind: domain.SubjectTypeAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRequiresIssuerAndExpiry(t *testing.T) {
	for name, rc := range map[string]jwt.RegisteredClaims{
		"foreign issuer": {Issuer: "someone-else", Subject: "admin", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		"no expiry":      {Issuer: tokenIssuer, Subject: "admin"},
		"expired":        {Issuer: tokenIssuer, Subject: "admin", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
		"no subject":     {Issuer: tokenIssuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	} {
		t.Run(name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Kind: domain.SubjectTypeAdmin, RegisteredClaims: rc}).
				SignedString([]byte("secret"))
			require.NoError(t, err)

			_, err = NewTokenManager("secret", 5).ParseToken(token)
			assert.Error(t, err)
		})
	}
}
