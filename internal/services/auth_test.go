package services

import (
	"testing"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/internal/utils"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAuthService(t *testing.T, allowSignup bool) (*gorm.DB, *AuthService) {
	t.Helper()
	db := newTestDB(t)
	utils.SetJWTSecret("test-secret")
	return db, NewAuthService(db, &config.JWTConfig{ExpireHour: 1}, &config.AuthConfig{AllowSignup: allowSignup}, nil)
}

func TestSignupAndLogin(t *testing.T) {
	_, svc := newAuthService(t, true)

	signed, err := svc.Signup(&SignupRequest{Email: " Alice@Example.com ", Password: "secret123", Name: "Alice"}, "127.0.0.1", "test")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", signed.User.Email)
	assert.Equal(t, models.RoleUser, signed.User.Role)

	claims, err := utils.ParseToken(signed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, signed.User.ID, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)

	logged, err := svc.Login(&LoginRequest{Email: "alice@example.com", Password: "secret123"}, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, logged.RefreshToken)
	assert.NotNil(t, logged.User.LastLogin)

	_, err = svc.Login(&LoginRequest{Email: "alice@example.com", Password: "wrong"}, "", "")
	assert.True(t, response.IsKind(err, response.KindUnauthorized))

	_, err = svc.Login(&LoginRequest{Email: "nobody@example.com", Password: "secret123"}, "", "")
	assert.True(t, response.IsKind(err, response.KindUnauthorized))
}

func TestSignupValidation(t *testing.T) {
	_, svc := newAuthService(t, true)

	_, err := svc.Signup(&SignupRequest{Email: "not-an-email", Password: "secret123"}, "", "")
	assert.True(t, response.IsKind(err, response.KindValidation))

	_, err = svc.Signup(&SignupRequest{Email: "a@b.c", Password: "123"}, "", "")
	assert.True(t, response.IsKind(err, response.KindValidation))

	_, err = svc.Signup(&SignupRequest{Email: "a@b.c", Password: "secret123"}, "", "")
	require.NoError(t, err)
	_, err = svc.Signup(&SignupRequest{Email: "A@B.C", Password: "secret123"}, "", "")
	assert.True(t, response.IsKind(err, response.KindValidation), "duplicate email")
}

func TestSignupDisabled(t *testing.T) {
	_, svc := newAuthService(t, false)
	_, err := svc.Signup(&SignupRequest{Email: "a@b.c", Password: "secret123"}, "", "")
	assert.True(t, response.IsKind(err, response.KindForbidden))
}

func TestLogin_InvalidAuthTypeAndDisabledLDAP(t *testing.T) {
	_, svc := newAuthService(t, true)

	_, err := svc.Login(&LoginRequest{Email: "a@b.c", Password: "x", AuthType: "oauth"}, "", "")
	assert.True(t, response.IsKind(err, response.KindValidation))

	assert.False(t, svc.IsLDAPEnabled())
	_, err = svc.Login(&LoginRequest{Email: "a@b.c", Password: "x", AuthType: "ldap"}, "", "")
	assert.True(t, response.IsKind(err, response.KindUnauthorized))
}

func TestLogin_InactiveUser(t *testing.T) {
	db, svc := newAuthService(t, true)
	res, err := svc.Signup(&SignupRequest{Email: "a@b.c", Password: "secret123"}, "", "")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", res.User.ID).Update("is_active", false).Error)

	_, err = svc.Login(&LoginRequest{Email: "a@b.c", Password: "secret123"}, "", "")
	assert.True(t, response.IsKind(err, response.KindUnauthorized))
}

func TestRefreshRotatesToken(t *testing.T) {
	db, svc := newAuthService(t, true)
	first, err := svc.Signup(&SignupRequest{Email: "a@b.c", Password: "secret123"}, "", "")
	require.NoError(t, err)

	second, err := svc.Refresh(first.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(first.RefreshToken, "", "")
	assert.True(t, response.IsKind(err, response.KindUnauthorized), "old token is revoked")

	require.NoError(t, svc.RevokeRefreshToken(second.RefreshToken))
	_, err = svc.Refresh(second.RefreshToken, "", "")
	assert.True(t, response.IsKind(err, response.KindUnauthorized))

	var expired models.RefreshToken
	require.NoError(t, db.Where("token_hash = ?", hashRefreshToken(first.RefreshToken)).First(&expired).Error)
	assert.NotNil(t, expired.ReplacedByTokenID)

	_, err = svc.Refresh("", "", "")
	assert.True(t, response.IsKind(err, response.KindValidation))
}

func TestRefreshExpired(t *testing.T) {
	db, svc := newAuthService(t, true)
	res, err := svc.Signup(&SignupRequest{Email: "a@b.c", Password: "secret123"}, "", "")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.RefreshToken{}).
		Where("token_hash = ?", hashRefreshToken(res.RefreshToken)).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err = svc.Refresh(res.RefreshToken, "", "")
	assert.True(t, response.IsKind(err, response.KindUnauthorized))
}

func TestChangePassword(t *testing.T) {
	_, svc := newAuthService(t, true)
	res, err := svc.Signup(&SignupRequest{Email: "a@b.c", Password: "secret123"}, "", "")
	require.NoError(t, err)

	err = svc.ChangePassword(res.User.ID, &ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newsecret"})
	assert.True(t, response.IsKind(err, response.KindValidation))

	require.NoError(t, svc.ChangePassword(res.User.ID, &ChangePasswordRequest{OldPassword: "secret123", NewPassword: "newsecret"}))
	_, err = svc.Login(&LoginRequest{Email: "a@b.c", Password: "newsecret"}, "", "")
	assert.NoError(t, err)
}

func TestLDAPAdminGroup(t *testing.T) {
	svc := NewLDAPService(&config.LDAPConfig{AdminGroup: "cn=support-admins,ou=groups,dc=example,dc=com"})
	assert.True(t, svc.inAdminGroup([]string{"cn=staff,ou=groups,dc=example,dc=com", "CN=Support-Admins,OU=groups,DC=example,DC=com"}))
	assert.False(t, svc.inAdminGroup([]string{"cn=staff,ou=groups,dc=example,dc=com"}))

	none := NewLDAPService(&config.LDAPConfig{})
	assert.False(t, none.inAdminGroup([]string{"cn=support-admins"}))
	assert.False(t, none.IsEnabled())
}
