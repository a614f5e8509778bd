package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/config"
	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/dhrustimirsdar/customerreviewpost/internal/utils"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/logger"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"gorm.io/gorm"
)

const (
	minPasswordLength  = 6
	refreshTokenHours  = 720
	errInvalidLoginMsg = "Invalid email or password"
)

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
	authConfig  *config.AuthConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, authCfg *config.AuthConfig, ldapCfg *config.LDAPConfig) *AuthService {
	if authCfg == nil {
		authCfg = &config.AuthConfig{}
	}
	return &AuthService{
		db:          db,
		ldapService: NewLDAPService(ldapCfg),
		jwtConfig:   jwtCfg,
		authConfig:  authCfg,
	}
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	AuthType string `json:"auth_type"` // local, ldap
}

type LoginResult struct {
	AccessToken     string       `json:"token"`
	AccessExpireAt  time.Time    `json:"expire_at"`
	RefreshToken    string       `json:"refresh_token"`
	RefreshExpireAt time.Time    `json:"refresh_expire_at"`
	User            *models.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a local account with the user role.
func (s *AuthService) Signup(req *SignupRequest, clientIP, userAgent string) (*LoginResult, error) {
	if !s.authConfig.AllowSignup {
		return nil, response.NewForbidden("Signup is disabled")
	}

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, response.NewValidationError("A valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, response.NewValidationError("Password must be at least 6 characters")
	}

	var count int64
	if err := s.db.Model(&models.User{}).Unscoped().Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}
	if count > 0 {
		return nil, response.NewValidationError("Email already registered")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, response.NewValidationError(err.Error())
	}

	user := &models.User{
		Email:    email,
		Password: hashed,
		Name:     strings.TrimSpace(req.Name),
		Role:     models.RoleUser,
		AuthType: models.AuthTypeLocal,
		IsActive: true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}

	logger.Info().Uint("user_id", user.ID).Msg("[Auth] user signed up")
	return s.issueTokens(user, clientIP, userAgent)
}

// Login authenticates against the local store or LDAP and issues tokens.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user *models.User
	var err error

	if req.AuthType == "" {
		req.AuthType = models.AuthTypeLocal
	}

	switch req.AuthType {
	case models.AuthTypeLocal:
		user, err = s.localAuth(req.Email, req.Password)
	case models.AuthTypeLDAP:
		user, err = s.ldapAuth(req.Email, req.Password)
	default:
		return nil, response.NewValidationError("invalid auth type")
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.Model(user).Update("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Uint("user_id", user.ID).Msg("[Auth] failed to record last login")
	}

	return s.issueTokens(user, clientIP, userAgent)
}

func (s *AuthService) issueTokens(user *models.User, clientIP, userAgent string) (*LoginResult, error) {
	accessHours := s.jwtConfig.ExpireHour
	if accessHours <= 0 {
		accessHours = 24
	}

	token, err := utils.GenerateToken(user.ID, user.Email, user.Role, accessHours)
	if err != nil {
		return nil, response.NewUpstreamError(err)
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, response.NewUpstreamError(err)
	}

	refreshExpireAt := time.Now().Add(refreshTokenHours * time.Hour)
	record := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   refreshExpireAt,
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}

	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  time.Now().Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshExpireAt,
		User:            user,
	}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *AuthService) Refresh(refreshToken, clientIP, userAgent string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, response.NewValidationError("refresh_token is required")
	}

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("Invalid refresh token")
		}
		return nil, response.NewUpstreamError(err)
	}
	if !stored.Usable(time.Now()) {
		if stored.RevokedAt != nil {
			return nil, response.NewUnauthorized("Refresh token revoked")
		}
		return nil, response.NewUnauthorized("Refresh token expired")
	}

	user, err := s.GetUserByID(stored.UserID)
	if err != nil {
		return nil, response.NewUnauthorized("User not found")
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("User is disabled")
	}

	result, err := s.issueTokens(user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	var replacement models.RefreshToken
	if err := s.db.Where("token_hash = ?", hashRefreshToken(result.RefreshToken)).First(&replacement).Error; err == nil {
		now := time.Now()
		s.db.Model(&stored).Updates(map[string]interface{}{
			"revoked_at":           now,
			"replaced_by_token_id": replacement.ID,
		})
	}
	return result, nil
}

func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) localAuth(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND auth_type = ?", normalizeEmail(email), models.AuthTypeLocal).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized(errInvalidLoginMsg)
		}
		return nil, response.NewUpstreamError(err)
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("User is disabled")
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, response.NewUnauthorized(errInvalidLoginMsg)
	}
	return &user, nil
}

func (s *AuthService) ldapAuth(username, password string) (*models.User, error) {
	ldapUser, err := s.ldapService.Authenticate(strings.TrimSpace(username), password)
	if err != nil {
		logger.Warn().Err(err).Str("username", username).Msg("[Auth] LDAP authentication failed")
		return nil, response.NewUnauthorized(errInvalidLoginMsg)
	}

	email := normalizeEmail(ldapUser.Email)
	if email == "" {
		email = normalizeEmail(ldapUser.Username)
	}
	role := models.RoleUser
	if ldapUser.IsAdmin {
		role = models.RoleAdmin
	}

	var user models.User
	err = s.db.Where("email = ? AND auth_type = ?", email, models.AuthTypeLDAP).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Email:    email,
			Name:     ldapUser.Name,
			Role:     role,
			AuthType: models.AuthTypeLDAP,
			IsActive: true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, response.NewUpstreamError(err)
		}
		return &user, nil
	} else if err != nil {
		return nil, response.NewUpstreamError(err)
	}

	if !user.IsActive {
		return nil, response.NewUnauthorized("User is disabled")
	}

	user.Name = ldapUser.Name
	if s.ldapService.config.AdminGroup != "" {
		user.Role = role
	}
	if err := s.db.Model(&user).Updates(map[string]interface{}{"name": user.Name, "role": user.Role}).Error; err != nil {
		return nil, response.NewUpstreamError(err)
	}
	return &user, nil
}

func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("User not found")
		}
		return nil, response.NewUpstreamError(err)
	}
	return &user, nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.IsEnabled()
}

func (s *AuthService) SignupAllowed() bool {
	return s.authConfig.AllowSignup
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user.AuthType != models.AuthTypeLocal {
		return response.NewValidationError("LDAP users cannot change password here")
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return response.NewValidationError("Incorrect old password")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return response.NewValidationError(err.Error())
	}
	return s.db.Model(user).Update("password", hashed).Error
}
