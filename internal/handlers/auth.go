package handlers

import (
	"github.com/dhrustimirsdar/customerreviewpost/internal/middleware"
	"github.com/dhrustimirsdar/customerreviewpost/internal/services"
	"github.com/dhrustimirsdar/customerreviewpost/pkg/response"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Signup creates a user account and signs it in
// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Signup(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh exchanges a refresh token for a new token pair
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refresh_token is required")
		return
	}

	result, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// Logout revokes the refresh token when one is supplied. The access token
// simply expires.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		if err := h.authService.RevokeRefreshToken(req.RefreshToken); err != nil {
			response.Error(c, err)
			return
		}
	}

	response.OK(c, gin.H{"message": "logged out successfully"})
}

// GetCurrentUser returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, user)
}

// GetAuthConfig tells the login page which options to show
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.OK(c, gin.H{
		"ldap_enabled":   h.authService.IsLDAPEnabled(),
		"signup_enabled": h.authService.SignupAllowed(),
	})
}

// ChangePassword changes a local user's password
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.authService.ChangePassword(middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "password changed"})
}
