package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Signup handles account registration
// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.authService.Signup(&req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, gin.H{"user": user, "verification_required": true})
}

// VerifyEmail consumes the link sent after signup
// GET /api/auth/verify-email?token=
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	user, err := h.authService.VerifyEmail(c.Query("token"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"email": user.Email, "email_verified": user.EmailVerified})
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates the refresh token
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

// Logout revokes the refresh token; the access token simply expires.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := h.authService.RevokeRefreshToken(req.RefreshToken); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "logged out"})
}

// GetCurrentUser returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	response.Success(c, currentUser(c))
}

// GetAuthConfig tells the login page which sign-in methods exist
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{"ldap_enabled": h.authService.IsLDAPEnabled()})
}

// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ChangePassword(currentUser(c).ID, &req); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "password changed"})
}

// ForgotPassword always answers 200 so the endpoint cannot be used to probe emails.
// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ForgotPassword(req.Email); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "if the address is registered, a reset link has been sent"})
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ResetPassword(&req); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "password updated"})
}
