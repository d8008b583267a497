package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"researchblog/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type forgotRequest struct {
	Email string `json:"email" form:"email"`
}

type resetRequest struct {
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	res, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(c, err, "Registration failed")
		return
	}

	body := gin.H{"message": res.Message}
	if res.VerificationURL != "" {
		body["verificationUrl"] = res.VerificationURL
	}
	c.JSON(http.StatusOK, body)
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if err := h.auth.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		respondError(c, err, "Verification failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": services.MsgEmailVerified})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, err, "Failed to send password reset email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": services.MsgResetEmailSent})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		respondError(c, err, "Password reset failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": services.MsgPasswordResetDone})
}
