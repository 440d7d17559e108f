package model

import "errors"

// AuthRequest types
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type RegisterRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Phone       string `json:"phone" binding:"omitempty,max=20"`
	Address     string `json:"address" binding:"omitempty,max=255"`
	DateOfBirth string `json:"dateOfBirth" binding:"omitempty,datetime=2006-01-02"`
}

type RefreshTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// AuthResponse types
type TokenResponse struct {
	Token  string `json:"token"`
	Role   Role   `json:"role"`
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
}

// Principal is the authenticated caller extracted from a session token.
type Principal struct {
	Email  string
	Role   Role
	UserID int64
}

// Auth errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)
