// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
	Password   string `json:"password"   validate:"required,max=128"`
}

type RegisterRequest struct {
	UserName string `json:"username" validate:"required,min=3,max=64,excludesall=@"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"        validate:"required,email,max=255"`
	Token       string `json:"token"        validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=128"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=128"`
	NewPassword     string `json:"new_password"     validate:"required,max=128"`
}

type TokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type UserResponse struct {
	ID       string `json:"id"`
	UserName string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

type LogoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SessionInfo struct {
	ID          string    `json:"id"`
	CreatedByIP string    `json:"created_by_ip"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

func toUserResponse(cred *Credential) UserResponse {
	return UserResponse{
		ID:       cred.ID,
		UserName: cred.UserName,
		Email:    cred.Email,
		Role:     cred.Role,
	}
}

func toSessionInfo(t RefreshToken) SessionInfo {
	return SessionInfo{
		ID:          t.ID,
		CreatedByIP: t.CreatedByIP,
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
	}
}
