package auth

import (
	"github.com/inkforge/studio-backend/internal/identity"
)

// RegisterRequest captures the payload for creating a customer account.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Phone    *string `json:"phone,omitempty"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ClaimAccountRequest upgrades the guest account minted at express checkout
// into a password-protected customer account.
type ClaimAccountRequest struct {
	GuestSessionToken string `json:"guest_session_token" validate:"required"`
	Password          string `json:"password" validate:"required,min=8"`
}

// AuthResponse contains the token and user produced by a successful
// register, login, or claim.
type AuthResponse struct {
	AccessToken string            `json:"access_token"`
	User        *identity.UserDTO `json:"user"`
}
