package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Auth DTOs ====================

// AccountRequest is the signed account message used by /account and /auth
type AccountRequest struct {
	Address   string `json:"address"`   // checksum wallet address
	Signature string `json:"signature"` // signature over address || timestamp
	Timestamp *int64 `json:"timestamp"` // unix seconds
}

// AuthResponse Authentication response structure
type AuthResponse struct {
	Address   string `json:"address"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	Created   bool   `json:"created"`
}

// JWTClaims JWT Claims structure
type JWTClaims struct {
	Address string `json:"address"` // EIP-55 wallet address
	jwt.RegisteredClaims
}
