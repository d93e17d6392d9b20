package model

import "time"

// Subscription tier constants.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Application role constants.
const (
	RoleAdmin   = "admin"
	RoleDefault = "user"
)

// ValidTier reports whether s is a recognized subscription tier.
func ValidTier(s string) bool {
	switch s {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// Profile is the user-facing account record, one-to-one with an identity.
// The ID equals the identity ID.
type Profile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Avatar       string    `json:"avatar,omitempty"`
	Role         string    `json:"role,omitempty"`
	Subscription string    `json:"subscription"`
	JoinedDate   time.Time `json:"joined_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserRole assigns an application role to an identity.
type UserRole struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
