package models

import "github.com/golang-jwt/jwt/v5"

// Roles recognized by the trust engine. Tokens are minted by the identity
// service; we only decode them.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserClaims is the JWT payload issued by the identity gateway.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the claims carry the admin role.
func (c *UserClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
