package auth

import (
	"github.com/golang-jwt/jwt/v4"

	"github.com/signalworks/storefront/internal/shared"
)

// Claims is the bearer token payload issued by the identity provider.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into the caller identity used by the engines.
func (c *Claims) Actor() *shared.Actor {
	role := shared.RoleUser
	if c.Role == string(shared.RoleStaff) {
		role = shared.RoleStaff
	}
	return &shared.Actor{
		UserID: c.Subject,
		Name:   c.Name,
		Email:  c.Email,
		Role:   role,
	}
}
