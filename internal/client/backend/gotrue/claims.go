package gotrue

import (
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the access token payload the client reads. The
// signature is verified by the backend, never here.
type Claims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

// ParseClaims decodes the access token without verifying its signature.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// AppRole is the application role granted to the user. The database role
// ("authenticated", "anon") is not an application role.
func (c *Claims) AppRole() string {
	if c.AppMetadata.Role != "" {
		return c.AppMetadata.Role
	}
	switch c.Role {
	case "", "authenticated", "anon", "service_role":
		return ""
	}
	return c.Role
}

func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
