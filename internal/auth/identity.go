package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/existflow/slotflow/internal/failure"
	"github.com/existflow/slotflow/internal/model"
)

var (
	ErrNoCredential        = errors.New("no stored credential")
	ErrMalformedCredential = failure.New(failure.Decode, "malformed credential")
)

// Claims is the payload the API embeds in its access tokens
type Claims struct {
	jwt.RegisteredClaims
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	IsLearner bool   `json:"is_learner"`
}

// Identity is the signed-in user as seen by the client
type Identity struct {
	UserID    int
	Username  string
	Email     string
	IsAdmin   bool
	IsLearner bool
}

// Roles returns the role names held by the identity
func (i Identity) Roles() []string {
	var roles []string
	if i.IsAdmin {
		roles = append(roles, model.RoleAdmin)
	}
	if i.IsLearner {
		roles = append(roles, model.RoleLearner)
	}
	return roles
}

// HasAnyRole reports whether the identity holds one of allowed
func (i Identity) HasAnyRole(allowed ...string) bool {
	for _, r := range i.Roles() {
		for _, a := range allowed {
			if r == a {
				return true
			}
		}
	}
	return false
}

// Decode reads the claims out of a token without verifying its signature.
// The server verifies on every call; the client only needs the claims.
func Decode(token string) (Identity, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	if claims.UserID == 0 || claims.Username == "" {
		return Identity{}, fmt.Errorf("%w: missing user claims", ErrMalformedCredential)
	}

	return Identity{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Email:     claims.Email,
		IsAdmin:   claims.IsAdmin,
		IsLearner: claims.IsLearner,
	}, nil
}
