package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const userKey = "user"

// authMiddleware resolves the bearer token when one is sent. A bad token
// is rejected even on public endpoints.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return next(c)
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			return detail(c, http.StatusUnauthorized, "Authorization header must contain two space-delimited values")
		}

		claims, err := s.parseToken(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
		}

		u, ok := s.data.user(claims.UserID)
		if !ok {
			return detail(c, http.StatusUnauthorized, "User not found")
		}

		c.Set(userKey, u)
		return next(c)
	}
}

// requireUser rejects anonymous requests
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) == nil {
			return detail(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
		}
		return next(c)
	}
}

// requireAdmin rejects non-admin users
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if u := currentUser(c); u == nil || !u.IsAdmin {
			return detail(c, http.StatusForbidden, "You do not have permission to perform this action.")
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *user {
	u, _ := c.Get(userKey).(*user)
	return u
}
