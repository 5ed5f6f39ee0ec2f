package server

import (
	"fmt"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/existflow/slotflow/internal/auth"
	"github.com/existflow/slotflow/internal/model"
)

const passwordSymbols = "!@#$%^&*()_+"

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// IssueToken signs an access token for userID
func (s *Server) IssueToken(userID int) (string, error) {
	u, ok := s.data.user(userID)
	if !ok {
		return "", fmt.Errorf("unknown user %d", userID)
	}
	return s.sign(u, "access", s.tokenTTL)
}

func (s *Server) sign(u *user, tokenType string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := struct {
		auth.Claims
		TokenType string `json:"token_type"`
	}{
		Claims: auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
			UserID:    u.ID,
			Username:  u.Username,
			Email:     u.Email,
			IsAdmin:   u.IsAdmin,
			IsLearner: u.IsLearner,
		},
		TokenType: tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(token string) (*auth.Claims, error) {
	claims := &auth.Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// handleToken exchanges a username or email and password for tokens
func (s *Server) handleToken(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request")
	}

	s.data.mu.Lock()
	u := s.data.findUser(req.Username)
	s.data.mu.Unlock()

	if u == nil || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		return detail(c, http.StatusUnauthorized, "No active account found with the given credentials")
	}

	access, err := s.sign(u, "access", s.tokenTTL)
	if err != nil {
		c.Logger().Error("token error:", err)
		return detail(c, http.StatusInternalServerError, "internal error")
	}
	refresh, err := s.sign(u, "refresh", 24*time.Hour)
	if err != nil {
		c.Logger().Error("token error:", err)
		return detail(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, model.TokenPair{Access: access, Refresh: refresh})
}

// handleRegister creates an account
func (s *Server) handleRegister(c echo.Context) error {
	var req model.RegisterInput
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request")
	}

	errs := map[string][]string{}
	if req.Username == "" {
		errs["username"] = []string{"This field is required."}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		errs["email"] = []string{"Enter a valid email address."}
	}
	if req.Role != model.RoleAdmin && req.Role != model.RoleLearner {
		errs["role"] = []string{fmt.Sprintf("%q is not a valid choice.", req.Role)}
	}
	if req.Password != req.Password2 {
		errs["password"] = []string{"Password fields didn't match."}
		errs["password2"] = []string{"Password fields didn't match."}
	}
	errs["password"] = append(errs["password"], passwordProblems(req.Password)...)
	if len(errs["password"]) == 0 {
		delete(errs, "password")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	for _, u := range s.data.users {
		if u.Username == req.Username {
			errs["username"] = []string{"This username is already in use."}
		}
		if u.Email == req.Email {
			errs["email"] = []string{"This email is already in use."}
		}
	}
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"errors": errs})
	}

	u, err := s.data.addUser(req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		c.Logger().Error("bcrypt error:", err)
		return detail(c, http.StatusInternalServerError, "internal error")
	}

	c.Logger().Infof("User registered: %s", u.Username)
	return c.JSON(http.StatusCreated, u.profile())
}

// handleMe returns the signed-in user
func (s *Server) handleMe(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	return c.JSON(http.StatusOK, currentUser(c).profile())
}

// handleUpdateProfile changes username and email from form fields
func (s *Server) handleUpdateProfile(c echo.Context) error {
	username := strings.TrimSpace(c.FormValue("username"))
	email := strings.TrimSpace(c.FormValue("email"))

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	me := currentUser(c)

	errs := map[string][]string{}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			errs["email"] = []string{"Enter a valid email address."}
		}
	}
	for _, u := range s.data.users {
		if u.ID == me.ID {
			continue
		}
		if username != "" && u.Username == username {
			errs["username"] = []string{"A user with that username already exists."}
		}
		if email != "" && u.Email == email {
			errs["email"] = []string{"This email is already in use."}
		}
	}
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"errors": errs})
	}

	if username != "" {
		me.Username = username
	}
	if email != "" {
		me.Email = email
	}
	return c.JSON(http.StatusOK, me.profile())
}

// handleUploadPicture stores the name of an uploaded profile picture
func (s *Server) handleUploadPicture(c echo.Context) error {
	file, err := c.FormFile("profile_picture")
	if err != nil {
		return detail(c, http.StatusBadRequest, "No image file provided")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	me := currentUser(c)
	me.Picture = "/media/profile_pics/" + filepath.Base(file.Filename)
	return c.JSON(http.StatusOK, me.profile())
}

// handleDeletePicture removes the profile picture
func (s *Server) handleDeletePicture(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	me := currentUser(c)
	if me.Picture == "" {
		return detail(c, http.StatusBadRequest, "No profile picture to delete")
	}
	me.Picture = ""
	return detail(c, http.StatusOK, "Profile picture deleted successfully")
}

// handleChangePassword checks the old password and stores the new one
func (s *Server) handleChangePassword(c echo.Context) error {
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	me := currentUser(c)

	errs := map[string][]string{}
	switch {
	case req.OldPassword == "":
		errs["old_password"] = []string{"This field is required."}
	case bcrypt.CompareHashAndPassword(me.PasswordHash, []byte(req.OldPassword)) != nil:
		errs["old_password"] = []string{"Wrong password."}
	}
	if problems := passwordProblems(req.NewPassword); len(problems) > 0 {
		errs["new_password"] = problems[:1]
	}
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.Logger().Error("bcrypt error:", err)
		return detail(c, http.StatusInternalServerError, "internal error")
	}
	me.PasswordHash = hash
	return detail(c, http.StatusOK, "Password updated successfully")
}

// passwordProblems lists every strength rule password breaks
func passwordProblems(password string) []string {
	var out []string
	if password == "" {
		return []string{"This field is required."}
	}
	if len(password) < 8 {
		out = append(out, "Password must be at least 8 characters.")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		out = append(out, "Password must contain at least one uppercase letter.")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		out = append(out, "Password must contain at least one lowercase letter.")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }) {
		out = append(out, "Password must contain at least one digit.")
	}
	if !strings.ContainsAny(password, passwordSymbols) {
		out = append(out, "Password must contain at least one special character.")
	}
	return out
}
