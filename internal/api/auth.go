package api

import (
	"context"
	"fmt"
	"io"

	"github.com/existflow/slotflow/internal/model"
)

// AuthService wraps the /auth/ endpoints
type AuthService struct {
	c *Client
}

// Login exchanges credentials for a token and stores it
func (s *AuthService) Login(ctx context.Context, username, password string) error {
	var pair model.TokenPair
	body := map[string]string{"username": username, "password": password}
	if err := s.c.Post(ctx, "/auth/token/", body, &pair); err != nil {
		return err
	}
	if pair.Access == "" {
		return fmt.Errorf("login response carried no access token")
	}
	return s.c.store.Save(pair.Access)
}

// Register creates an account. It does not log in.
func (s *AuthService) Register(ctx context.Context, in model.RegisterInput) (*model.Profile, error) {
	var p model.Profile
	if err := s.c.Post(ctx, "/auth/register/", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Me returns the profile of the signed-in user
func (s *AuthService) Me(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := s.c.Get(ctx, "/auth/me/", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile changes username and email
func (s *AuthService) UpdateProfile(ctx context.Context, username, email string) (*model.Profile, error) {
	form := NewForm().Field("username", username).Field("email", email)

	var p model.Profile
	if err := s.c.Patch(ctx, "/auth/me/", form, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UploadProfilePicture replaces the profile picture
func (s *AuthService) UploadProfilePicture(ctx context.Context, filename string, r io.Reader) (*model.Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read picture: %w", err)
	}
	form := NewForm().File("profile_picture", filename, data)

	var p model.Profile
	if err := s.c.Put(ctx, "/auth/me/profile-picture/", form, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RemoveProfilePicture deletes the profile picture
func (s *AuthService) RemoveProfilePicture(ctx context.Context) error {
	return s.c.Delete(ctx, "/auth/me/profile-picture/", nil)
}

// ChangePassword sets a new password after checking the old one
func (s *AuthService) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	}
	return s.c.Post(ctx, "/auth/change-password/", body, nil)
}

// Logout forgets the stored credential. There is no server call.
func (s *AuthService) Logout() error {
	return s.c.store.Clear()
}
