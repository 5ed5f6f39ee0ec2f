package model

// Role names used for route gating
const (
	RoleAdmin   = "admin"
	RoleLearner = "learner"
)

// Profile is the account as returned by /auth/me/
type Profile struct {
	ID             int     `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	IsAdmin        bool    `json:"is_admin"`
	IsLearner      bool    `json:"is_learner"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
}

// RegisterInput is the payload for /auth/register/
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Role      string `json:"role"`
}

// TokenPair is the response of /auth/token/
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}
