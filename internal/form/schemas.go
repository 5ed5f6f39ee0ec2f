package form

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/existflow/slotflow/internal/model"
)

const (
	msgPasswordRequired = "Password is required"
	msgPasswordLength   = "Password must be at least 8 characters"
	msgPasswordStrength = "Password must contain at least one uppercase, one lowercase, one number and one special character"
	msgConfirmRequired  = "Please confirm your password"
	msgPasswordsMatch   = "Passwords must match"
	msgEmailRequired    = "Email is required"
	msgEmailInvalid     = "Invalid email format"
	msgUsernameRequired = "Username is required"
)

func passwordRules(required string) []validation.Rule {
	return []validation.Rule{
		Required(required),
		validation.Length(8, 0).Error(msgPasswordLength),
		StrongPassword(msgPasswordStrength),
	}
}

// Register validates account creation
func Register() *Schema {
	return &Schema{Name: "register", Fields: []Field{
		{Name: "username", Rules: []validation.Rule{
			Required(msgUsernameRequired),
			validation.Length(3, 0).Error("Username must be at least 3 characters"),
		}},
		{Name: "email", Rules: []validation.Rule{
			Required(msgEmailRequired),
			is.Email.Error(msgEmailInvalid),
		}},
		{Name: "password", Rules: passwordRules(msgPasswordRequired)},
		{Name: "password2", Rules: []validation.Rule{
			Required(msgConfirmRequired),
			EqualTo("password", msgPasswordsMatch),
		}},
		{Name: "role", Rules: []validation.Rule{
			Required("Role is required"),
			validation.In(model.RoleAdmin, model.RoleLearner).Error("Invalid role"),
		}},
	}}
}

// Login validates sign in
func Login() *Schema {
	return &Schema{Name: "login", Fields: []Field{
		{Name: "username", Rules: []validation.Rule{Required("Username or email is required")}},
		{Name: "password", Rules: []validation.Rule{Required(msgPasswordRequired)}},
	}}
}

// Course validates course creation and editing. now is consulted on every
// validation.
func Course(now func() time.Time) *Schema {
	if now == nil {
		now = time.Now
	}
	return &Schema{Name: "course", Fields: []Field{
		{Name: "title", Rules: []validation.Rule{Required("Title is required")}},
		{Name: "description", Rules: []validation.Rule{Required("Description is required")}},
		{Name: "start_date", Type: Date, Rules: []validation.Rule{
			Required("Start date is required"),
			NotBeforeToday(now, "Start date must be in the future"),
		}},
		{Name: "end_date", Type: Date, Rules: []validation.Rule{
			Required("End date is required"),
			NotBefore("start_date", "End date must be after start date"),
		}},
		{Name: "duration_hours", Type: Number, Rules: []validation.Rule{
			Required("Duration is required"),
			MinNumber(1, "Duration must be at least 1 hour"),
		}},
		{Name: "languages", Type: List, Rules: []validation.Rule{
			MinItems(1, "At least one language is required"),
		}},
		{Name: "slots_total", Type: Number, Rules: []validation.Rule{
			Required("Total slots is required"),
			MinNumber(1, "Must have at least 1 slot"),
		}},
	}}
}

// Profile validates profile edits
func Profile() *Schema {
	return &Schema{Name: "profile", Fields: []Field{
		{Name: "username", Rules: []validation.Rule{Required(msgUsernameRequired)}},
		{Name: "email", Rules: []validation.Rule{
			Required(msgEmailRequired),
			is.Email.Error(msgEmailInvalid),
		}},
	}}
}

// Password validates a password change
func Password() *Schema {
	return &Schema{Name: "password", Fields: []Field{
		{Name: "old_password", Rules: []validation.Rule{Required("Current password is required")}},
		{Name: "new_password", Rules: passwordRules("New password is required")},
		{Name: "confirm_password", Rules: []validation.Rule{
			Required(msgConfirmRequired),
			EqualTo("new_password", msgPasswordsMatch),
		}},
	}}
}
