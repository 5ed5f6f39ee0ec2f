// Package failure classifies client errors into the categories the UI
// reacts to.
package failure

import "errors"

// Category is how the UI should react to an error
type Category int

const (
	NetworkOrServer Category = iota // generic message, state untouched
	AuthExpired                     // credential cleared, back to login
	Validation                      // local, field scoped
	Conflict                        // business rule rejected, optimistic state rolled back
	Decode                          // malformed credential, silently logged out
)

func (c Category) String() string {
	switch c {
	case AuthExpired:
		return "auth_expired"
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case Decode:
		return "decode"
	default:
		return "network_or_server"
	}
}

// Categorized is implemented by errors that know their category
type Categorized interface {
	Category() Category
}

// Error is a categorized sentinel
type Error struct {
	Cat Category
	Msg string
}

// New returns a categorized error
func New(cat Category, msg string) *Error {
	return &Error{Cat: cat, Msg: msg}
}

func (e *Error) Error() string      { return e.Msg }
func (e *Error) Category() Category { return e.Cat }

// Classify returns the category of err. Unknown errors count as
// network or server failures.
func Classify(err error) Category {
	var c Categorized
	if errors.As(err, &c) {
		return c.Category()
	}
	return NetworkOrServer
}
