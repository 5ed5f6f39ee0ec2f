// Package guard decides whether the current identity may open a route.
package guard

import (
	"github.com/existflow/slotflow/internal/auth"
	"github.com/existflow/slotflow/internal/logger"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/internal/notify"
)

// Entry points used as redirect targets
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Messages shown when a route is refused
const (
	MsgLoginFirst   = "You need to log in first"
	MsgNoPermission = "You do not have permission to access this page"
)

// State is the outcome of evaluating a route
type State int

const (
	Unauthenticated State = iota
	AuthenticatedNoRoleMatch
	Authorized
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case AuthenticatedNoRoleMatch:
		return "AUTHENTICATED_NO_ROLE_MATCH"
	default:
		return "AUTHORIZED"
	}
}

// Route is a navigable view. A protected route with no allowed roles
// admits any authenticated identity.
type Route struct {
	Path         string
	Protected    bool
	AllowedRoles []string
}

// RoleGated reports whether the route names specific roles
func (r Route) RoleGated() bool {
	return len(r.AllowedRoles) > 0
}

// Known routes
var (
	Home             = Route{Path: "/"}
	Login            = Route{Path: "/login"}
	Register         = Route{Path: "/register"}
	CourseDetail     = Route{Path: "/courses/:id"}
	Profile          = Route{Path: "/profile", Protected: true}
	AdminDashboard   = Route{Path: "/dashboard/admin", Protected: true, AllowedRoles: []string{model.RoleAdmin}}
	LearnerDashboard = Route{Path: "/dashboard/learner", Protected: true, AllowedRoles: []string{model.RoleLearner}}
)

// Routes lists every known route
var Routes = []Route{Home, Login, Register, CourseDetail, Profile, AdminDashboard, LearnerDashboard}

// Lookup finds a known route by path
func Lookup(path string) (Route, bool) {
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Decision is the result of one evaluation
type Decision struct {
	State    State
	Redirect string // empty when authorized
	Message  string // empty when the redirect is silent
	Identity auth.Identity
}

// Allowed reports whether the route content may render
func (d Decision) Allowed() bool {
	return d.State == Authorized
}

// Evaluate decides a route for identity. ok is false when nobody is
// signed in.
func Evaluate(route Route, identity auth.Identity, ok bool) Decision {
	if !route.Protected && !route.RoleGated() {
		return Decision{State: Authorized, Identity: identity}
	}
	if !ok {
		d := Decision{State: Unauthenticated, Redirect: LoginPath}
		if route.RoleGated() {
			d.Message = MsgLoginFirst
		}
		return d
	}
	if route.RoleGated() && !identity.HasAnyRole(route.AllowedRoles...) {
		return Decision{
			State:    AuthenticatedNoRoleMatch,
			Redirect: HomePath,
			Message:  MsgNoPermission,
			Identity: identity,
		}
	}
	return Decision{State: Authorized, Identity: identity}
}

// Guard evaluates routes against a token store and reports refusals
type Guard struct {
	store    *auth.Store
	notifier notify.Notifier
}

// New creates a guard
func New(store *auth.Store, notifier notify.Notifier) *Guard {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Guard{store: store, notifier: notifier}
}

// Check reads the current identity fresh and evaluates route. A refusal
// with a message is notified.
func (g *Guard) Check(route Route) Decision {
	identity, ok := g.store.CurrentUser()
	d := Evaluate(route, identity, ok)

	if !d.Allowed() {
		logger.Debug("Route refused",
			logger.F("route", route.Path),
			logger.F("state", d.State.String()),
			logger.F("redirect", d.Redirect),
		)
	}
	if d.Message != "" {
		g.notifier.Notify(notify.New(notify.Error, d.Message))
	}
	return d
}
