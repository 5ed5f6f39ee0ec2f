package cli

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/existflow/slotflow/internal/api"
	"github.com/existflow/slotflow/internal/auth"
	"github.com/existflow/slotflow/internal/booking"
	"github.com/existflow/slotflow/internal/config"
	"github.com/existflow/slotflow/internal/guard"
	"github.com/existflow/slotflow/internal/notify"
)

const routeAnnotation = "route"

var (
	errLoginRequired = errors.New("not logged in, run 'slotflow auth login' first")
	errForbidden     = errors.New(guard.MsgNoPermission)
)

// notified wraps a refusal the guard already reported to the user
type notified struct{ error }

func (n notified) Unwrap() error { return n.error }

// session is everything a command needs to talk to the API
type session struct {
	cfg      *config.Config
	store    *auth.Store
	client   *api.Client
	guard    *guard.Guard
	engine   *booking.Engine
	notifier notify.Notifier
	in       *bufio.Reader

	expired bool
}

// sess is set up by the root command before any subcommand runs
var sess *session

func openSession(cmd *cobra.Command, cfg *config.Config) (*session, error) {
	store, err := auth.OpenDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	s := &session{
		cfg:      cfg,
		store:    store,
		notifier: notify.NewConsole(cmd.OutOrStdout()),
		in:       bufio.NewReader(cmd.InOrStdin()),
	}
	s.client = api.New(cfg.APIURL, store,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithNotifier(s.notifier),
		api.WithSessionExpired(func() { s.expired = true }),
	)
	s.guard = guard.New(store, s.notifier)
	s.engine = booking.NewEngine(booking.NewAPIBackend(s.client),
		booking.WithNotifier(s.notifier),
		booking.WithBookings(s.signedIn),
	)
	return s, nil
}

func (s *session) signedIn() bool {
	_, ok := s.store.CurrentUser()
	return ok
}

// authorize runs the route guard for commands annotated with a route
func (s *session) authorize(cmd *cobra.Command) error {
	path, ok := cmd.Annotations[routeAnnotation]
	if !ok {
		return nil
	}
	route, ok := guard.Lookup(path)
	if !ok {
		return fmt.Errorf("unknown route %q", path)
	}

	d := s.guard.Check(route)
	switch {
	case d.Allowed():
		return nil
	case d.State == guard.Unauthenticated && d.Message == "":
		return errLoginRequired
	case d.State == guard.Unauthenticated:
		return notified{errLoginRequired}
	default:
		return notified{errForbidden}
	}
}

// routed tags cmd with the view it stands for
func routed(cmd *cobra.Command, route guard.Route) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[routeAnnotation] = route.Path
	return cmd
}
