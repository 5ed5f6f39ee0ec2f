package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/slotflow/internal/api"
	"github.com/existflow/slotflow/internal/failure"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and login status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server:    %s\n", sess.client.BaseURL())

	if identity, ok := sess.store.CurrentUser(); ok {
		fmt.Fprintf(out, "User:      %s (%s)\n", identity.Username, rolesLabel(identity.Roles()))
		fmt.Fprintln(out, "Status:    ✓ Logged in")
	} else {
		fmt.Fprintln(out, "Status:    Not logged in")
	}

	start := time.Now()
	courses, err := sess.client.Courses.List(cmd.Context(), api.WithoutNotify())
	switch {
	case err == nil:
		fmt.Fprintf(out, "Reachable: ✓ %d courses (%s)\n", len(courses), time.Since(start).Round(time.Millisecond))
	case failure.Classify(err) == failure.NetworkOrServer:
		fmt.Fprintf(out, "Reachable: ✗ %v\n", err)
	default:
		fmt.Fprintf(out, "Reachable: ✓ but %v\n", err)
	}
	return nil
}
