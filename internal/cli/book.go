package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/existflow/slotflow/internal/booking"
	"github.com/existflow/slotflow/internal/guard"
)

var bookCmd = routed(&cobra.Command{
	Use:   "book [course-id]",
	Short: "Book a slot on a course",
	Long: `Book a slot on a course. Full or already booked courses are refused
without contacting the server.

Examples:
  slotflow book 3`,
	Args: cobra.ExactArgs(1),
	RunE: runBook,
}, guard.LearnerDashboard)

var cancelCmd = routed(&cobra.Command{
	Use:   "cancel [course-id]",
	Short: "Cancel your booking on a course",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}, guard.LearnerDashboard)

var cancelYes bool

func init() {
	cancelCmd.Flags().BoolVarP(&cancelYes, "yes", "y", false, "Do not ask for confirmation")
}

func runBook(cmd *cobra.Command, args []string) error {
	id, err := parseCourseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if err := sess.engine.Refresh(ctx); err != nil {
		return err
	}
	b, err := sess.engine.Book(ctx, id)
	if err != nil {
		return err
	}
	sess.engine.Settle()

	printSlots(cmd, sess.engine.Snapshot(), id)
	fmt.Fprintf(cmd.OutOrStdout(), "   Booking #%d\n", b.ID)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	id, err := parseCourseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if err := sess.engine.Refresh(ctx); err != nil {
		return err
	}

	snap := sess.engine.Snapshot()
	if sess.cfg.ConfirmDestructive && !cancelYes {
		if _, ok := booking.ActiveBooking(snap.Bookings, id); ok {
			title := fmt.Sprintf("#%d", id)
			if c, found := booking.FindCourse(snap.Courses, id); found {
				title = fmt.Sprintf("#%d %q", id, c.Title)
			}
			ok, err := confirm(cmd, fmt.Sprintf("Cancel your booking on %s?", title))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}
	}

	if err := sess.engine.Cancel(ctx, id); err != nil {
		return err
	}
	sess.engine.Settle()

	printSlots(cmd, sess.engine.Snapshot(), id)
	return nil
}

func printSlots(cmd *cobra.Command, snap booking.Snapshot, courseID int) {
	c, ok := booking.FindCourse(snap.Courses, courseID)
	if !ok {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "   %s: %d/%d slots booked\n", c.Title, c.SlotsBooked, c.SlotsTotal)
}
