package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/existflow/slotflow/internal/booking"
	"github.com/existflow/slotflow/internal/guard"
	"github.com/existflow/slotflow/internal/model"
)

var coursesListCmd = routed(&cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List courses",
	Long: `List active courses with their slot availability.

Examples:
  slotflow courses list
  slotflow courses list --available
  slotflow courses list --booked`,
	RunE: runCoursesList,
}, guard.Home)

var bookingsCmd = routed(&cobra.Command{
	Use:   "bookings",
	Short: "List your bookings",
	RunE:  runBookings,
}, guard.LearnerDashboard)

var (
	listAvailable bool
	listBooked    bool
	bookingsAll   bool
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	badgeStyles = map[string]lipgloss.Style{
		"Booked":    lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
		"Full":      lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
		"Upcoming":  lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")),
		"Cancelled": lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")),
	}
)

func init() {
	coursesListCmd.Flags().BoolVarP(&listAvailable, "available", "a", false, "Only courses you can still book")
	coursesListCmd.Flags().BoolVarP(&listBooked, "booked", "b", false, "Only courses you have booked")
	coursesListCmd.MarkFlagsMutuallyExclusive("available", "booked")

	bookingsCmd.Flags().BoolVar(&bookingsAll, "all", false, "Include cancelled bookings")
}

func runCoursesList(cmd *cobra.Command, args []string) error {
	if err := sess.engine.Refresh(cmd.Context()); err != nil {
		return err
	}
	snap := sess.engine.Snapshot()

	var rows []model.Course
	for _, c := range snap.Courses {
		v := snap.Views[c.ID]
		switch {
		case listAvailable && (v.IsBooked || v.IsFull):
			continue
		case listBooked && !v.IsBooked:
			continue
		}
		rows = append(rows, c)
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No courses found.")
		return nil
	}

	fmt.Fprintf(out, "\n📚 Courses (%d)\n", len(rows))
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("  %-4s  %-32s  %-10s  %-10s  %-7s  %s", "ID", "TITLE", "START", "END", "SLOTS", "STATUS")))
	fmt.Fprintln(out, strings.Repeat("─", 84))
	now := time.Now()
	for _, c := range rows {
		printCourseRow(out, c, snap.Views[c.ID], now)
	}
	fmt.Fprintln(out)
	return nil
}

func printCourseRow(out io.Writer, c model.Course, v booking.View, now time.Time) {
	fmt.Fprintf(out, "  %-4d  %-32s  %-10s  %-10s  %-7s  %s\n",
		c.ID,
		truncate(c.Title, 32),
		c.StartDate.String(),
		c.EndDate.String(),
		fmt.Sprintf("%d/%d", c.SlotsBooked, c.SlotsTotal),
		strings.Join(badges(c, v, now), " "),
	)
}

// badges returns the status labels shown next to a course
func badges(c model.Course, v booking.View, now time.Time) []string {
	var out []string
	if v.IsBooked {
		out = append(out, badgeStyles["Booked"].Render("Booked"))
	}
	if v.IsFull {
		out = append(out, badgeStyles["Full"].Render("Full"))
	}
	if c.IsUpcoming(now) {
		out = append(out, badgeStyles["Upcoming"].Render("Upcoming"))
	}
	return out
}

func runBookings(cmd *cobra.Command, args []string) error {
	if err := sess.engine.Refresh(cmd.Context()); err != nil {
		return err
	}
	snap := sess.engine.Snapshot()

	out := cmd.OutOrStdout()
	shown := 0
	for _, b := range snap.Bookings {
		if !b.IsActive() && !bookingsAll {
			continue
		}
		if shown == 0 {
			fmt.Fprintln(out, "\n🎟  Bookings")
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("  %-4s  %-6s  %-32s  %-10s  %s", "ID", "COURSE", "TITLE", "BOOKED", "STATUS")))
			fmt.Fprintln(out, strings.Repeat("─", 72))
		}
		shown++

		title := ""
		if c, ok := booking.FindCourse(snap.Courses, b.Course.ID); ok {
			title = c.Title
		} else if b.Course.Course != nil {
			title = b.Course.Course.Title
		}
		bookedAt := ""
		if b.BookedAt != nil {
			bookedAt = b.BookedAt.Format("2006-01-02")
		}
		status := "Active"
		if !b.IsActive() {
			status = badgeStyles["Cancelled"].Render("Cancelled")
		}
		fmt.Fprintf(out, "  %-4d  %-6d  %-32s  %-10s  %s\n", b.ID, b.Course.ID, truncate(title, 32), bookedAt, status)
	}

	if shown == 0 {
		fmt.Fprintln(out, "No bookings yet. Book one with: slotflow book <course-id>")
		return nil
	}
	fmt.Fprintln(out)
	return nil
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
