package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/existflow/slotflow/internal/api"
	"github.com/existflow/slotflow/internal/form"
	"github.com/existflow/slotflow/internal/guard"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/internal/notify"
)

var coursesCmd = &cobra.Command{
	Use:     "courses",
	Aliases: []string{"course"},
	Short:   "Browse and manage courses",
}

var courseShowCmd = routed(&cobra.Command{
	Use:   "show [course-id]",
	Short: "Show course details",
	Args:  cobra.ExactArgs(1),
	RunE:  runCourseShow,
}, guard.CourseDetail)

var courseCreateCmd = routed(&cobra.Command{
	Use:   "create",
	Short: "Create a course (admin)",
	Long: `Create a new course.

Examples:
  slotflow courses create --title "Go basics" --description "Intro" \
    --start 2026-11-02 --end 2026-11-20 --duration 12 --slots 20 --language English --language French`,
	Args: cobra.NoArgs,
	RunE: runCourseCreate,
}, guard.AdminDashboard)

var courseUpdateCmd = routed(&cobra.Command{
	Use:   "update [course-id]",
	Short: "Update a course (admin)",
	Long: `Update a course. Only the flags you pass are changed.

Examples:
  slotflow courses update 3 --slots 30
  slotflow courses update 3 --picture ./banner.png`,
	Args: cobra.ExactArgs(1),
	RunE: runCourseUpdate,
}, guard.AdminDashboard)

var courseDeleteCmd = routed(&cobra.Command{
	Use:   "delete [course-id]",
	Short: "Delete a course (admin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCourseDelete,
}, guard.AdminDashboard)

// courseFlags are the editable course fields
type courseFlags struct {
	title       string
	description string
	start       string
	end         string
	duration    string
	slots       string
	languages   []string
	picture     string
}

// flag name -> form field name
var courseFlagFields = map[string]string{
	"title":       "title",
	"description": "description",
	"start":       "start_date",
	"end":         "end_date",
	"duration":    "duration_hours",
	"slots":       "slots_total",
	"language":    "languages",
}

var (
	createFlags courseFlags
	updateFlags courseFlags
	deleteYes   bool
)

func (f *courseFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Course title")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Course description")
	cmd.Flags().StringVar(&f.start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.duration, "duration", "", "Duration in hours")
	cmd.Flags().StringVar(&f.slots, "slots", "", "Total number of slots")
	cmd.Flags().StringArrayVarP(&f.languages, "language", "l", nil, "Teaching language, repeatable (default English)")
	cmd.Flags().StringVar(&f.picture, "picture", "", "Path to a course picture")
}

func (f *courseFlags) values() form.Values {
	return form.Values{
		"title":          f.title,
		"description":    f.description,
		"start_date":     f.start,
		"end_date":       f.end,
		"duration_hours": f.duration,
		"slots_total":    f.slots,
		"languages":      f.languages,
	}
}

func init() {
	coursesCmd.AddCommand(coursesListCmd)
	coursesCmd.AddCommand(courseShowCmd)
	coursesCmd.AddCommand(courseCreateCmd)
	coursesCmd.AddCommand(courseUpdateCmd)
	coursesCmd.AddCommand(courseDeleteCmd)

	createFlags.bind(courseCreateCmd)
	updateFlags.bind(courseUpdateCmd)
	courseDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
}

func parseCourseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid course id: %s", arg)
	}
	return id, nil
}

func runCourseShow(cmd *cobra.Command, args []string) error {
	id, err := parseCourseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	course, err := sess.client.Courses.Get(ctx, id)
	if err != nil {
		return err
	}

	// Booking state is only known to signed in users
	if err := sess.engine.Refresh(ctx); err != nil {
		return err
	}
	view, _ := sess.engine.Snapshot().View(id)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s\n", headerStyle.Render(course.Title))
	fmt.Fprintln(out, strings.Repeat("─", 60))
	if course.Description != "" {
		fmt.Fprintf(out, "%s\n\n", course.Description)
	}
	fmt.Fprintf(out, "  Dates:     %s → %s\n", course.StartDate, course.EndDate)
	fmt.Fprintf(out, "  Duration:  %d hours\n", course.DurationHours)
	fmt.Fprintf(out, "  Slots:     %d/%d booked, %d available\n", course.SlotsBooked, course.SlotsTotal, course.SlotsAvailable())
	if len(course.Languages) > 0 {
		fmt.Fprintf(out, "  Languages: %s\n", strings.Join(course.Languages, ", "))
	}
	if course.Picture != nil && *course.Picture != "" {
		fmt.Fprintf(out, "  Picture:   %s\n", *course.Picture)
	}
	if b := badges(*course, view, time.Now()); len(b) > 0 {
		fmt.Fprintf(out, "  Status:    %s\n", strings.Join(b, " "))
	}
	if !course.IsActive {
		fmt.Fprintln(out, "  This course is no longer active.")
	}
	fmt.Fprintln(out)
	return nil
}

func runCourseCreate(cmd *cobra.Command, args []string) error {
	if len(createFlags.languages) == 0 {
		createFlags.languages = []string{api.DefaultLanguage}
	}

	if errs := form.Course(time.Now).Validate(createFlags.values()); !errs.Valid() {
		return invalid(cmd, errs)
	}

	in, err := createFlags.input(nil)
	if err != nil {
		return err
	}

	course, err := sess.client.Courses.Create(cmd.Context(), in)
	if err != nil {
		return err
	}
	notify.Successf(sess.notifier, "Course created: #%d %s", course.ID, course.Title)
	return nil
}

func runCourseUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseCourseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	current, err := sess.client.Courses.Get(ctx, id)
	if err != nil {
		return err
	}

	changed := map[string]bool{}
	for flagName, field := range courseFlagFields {
		if cmd.Flags().Changed(flagName) {
			changed[field] = true
		}
	}
	if len(changed) == 0 && updateFlags.picture == "" {
		return fmt.Errorf("nothing to update, pass at least one field flag")
	}
	// the date pair is checked together
	if changed["start_date"] || changed["end_date"] {
		changed["start_date"], changed["end_date"] = true, true
	}

	values := courseValues(current)
	for field, v := range updateFlags.values() {
		if changed[field] {
			values[field] = v
		}
	}

	schema := form.Course(time.Now)
	errs := form.Errors{}
	for field := range changed {
		if msg := schema.ValidateField(field, values); msg != "" {
			errs[field] = msg
		}
	}
	if !errs.Valid() {
		return invalid(cmd, errs)
	}

	in, err := updateFlags.input(changed)
	if err != nil {
		return err
	}

	course, err := sess.client.Courses.Update(ctx, id, in)
	if err != nil {
		return err
	}
	notify.Successf(sess.notifier, "Course updated: #%d %s", course.ID, course.Title)
	return nil
}

func runCourseDelete(cmd *cobra.Command, args []string) error {
	id, err := parseCourseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if sess.cfg.ConfirmDestructive && !deleteYes {
		course, err := sess.client.Courses.Get(ctx, id)
		if err != nil {
			return err
		}
		ok, err := confirm(cmd, fmt.Sprintf("Delete course #%d %q?", course.ID, course.Title))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	if err := sess.client.Courses.Delete(ctx, id); err != nil {
		return err
	}
	notify.Successf(sess.notifier, "Course deleted successfully")
	return nil
}

// courseValues turns a course back into form input
func courseValues(c *model.Course) form.Values {
	return form.Values{
		"title":          c.Title,
		"description":    c.Description,
		"start_date":     c.StartDate.String(),
		"end_date":       c.EndDate.String(),
		"duration_hours": strconv.Itoa(c.DurationHours),
		"slots_total":    strconv.Itoa(c.SlotsTotal),
		"languages":      c.Languages,
	}
}

// input builds the request payload. With only set, fields outside it are
// left zero so a partial update skips them.
func (f *courseFlags) input(only map[string]bool) (model.CourseInput, error) {
	use := func(field string) bool { return only == nil || only[field] }

	var in model.CourseInput
	var err error
	if use("title") {
		in.Title = strings.TrimSpace(f.title)
	}
	if use("description") {
		in.Description = strings.TrimSpace(f.description)
	}
	if use("start_date") && f.start != "" {
		if in.StartDate, err = model.ParseDate(f.start); err != nil {
			return in, err
		}
	}
	if use("end_date") && f.end != "" {
		if in.EndDate, err = model.ParseDate(f.end); err != nil {
			return in, err
		}
	}
	if use("duration_hours") && f.duration != "" {
		if in.DurationHours, err = strconv.Atoi(strings.TrimSpace(f.duration)); err != nil {
			return in, fmt.Errorf("invalid duration: %w", err)
		}
	}
	if use("slots_total") && f.slots != "" {
		if in.SlotsTotal, err = strconv.Atoi(strings.TrimSpace(f.slots)); err != nil {
			return in, fmt.Errorf("invalid slots: %w", err)
		}
	}
	if use("languages") {
		in.Languages = f.languages
	}

	if f.picture != "" {
		data, err := os.ReadFile(f.picture)
		if err != nil {
			return in, fmt.Errorf("failed to read picture: %w", err)
		}
		in.Picture = data
		in.PictureName = filepath.Base(f.picture)
	}
	return in, nil
}
