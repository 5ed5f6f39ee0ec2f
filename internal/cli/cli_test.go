package cli

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/suite"

	"github.com/existflow/slotflow/internal/booking"
	"github.com/existflow/slotflow/internal/config"
	"github.com/existflow/slotflow/internal/form"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/server"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type CLISuite struct {
	suite.Suite
	clock *clock
	srv   *server.Server
	http  *httptest.Server
	home  string
	open  model.Course
	full  model.Course
}

func (s *CLISuite) SetupTest() {
	s.clock = &clock{now: time.Now()}
	s.srv = server.New(server.WithClock(s.clock.Now), server.WithTokenTTL(time.Hour))
	s.http = httptest.NewServer(s.srv.Router())

	_, err := s.srv.CreateUser("admin", "admin@example.com", "Admin123!", model.RoleAdmin)
	s.Require().NoError(err)
	_, err = s.srv.CreateUser("learner", "learner@example.com", "Learner123!", model.RoleLearner)
	s.Require().NoError(err)

	start := model.NewDate(s.clock.Now().AddDate(0, 0, 10))
	end := model.NewDate(s.clock.Now().AddDate(0, 0, 12))
	s.open = s.srv.AddCourse(model.Course{Title: "Open Course", Description: "d", StartDate: start, EndDate: end, DurationHours: 4, SlotsTotal: 3, Languages: []string{"English"}})
	s.full = s.srv.AddCourse(model.Course{Title: "Full Course", Description: "d", StartDate: start, EndDate: end, DurationHours: 4, SlotsTotal: 2, SlotsBooked: 2})

	s.home = s.T().TempDir()
	s.T().Setenv("SLOTFLOW_HOME", s.home)
	s.T().Setenv("SLOTFLOW_API_URL", s.http.URL+"/api")
	s.T().Setenv("SLOTFLOW_LOG_FILE", filepath.Join(s.home, "test.log"))
	sess = nil
}

func (s *CLISuite) TearDownTest() {
	s.http.Close()
}

// resetFlags puts every flag back to its default between runs
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func (s *CLISuite) run(stdin string, args ...string) (string, error) {
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

func (s *CLISuite) login(username, password string) {
	out, err := s.run(password+"\n", "auth", "login", "--username", username)
	s.Require().NoError(err, out)
}

func (s *CLISuite) TestListCoursesSignedOut() {
	out, err := s.run("", "courses", "list")
	s.Require().NoError(err)
	s.Contains(out, "Open Course")
	s.Contains(out, "Full Course")
	s.Contains(out, "2/2")
	s.NotContains(out, "Booked")
}

func (s *CLISuite) TestBookRequiresLogin() {
	out, err := s.run("", "book", "1")
	s.ErrorIs(err, errLoginRequired)
	s.Equal(1, strings.Count(out, "You need to log in first"))
	s.Contains(out, "Run 'slotflow auth login' first.")
	s.NotContains(out, "Error:")
}

func (s *CLISuite) TestProfileRedirectIsSilent() {
	out, err := s.run("", "profile")
	s.ErrorIs(err, errLoginRequired)
	s.NotContains(out, "You need to log in first")
	s.Contains(out, "Error: not logged in, run 'slotflow auth login' first")
}

func (s *CLISuite) TestLoginPromptsForUsernameAndPassword() {
	out, err := s.run("learner\nLearner123!\n", "auth", "login")
	s.Require().NoError(err, out)
	s.Contains(out, "Logged in as learner (learner)")

	out, err = s.run("", "auth", "whoami")
	s.Require().NoError(err)
	s.Contains(out, "learner <learner@example.com>")
}

func (s *CLISuite) TestLoginValidatesBeforeCalling() {
	out, err := s.run("\n", "auth", "login", "--username", "learner")
	var formErr *form.ValidationError
	s.Require().True(errors.As(err, &formErr))
	s.Contains(out, "Password is required")
}

func (s *CLISuite) TestLoginRejectedByServer() {
	out, err := s.run("nope\n", "auth", "login", "--username", "learner")
	s.Require().Error(err)
	s.Contains(out, "No active account found with the given credentials")
	s.NotContains(out, "Error:")
}

func (s *CLISuite) TestBookFullCourseRefusedLocally() {
	s.login("learner", "Learner123!")

	out, err := s.run("", "book", itoa(s.full.ID))
	s.ErrorIs(err, booking.ErrCourseFull)
	s.Contains(out, "Course is full")
}

func (s *CLISuite) TestBookListAndCancel() {
	s.login("learner", "Learner123!")

	out, err := s.run("", "book", itoa(s.open.ID))
	s.Require().NoError(err, out)
	s.Contains(out, "Course booked successfully!")
	s.Contains(out, "1/3 slots booked")

	out, err = s.run("", "book", itoa(s.open.ID))
	s.ErrorIs(err, booking.ErrAlreadyBooked)
	s.Contains(out, "You have already booked this course")

	out, err = s.run("", "courses", "list", "--booked")
	s.Require().NoError(err)
	s.Contains(out, "Open Course")
	s.NotContains(out, "Full Course")

	out, err = s.run("n\n", "cancel", itoa(s.open.ID))
	s.Require().NoError(err)
	s.Contains(out, "Aborted.")

	out, err = s.run("y\n", "cancel", itoa(s.open.ID))
	s.Require().NoError(err, out)
	s.Contains(out, "Booking cancelled successfully")
	s.Contains(out, "0/3 slots booked")

	out, err = s.run("", "bookings")
	s.Require().NoError(err)
	s.Contains(out, "No bookings yet")

	out, err = s.run("", "bookings", "--all")
	s.Require().NoError(err)
	s.Contains(out, "Cancelled")
}

func (s *CLISuite) TestCancelWithoutBooking() {
	s.login("learner", "Learner123!")

	out, err := s.run("", "cancel", "--yes", itoa(s.open.ID))
	s.ErrorIs(err, booking.ErrNoActiveBooking)
	s.Contains(out, "Active booking not found")
}

func (s *CLISuite) TestLearnerCannotManageCourses() {
	s.login("learner", "Learner123!")

	out, err := s.run("", "courses", "delete", "--yes", itoa(s.open.ID))
	s.ErrorIs(err, errForbidden)
	s.Equal(1, strings.Count(out, "You do not have permission to access this page"))
	s.NotContains(out, "Error:")
}

func (s *CLISuite) TestAdminCannotBook() {
	s.login("admin", "Admin123!")

	_, err := s.run("", "book", itoa(s.open.ID))
	s.ErrorIs(err, errForbidden)
}

func (s *CLISuite) TestAdminCreatesUpdatesAndDeletesCourse() {
	s.login("admin", "Admin123!")
	start := time.Now().AddDate(0, 0, 3).Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 5).Format("2006-01-02")

	out, err := s.run("", "courses", "create",
		"--title", "Rust", "--description", "Ownership",
		"--start", start, "--end", end, "--duration", "6", "--slots", "10",
		"--language", "English", "--language", "German")
	s.Require().NoError(err, out)
	s.Contains(out, "Course created")

	out, err = s.run("", "courses", "list")
	s.Require().NoError(err)
	s.Contains(out, "Rust")
	s.Contains(out, "0/10")

	id := s.open.ID
	out, err = s.run("", "courses", "update", itoa(id), "--slots", "30")
	s.Require().NoError(err, out)
	c, ok := s.srv.Course(id)
	s.Require().True(ok)
	s.Equal(30, c.SlotsTotal)
	s.Equal("Open Course", c.Title)

	out, err = s.run("y\n", "courses", "delete", itoa(id))
	s.Require().NoError(err, out)
	s.Contains(out, "Course deleted successfully")
	c, _ = s.srv.Course(id)
	s.False(c.IsActive)
}

func (s *CLISuite) TestCreateCourseValidation() {
	s.login("admin", "Admin123!")
	start := time.Now().AddDate(0, 0, 5).Format("2006-01-02")
	end := time.Now().AddDate(0, 0, 3).Format("2006-01-02")

	out, err := s.run("", "courses", "create",
		"--title", "Rust", "--start", start, "--end", end, "--duration", "x", "--slots", "0")
	var formErr *form.ValidationError
	s.Require().True(errors.As(err, &formErr))
	s.Contains(out, "Description is required")
	s.Contains(out, "End date must be after start date")
	s.Contains(out, "must be a number")
	s.Contains(out, "Must have at least 1 slot")
	s.NotContains(out, "At least one language is required")
}

func (s *CLISuite) TestRegisterValidation() {
	out, err := s.run("Abc123!@\nAbc123!#\n", "auth", "register", "--username", "bob", "--email", "bob@example.com")
	s.Require().Error(err)
	s.Contains(out, "Passwords must match")

	out, err = s.run("Abc123!@\nAbc123!@\n", "auth", "register", "--username", "bob", "--email", "bob@example.com")
	s.Require().NoError(err, out)
	s.Contains(out, "Registration successful")

	s.login("bob", "Abc123!@")
}

func (s *CLISuite) TestExpiredSessionPrintsHint() {
	s.login("learner", "Learner123!")
	s.clock.Advance(2 * time.Hour)

	out, err := s.run("", "bookings")
	s.Require().Error(err)
	s.Contains(out, "Session expired. Please log in again.")
	s.Contains(out, "Run 'slotflow auth login' to sign in again.")

	out, err = s.run("", "auth", "whoami")
	s.ErrorIs(err, errLoginRequired, out)
}

func (s *CLISuite) TestConfigSet() {
	_, err := s.run("", "config", "set", "refresh_interval", "every minute")
	s.Require().Error(err)

	_, err = s.run("", "config", "set", "refresh_interval", "@every 1m")
	s.Require().NoError(err)

	cfg, err := config.Load()
	s.Require().NoError(err)
	s.Equal("@every 1m", cfg.RefreshInterval)

	out, err := s.run("", "config")
	s.Require().NoError(err)
	s.Contains(out, "@every 1m")
}

func (s *CLISuite) TestStatus() {
	out, err := s.run("", "status")
	s.Require().NoError(err)
	s.Contains(out, "Not logged in")
	s.Contains(out, "2 courses")
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
