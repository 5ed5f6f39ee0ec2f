package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/existflow/slotflow/internal/api"
	"github.com/existflow/slotflow/internal/auth"
	"github.com/existflow/slotflow/internal/booking"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/internal/notify"
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

type ServerSuite struct {
	suite.Suite
	clock   *clock
	srv     *server.Server
	http    *httptest.Server
	store   *auth.Store
	notes   *notify.Recorder
	client  *api.Client
	expired int
	open    model.Course
	full    model.Course
}

func (s *ServerSuite) SetupTest() {
	s.clock = &clock{now: time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)}
	s.srv = server.New(server.WithClock(s.clock.Now), server.WithTokenTTL(time.Hour))
	s.http = httptest.NewServer(s.srv.Router())

	_, err := s.srv.CreateUser("admin", "admin@example.com", "Admin123!", model.RoleAdmin)
	s.Require().NoError(err)
	_, err = s.srv.CreateUser("learner", "learner@example.com", "Learner123!", model.RoleLearner)
	s.Require().NoError(err)

	start := model.NewDate(s.clock.Now().AddDate(0, 0, 10))
	end := model.NewDate(s.clock.Now().AddDate(0, 0, 12))
	s.open = s.srv.AddCourse(model.Course{Title: "Open", Description: "d", StartDate: start, EndDate: end, DurationHours: 4, SlotsTotal: 3, Languages: []string{"English"}})
	s.full = s.srv.AddCourse(model.Course{Title: "Full", Description: "d", StartDate: start, EndDate: end, DurationHours: 4, SlotsTotal: 2, SlotsBooked: 2})

	s.store = auth.NewStore(&auth.MemorySlot{})
	s.notes = &notify.Recorder{}
	s.expired = 0
	s.client = api.New(s.http.URL+"/api", s.store,
		api.WithNotifier(s.notes),
		api.WithSessionExpired(func() { s.expired++ }),
	)
}

func (s *ServerSuite) TearDownTest() {
	s.http.Close()
}

func (s *ServerSuite) login(username, password string) {
	s.Require().NoError(s.client.Auth.Login(context.Background(), username, password))
}

func (s *ServerSuite) TestLoginByUsernameOrEmail() {
	s.login("learner@example.com", "Learner123!")
	id, ok := s.store.CurrentUser()
	s.Require().True(ok)
	s.Equal("learner", id.Username)
	s.True(id.IsLearner)
	s.False(id.IsAdmin)
}

func (s *ServerSuite) TestLoginRejected() {
	err := s.client.Auth.Login(context.Background(), "learner", "wrong")
	var apiErr *api.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusUnauthorized, apiErr.Status)
	s.Equal("No active account found with the given credentials", apiErr.Message())
	s.Equal(0, s.expired)
}

func (s *ServerSuite) TestCoursesArePublic() {
	courses, err := s.client.Courses.List(context.Background())
	s.Require().NoError(err)
	s.Len(courses, 2)
}

func (s *ServerSuite) TestBookingsRequireLogin() {
	_, err := s.client.Bookings.List(context.Background())
	var apiErr *api.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusUnauthorized, apiErr.Status)
	s.Equal(0, s.expired)
}

func (s *ServerSuite) TestBookCancelAndRebook() {
	s.login("learner", "Learner123!")
	ctx := context.Background()

	b, err := s.client.Bookings.Create(ctx, s.open.ID)
	s.Require().NoError(err)
	s.Equal(s.open.ID, b.Course.ID)
	s.False(b.IsCancelled)

	_, err = s.client.Bookings.Create(ctx, s.open.ID)
	var apiErr *api.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(api.KindFieldErrors, apiErr.Kind)
	s.Equal([]string{"You already have an active booking for this course"}, apiErr.Fields["non_field_errors"])

	msg, err := s.client.Bookings.Cancel(ctx, b.ID)
	s.Require().NoError(err)
	s.Equal("Booking cancelled successfully", msg)

	_, err = s.client.Bookings.Cancel(ctx, b.ID)
	s.Require().True(errors.As(err, &apiErr))
	s.Equal("Booking already cancelled", apiErr.Message())

	again, err := s.client.Bookings.Create(ctx, s.open.ID)
	s.Require().NoError(err)
	s.Equal(b.ID, again.ID)

	course, ok := s.srv.Course(s.open.ID)
	s.Require().True(ok)
	s.Equal(1, course.SlotsBooked)
}

func (s *ServerSuite) TestFullCourseRejectedByServer() {
	s.login("learner", "Learner123!")

	_, err := s.client.Bookings.Create(context.Background(), s.full.ID)
	var apiErr *api.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal([]string{"Course is full"}, apiErr.Fields["course"])
}

func (s *ServerSuite) TestExpiredTokenEndsSession() {
	s.login("learner", "Learner123!")
	s.clock.Advance(2 * time.Hour)

	_, err := s.client.Courses.List(context.Background())
	s.Require().Error(err)
	s.True(errors.Is(err, api.ErrSessionExpired))
	s.Equal(1, s.expired)
	s.Equal(1, s.notes.Count(notify.Warning, api.SessionExpiredMessage))
	_, ok := s.store.Read()
	s.False(ok)

	courses, err := s.client.Courses.List(context.Background())
	s.Require().NoError(err)
	s.Len(courses, 2)
}

func (s *ServerSuite) TestAdminCourseLifecycle() {
	s.login("admin", "Admin123!")
	ctx := context.Background()

	created, err := s.client.Courses.Create(ctx, model.CourseInput{
		Title:         "New",
		Description:   "Fresh course",
		StartDate:     model.NewDate(s.clock.Now().AddDate(0, 1, 0)),
		EndDate:       model.NewDate(s.clock.Now().AddDate(0, 1, 3)),
		DurationHours: 6,
		SlotsTotal:    10,
		PictureName:   "cover.png",
		Picture:       []byte("png"),
	})
	s.Require().NoError(err)
	s.Equal([]string{"English"}, created.Languages)
	s.Require().NotNil(created.Picture)
	s.Equal("/media/course_pics/cover.png", *created.Picture)

	updated, err := s.client.Courses.Update(ctx, created.ID, model.CourseInput{Title: "Renamed", SlotsTotal: 20})
	s.Require().NoError(err)
	s.Equal("Renamed", updated.Title)
	s.Equal(20, updated.SlotsTotal)
	s.Equal("Fresh course", updated.Description)

	s.Require().NoError(s.client.Courses.Delete(ctx, created.ID))
	courses, err := s.client.Courses.List(ctx)
	s.Require().NoError(err)
	for _, c := range courses {
		s.NotEqual(created.ID, c.ID)
	}
}

func (s *ServerSuite) TestCourseValidation() {
	s.login("admin", "Admin123!")

	_, err := s.client.Courses.Create(context.Background(), model.CourseInput{
		Title:         "Backwards",
		Description:   "d",
		StartDate:     model.NewDate(s.clock.Now().AddDate(0, 0, 5)),
		EndDate:       model.NewDate(s.clock.Now().AddDate(0, 0, 1)),
		DurationHours: 1,
		SlotsTotal:    1,
	})
	var apiErr *api.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal([]string{"End date must be after start date"}, apiErr.Fields["end_date"])
}

func (s *ServerSuite) TestLearnerCannotCreateCourses() {
	s.login("learner", "Learner123!")

	_, err := s.client.Courses.Create(context.Background(), model.CourseInput{Title: "Nope"})
	var apiErr *api.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusForbidden, apiErr.Status)
}

func (s *ServerSuite) TestRegisterAndProfile() {
	ctx := context.Background()
	_, err := s.client.Auth.Register(ctx, model.RegisterInput{
		Username: "new", Email: "new@example.com", Password: "Abc123!@", Password2: "Abc123!@", Role: model.RoleLearner,
	})
	s.Require().NoError(err)

	_, err = s.client.Auth.Register(ctx, model.RegisterInput{
		Username: "new", Email: "other@example.com", Password: "weak", Password2: "weak", Role: "teacher",
	})
	var apiErr *api.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(api.KindFieldErrors, apiErr.Kind)
	s.Contains(apiErr.Fields, "username")
	s.Contains(apiErr.Fields, "password")
	s.Contains(apiErr.Fields, "role")

	s.login("new", "Abc123!@")
	me, err := s.client.Auth.Me(ctx)
	s.Require().NoError(err)
	s.Equal("new@example.com", me.Email)

	me, err = s.client.Auth.UpdateProfile(ctx, "renamed", "renamed@example.com")
	s.Require().NoError(err)
	s.Equal("renamed", me.Username)

	s.Require().NoError(s.client.Auth.ChangePassword(ctx, "Abc123!@", "Xyz789!@"))
	s.Require().NoError(s.client.Auth.Logout())
	s.login("renamed", "Xyz789!@")
}

func (s *ServerSuite) TestProfilePicture() {
	s.login("learner", "Learner123!")
	ctx := context.Background()

	p, err := s.client.Auth.UploadProfilePicture(ctx, "me.jpg", bytesReader("jpg"))
	s.Require().NoError(err)
	s.Require().NotNil(p.ProfilePicture)

	s.Require().NoError(s.client.Auth.RemoveProfilePicture(ctx))
	err = s.client.Auth.RemoveProfilePicture(ctx)
	var apiErr *api.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal("No profile picture to delete", apiErr.Message())
}

func (s *ServerSuite) TestEngineAgainstServer() {
	s.login("learner", "Learner123!")
	ctx := context.Background()
	engine := booking.NewEngine(booking.NewAPIBackend(s.client), booking.WithNotifier(s.notes))
	s.Require().NoError(engine.Refresh(ctx))

	_, err := engine.Book(ctx, s.full.ID)
	s.ErrorIs(err, booking.ErrCourseFull)

	_, err = engine.Book(ctx, s.open.ID)
	s.Require().NoError(err)
	engine.Settle()

	v, ok := engine.Snapshot().View(s.open.ID)
	s.Require().True(ok)
	s.True(v.IsBooked)
	s.Equal(2, v.SlotsAvailable)

	s.Require().NoError(engine.Cancel(ctx, s.open.ID))
	engine.Settle()
	v, _ = engine.Snapshot().View(s.open.ID)
	s.False(v.IsBooked)
	s.Equal(3, v.SlotsAvailable)
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func bytesReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
