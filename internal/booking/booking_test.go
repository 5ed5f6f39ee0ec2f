package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/existflow/slotflow/internal/failure"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/internal/notify"
)

type fakeBackend struct {
	mu       sync.Mutex
	courses  []model.Course
	bookings []model.Booking

	coursesErr error
	bookErr    error
	cancelErr  error

	hold chan struct{} // when set, Book and Cancel block until it is closed

	courseCalls  int32
	bookingCalls int32
	bookCalls    int32
	cancelCalls  int32
}

func (f *fakeBackend) ListCourses(ctx context.Context) ([]model.Course, error) {
	atomic.AddInt32(&f.courseCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.coursesErr != nil {
		return nil, f.coursesErr
	}
	return append([]model.Course(nil), f.courses...), nil
}

func (f *fakeBackend) ListBookings(ctx context.Context) ([]model.Booking, error) {
	atomic.AddInt32(&f.bookingCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Booking(nil), f.bookings...), nil
}

func (f *fakeBackend) Book(ctx context.Context, courseID int) (*model.Booking, error) {
	atomic.AddInt32(&f.bookCalls, 1)
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	b := model.Booking{ID: 100 + courseID, Course: model.CourseRef{ID: courseID}}
	f.bookings = append(f.bookings, b)
	for i := range f.courses {
		if f.courses[i].ID == courseID {
			f.courses[i].SlotsBooked++
		}
	}
	return &b, nil
}

func (f *fakeBackend) Cancel(ctx context.Context, bookingID int) (string, error) {
	atomic.AddInt32(&f.cancelCalls, 1)
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return "", f.cancelErr
	}
	for i := range f.bookings {
		if f.bookings[i].ID == bookingID {
			f.bookings[i].IsCancelled = true
			for j := range f.courses {
				if f.courses[j].ID == f.bookings[i].Course.ID {
					f.courses[j].SlotsBooked--
				}
			}
		}
	}
	return "Booking cancelled successfully", nil
}

type EngineSuite struct {
	suite.Suite
	backend *fakeBackend
	notes   *notify.Recorder
	engine  *Engine
	changes int32
}

func (s *EngineSuite) SetupTest() {
	s.backend = &fakeBackend{
		courses: []model.Course{
			{ID: 1, Title: "Full", SlotsTotal: 2, SlotsBooked: 2},
			{ID: 2, Title: "Open", SlotsTotal: 3, SlotsBooked: 1},
			{ID: 3, Title: "Mine", SlotsTotal: 5, SlotsBooked: 1},
		},
		bookings: []model.Booking{
			{ID: 30, Course: model.CourseRef{ID: 3}},
			{ID: 20, Course: model.CourseRef{ID: 2}, IsCancelled: true},
		},
	}
	s.notes = &notify.Recorder{}
	s.changes = 0
	s.engine = NewEngine(s.backend,
		WithNotifier(s.notes),
		OnChange(func(Snapshot) { atomic.AddInt32(&s.changes, 1) }),
	)
	s.Require().NoError(s.engine.Refresh(context.Background()))
}

func (s *EngineSuite) TestRefreshDerivesViews() {
	snap := s.engine.Snapshot()
	s.True(snap.Loaded)
	s.False(snap.Optimistic)
	s.Equal(View{IsBooked: false, IsFull: true, SlotsAvailable: 0}, snap.Views[1])
	s.Equal(View{IsBooked: false, IsFull: false, SlotsAvailable: 2}, snap.Views[2])
	s.Equal(View{IsBooked: true, IsFull: false, SlotsAvailable: 4}, snap.Views[3])
	s.Equal(int32(1), atomic.LoadInt32(&s.changes))
}

func (s *EngineSuite) TestFullCourseRejectedBeforeNetwork() {
	_, err := s.engine.Book(context.Background(), 1)
	s.ErrorIs(err, ErrCourseFull)
	s.Equal(failure.Conflict, failure.Classify(err))
	s.Equal(int32(0), atomic.LoadInt32(&s.backend.bookCalls))
	s.Equal(1, s.notes.Count(notify.Error, "Course is full"))
}

func (s *EngineSuite) TestAlreadyBookedRejectedBeforeNetwork() {
	_, err := s.engine.Book(context.Background(), 3)
	s.ErrorIs(err, ErrAlreadyBooked)
	s.Equal(int32(0), atomic.LoadInt32(&s.backend.bookCalls))
}

func (s *EngineSuite) TestUnknownCourse() {
	_, err := s.engine.Book(context.Background(), 99)
	s.ErrorIs(err, ErrUnknownCourse)
	s.Equal(int32(0), atomic.LoadInt32(&s.backend.bookCalls))
}

func (s *EngineSuite) TestBookAppliesDeltaThenRefetches() {
	var seen []Snapshot
	var mu sync.Mutex
	s.engine.onChange = func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	}

	b, err := s.engine.Book(context.Background(), 2)
	s.Require().NoError(err)
	s.Equal(102, b.ID)
	s.engine.Settle()

	mu.Lock()
	defer mu.Unlock()
	s.Require().Len(seen, 2)

	optimistic := seen[0]
	s.True(optimistic.Optimistic)
	s.Equal(View{IsBooked: true, IsFull: false, SlotsAvailable: 1}, optimistic.Views[2])

	fetched := seen[1]
	s.False(fetched.Optimistic)
	s.Equal(optimistic.Views, fetched.Views)
	s.Equal(1, s.notes.Count(notify.Success, MsgBooked))
}

func (s *EngineSuite) TestConcurrentBookSubmitsOnce() {
	s.backend.hold = make(chan struct{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.engine.Book(context.Background(), 2)
		}(i)
	}
	s.Eventually(func() bool {
		return s.notes.Count(notify.Error, ErrActionPending.Error()) == 1
	}, time.Second, 5*time.Millisecond)
	close(s.backend.hold)
	wg.Wait()
	s.engine.Settle()

	s.Equal(int32(1), atomic.LoadInt32(&s.backend.bookCalls))
	failed := 0
	for _, err := range errs {
		if err != nil {
			s.ErrorIs(err, ErrActionPending)
			s.Equal(failure.Conflict, failure.Classify(err))
			failed++
		}
	}
	s.Equal(1, failed)
	s.True(s.engine.Snapshot().Views[2].IsBooked)
}

func (s *EngineSuite) TestCancelWhileBookingPendingIsRefused() {
	s.backend.hold = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := s.engine.Book(context.Background(), 2)
		done <- err
	}()
	s.Eventually(func() bool {
		return atomic.LoadInt32(&s.backend.bookCalls) == 1
	}, time.Second, 5*time.Millisecond)

	s.ErrorIs(s.engine.Cancel(context.Background(), 2), ErrActionPending)
	s.Equal(int32(1), atomic.LoadInt32(&s.backend.cancelCalls))

	close(s.backend.hold)
	s.NoError(<-done)
	s.engine.Settle()

	// released once the request returns
	s.NoError(s.engine.Cancel(context.Background(), 2))
	s.engine.Settle()
}

func (s *EngineSuite) TestBookFailureLeavesStateUntouched() {
	before := s.engine.Snapshot()
	s.backend.bookErr = errors.New("You already have an active booking for this course")

	_, err := s.engine.Book(context.Background(), 2)
	s.Error(err)
	s.engine.Settle()

	after := s.engine.Snapshot()
	s.Equal(before.Views, after.Views)
	s.Equal(before.Courses, after.Courses)
	s.Equal(before.Bookings, after.Bookings)
	s.Equal(int32(1), atomic.LoadInt32(&s.changes))
}

func (s *EngineSuite) TestCancelWithoutActiveBooking() {
	err := s.engine.Cancel(context.Background(), 2)
	s.ErrorIs(err, ErrNoActiveBooking)
	s.Equal(int32(0), atomic.LoadInt32(&s.backend.cancelCalls))
	s.Equal(1, s.notes.Count(notify.Error, "Active booking not found"))
}

func (s *EngineSuite) TestCancelAppliesDelta() {
	s.Require().NoError(s.engine.Cancel(context.Background(), 3))
	s.engine.Settle()

	snap := s.engine.Snapshot()
	s.Equal(View{IsBooked: false, IsFull: false, SlotsAvailable: 5}, snap.Views[3])
	s.Equal(1, s.notes.Count(notify.Success, "Booking cancelled successfully"))
}

func (s *EngineSuite) TestCancelFailureLeavesStateUntouched() {
	before := s.engine.Snapshot()
	s.backend.cancelErr = errors.New("Booking already cancelled")

	s.Error(s.engine.Cancel(context.Background(), 3))
	s.Equal(before.Views, s.engine.Snapshot().Views)
}

func (s *EngineSuite) TestFailedRefreshKeepsStaleSnapshot() {
	before := s.engine.Snapshot()
	s.backend.mu.Lock()
	s.backend.coursesErr = errors.New("boom")
	s.backend.courses = nil
	s.backend.mu.Unlock()

	s.Error(s.engine.Refresh(context.Background()))
	s.Equal(before.Views, s.engine.Snapshot().Views)
}

func (s *EngineSuite) TestSnapshotIsACopy() {
	snap := s.engine.Snapshot()
	snap.Courses[0].SlotsBooked = 0
	snap.Views[1] = View{}

	fresh := s.engine.Snapshot()
	s.Equal(2, fresh.Courses[0].SlotsBooked)
	s.True(fresh.Views[1].IsFull)
}

func (s *EngineSuite) TestSignedOutRefreshSkipsBookings() {
	e := NewEngine(s.backend, WithBookings(func() bool { return false }))
	calls := atomic.LoadInt32(&s.backend.bookingCalls)

	s.Require().NoError(e.Refresh(context.Background()))
	s.Equal(calls, atomic.LoadInt32(&s.backend.bookingCalls))
	s.False(e.Snapshot().Views[3].IsBooked)
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func TestReconcileIsPure(t *testing.T) {
	courses := []model.Course{
		{ID: 1, SlotsTotal: 2, SlotsBooked: 2},
		{ID: 2, SlotsTotal: 10, SlotsBooked: 4},
	}
	bookings := []model.Booking{
		{ID: 1, Course: model.CourseRef{ID: 2}},
		{ID: 2, Course: model.CourseRef{ID: 1}, IsCancelled: true},
	}
	coursesBefore := append([]model.Course(nil), courses...)
	bookingsBefore := append([]model.Booking(nil), bookings...)

	first := Reconcile(courses, bookings)
	second := Reconcile(courses, bookings)

	assert.Equal(t, first, second)
	assert.Equal(t, coursesBefore, courses)
	assert.Equal(t, bookingsBefore, bookings)
	assert.Equal(t, View{IsFull: true}, first[1])
	assert.Equal(t, View{IsBooked: true, SlotsAvailable: 6}, first[2])
}

func TestReconcileSlotsWithinBounds(t *testing.T) {
	views := Reconcile([]model.Course{
		{ID: 1, SlotsTotal: 0, SlotsBooked: 0},
		{ID: 2, SlotsTotal: 3, SlotsBooked: 0},
		{ID: 3, SlotsTotal: 3, SlotsBooked: 3},
	}, nil)
	for id, v := range views {
		assert.GreaterOrEqual(t, v.SlotsAvailable, 0, id)
	}
	assert.True(t, views[1].IsFull)
	assert.Equal(t, 3, views[2].SlotsAvailable)
}

func TestFullCourseScenario(t *testing.T) {
	backend := &fakeBackend{courses: []model.Course{{ID: 1, SlotsTotal: 2, SlotsBooked: 2}}}
	e := NewEngine(backend)
	require.NoError(t, e.Refresh(context.Background()))

	v, ok := e.Snapshot().View(1)
	require.True(t, ok)
	assert.True(t, v.IsFull)
	assert.False(t, v.IsBooked)

	_, err := e.Book(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCourseFull)
	assert.Equal(t, int32(0), atomic.LoadInt32(&backend.bookCalls))
}

// gatedBackend blocks each ListCourses call until released, so the test
// controls completion order.
type gatedBackend struct {
	fakeBackend
	gates chan chan []model.Course
}

func (g *gatedBackend) ListCourses(ctx context.Context) ([]model.Course, error) {
	gate := make(chan []model.Course)
	g.gates <- gate
	return <-gate, nil
}

func TestLastCompletedRefreshWins(t *testing.T) {
	backend := &gatedBackend{gates: make(chan chan []model.Course)}
	e := NewEngine(backend)

	errs := make(chan error, 2)
	go func() { errs <- e.Refresh(context.Background()) }()
	first := <-backend.gates
	go func() { errs <- e.Refresh(context.Background()) }()
	second := <-backend.gates

	second <- []model.Course{{ID: 1, SlotsTotal: 5, SlotsBooked: 5}}
	require.NoError(t, <-errs)
	first <- []model.Course{{ID: 1, SlotsTotal: 5, SlotsBooked: 1}}
	require.NoError(t, <-errs)

	v, _ := e.Snapshot().View(1)
	assert.False(t, v.IsFull)
	assert.Equal(t, 4, v.SlotsAvailable)
}

func TestAutoRefreshTriggerDebounces(t *testing.T) {
	backend := &fakeBackend{courses: []model.Course{{ID: 1, SlotsTotal: 1}}}
	e := NewEngine(backend)

	a, err := NewAutoRefresh(e, "@every 1h", nil)
	require.NoError(t, err)
	a.SetDebounce(20 * time.Millisecond)
	defer a.Stop()

	a.Trigger()
	a.Trigger()
	a.Trigger()
	assert.True(t, a.IsPending())

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&backend.courseCalls) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		return atomic.LoadInt32(&backend.courseCalls) > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestAutoRefreshDisabled(t *testing.T) {
	backend := &fakeBackend{}
	e := NewEngine(backend)

	a, err := NewAutoRefresh(e, "@every 1h", func() bool { return false })
	require.NoError(t, err)
	a.SetDebounce(time.Millisecond)

	a.Trigger()
	time.Sleep(50 * time.Millisecond)
	a.Stop()
	assert.Equal(t, int32(0), atomic.LoadInt32(&backend.courseCalls))
}

func TestAutoRefreshRejectsBadSpec(t *testing.T) {
	_, err := NewAutoRefresh(NewEngine(&fakeBackend{}), "every so often", nil)
	assert.Error(t, err)
}
