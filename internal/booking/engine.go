package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"
	"golang.org/x/sync/errgroup"

	"github.com/existflow/slotflow/internal/failure"
	"github.com/existflow/slotflow/internal/logger"
	"github.com/existflow/slotflow/internal/metrics"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/internal/notify"
)

var (
	ErrCourseFull      = failure.New(failure.Conflict, "Course is full")
	ErrAlreadyBooked   = failure.New(failure.Conflict, "You have already booked this course")
	ErrNoActiveBooking = failure.New(failure.Conflict, "Active booking not found")
	ErrUnknownCourse   = failure.New(failure.Conflict, "Course not found")
	ErrActionPending   = failure.New(failure.Conflict, "A request for this course is already in progress")
)

// Messages notified after successful actions
const (
	MsgBooked    = "Course booked successfully!"
	MsgCancelled = "Booking cancelled successfully"
)

// Snapshot is the state the engine currently considers authoritative
type Snapshot struct {
	Courses  []model.Course
	Bookings []model.Booking
	Views    map[int]View

	Loaded     bool
	Optimistic bool // an action delta is applied on top of the last fetch
	FetchedAt  time.Time
}

// View returns the derived view of courseID
func (s Snapshot) View(courseID int) (View, bool) {
	v, ok := s.Views[courseID]
	return v, ok
}

// Engine owns the booking snapshot
type Engine struct {
	backend      Backend
	notifier     notify.Notifier
	withBookings func() bool
	onChange     func(Snapshot)
	now          func() time.Time

	mu       sync.Mutex
	snap     Snapshot
	inflight map[int]struct{} // course ids with a book or cancel on the wire

	pending sync.WaitGroup
}

// Option configures an Engine
type Option func(*Engine)

// WithNotifier reports local rejections and successful actions
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// OnChange registers a callback run after every snapshot replacement
func OnChange(fn func(Snapshot)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithBookings decides per refresh whether bookings are fetched. Signed
// out users only see the catalog.
func WithBookings(fn func() bool) Option {
	return func(e *Engine) { e.withBookings = fn }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine with an empty snapshot
func NewEngine(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:      backend,
		notifier:     notify.Discard,
		withBookings: func() bool { return true },
		now:          time.Now,
		snap:         Snapshot{Views: map[int]View{}},
		inflight:     map[int]struct{}{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns a deep copy of the current state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyLocked()
}

func (e *Engine) copyLocked() Snapshot {
	var out Snapshot
	if err := deepcopy.Copy(&out, &e.snap); err != nil {
		logger.Error("Failed to copy snapshot", logger.F("error", err.Error()))
		return Snapshot{Views: map[int]View{}}
	}
	return out
}

// Refresh fetches courses and bookings concurrently. Both must succeed;
// otherwise the previous snapshot is kept. The last refresh to complete
// wins.
func (e *Engine) Refresh(ctx context.Context) error {
	var (
		courses  []model.Course
		bookings []model.Booking
	)
	withBookings := e.withBookings()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		courses, err = e.backend.ListCourses(gctx)
		return err
	})
	if withBookings {
		g.Go(func() error {
			var err error
			bookings, err = e.backend.ListBookings(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RefreshCount.WithLabelValues("error").Inc()
		logger.Warn("Refresh failed, keeping previous snapshot", logger.F("error", err.Error()))
		return fmt.Errorf("refresh: %w", err)
	}
	metrics.RefreshCount.WithLabelValues("ok").Inc()

	if courses == nil {
		courses = []model.Course{}
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}

	e.mu.Lock()
	e.snap = Snapshot{
		Courses:   courses,
		Bookings:  bookings,
		Views:     Reconcile(courses, bookings),
		Loaded:    true,
		FetchedAt: e.now(),
	}
	out := e.copyLocked()
	e.mu.Unlock()

	logger.Debug("Snapshot refreshed",
		logger.F("courses", len(courses)),
		logger.F("bookings", len(bookings)),
	)
	e.changed(out)
	return nil
}

// Book reserves a slot on courseID. Known full or already booked courses,
// and courses with a request still in flight, are rejected without a
// network call.
func (e *Engine) Book(ctx context.Context, courseID int) (*model.Booking, error) {
	e.mu.Lock()
	course, known := FindCourse(e.snap.Courses, courseID)
	_, booked := ActiveBooking(e.snap.Bookings, courseID)
	var reason error
	switch {
	case e.busyLocked(courseID):
		reason = ErrActionPending
	case e.snap.Loaded && !known:
		reason = ErrUnknownCourse
	case known && booked:
		reason = ErrAlreadyBooked
	case known && course.IsFull():
		reason = ErrCourseFull
	default:
		e.inflight[courseID] = struct{}{}
	}
	e.mu.Unlock()

	if reason != nil {
		return nil, e.reject(reason, courseID)
	}
	defer e.done(courseID)

	b, err := e.backend.Book(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = &model.Booking{Course: model.CourseRef{ID: courseID}}
	}
	if b.Course.ID == 0 {
		b.Course.ID = courseID
	}

	e.apply(func(s *Snapshot) {
		for i := range s.Courses {
			if s.Courses[i].ID == courseID && s.Courses[i].SlotsBooked < s.Courses[i].SlotsTotal {
				s.Courses[i].SlotsBooked++
			}
		}
		replaced := false
		for i := range s.Bookings {
			if b.ID != 0 && s.Bookings[i].ID == b.ID {
				s.Bookings[i] = *b
				replaced = true
			}
		}
		if !replaced {
			s.Bookings = append(s.Bookings, *b)
		}
	})

	logger.Info("Course booked", logger.F("course_id", courseID), logger.F("booking_id", b.ID))
	e.notifier.Notify(notify.New(notify.Success, MsgBooked))
	e.scheduleRefresh(ctx)
	return b, nil
}

// Cancel cancels the active booking on courseID
func (e *Engine) Cancel(ctx context.Context, courseID int) error {
	e.mu.Lock()
	b, ok := ActiveBooking(e.snap.Bookings, courseID)
	var reason error
	switch {
	case e.busyLocked(courseID):
		reason = ErrActionPending
	case !ok:
		reason = ErrNoActiveBooking
	default:
		e.inflight[courseID] = struct{}{}
	}
	e.mu.Unlock()

	if reason != nil {
		return e.reject(reason, courseID)
	}
	defer e.done(courseID)

	detail, err := e.backend.Cancel(ctx, b.ID)
	if err != nil {
		return err
	}

	cancelledAt := e.now()
	e.apply(func(s *Snapshot) {
		for i := range s.Courses {
			if s.Courses[i].ID == courseID && s.Courses[i].SlotsBooked > 0 {
				s.Courses[i].SlotsBooked--
			}
		}
		for i := range s.Bookings {
			if s.Bookings[i].ID == b.ID {
				s.Bookings[i].IsCancelled = true
				s.Bookings[i].CancelledAt = &cancelledAt
			}
		}
	})

	if detail == "" {
		detail = MsgCancelled
	}
	logger.Info("Booking cancelled", logger.F("course_id", courseID), logger.F("booking_id", b.ID))
	e.notifier.Notify(notify.New(notify.Success, detail))
	e.scheduleRefresh(ctx)
	return nil
}

// Settle waits for scheduled refreshes to finish
func (e *Engine) Settle() {
	e.pending.Wait()
}

func (e *Engine) busyLocked(courseID int) bool {
	_, ok := e.inflight[courseID]
	return ok
}

func (e *Engine) done(courseID int) {
	e.mu.Lock()
	delete(e.inflight, courseID)
	e.mu.Unlock()
}

func (e *Engine) reject(err error, courseID int) error {
	logger.Debug("Action rejected locally", logger.F("course_id", courseID), logger.F("reason", err.Error()))
	e.notifier.Notify(notify.New(notify.Error, err.Error()))
	return err
}

// apply mutates the snapshot in place and re-derives the views
func (e *Engine) apply(delta func(s *Snapshot)) {
	e.mu.Lock()
	delta(&e.snap)
	e.snap.Views = Reconcile(e.snap.Courses, e.snap.Bookings)
	e.snap.Optimistic = true
	out := e.copyLocked()
	e.mu.Unlock()

	e.changed(out)
}

func (e *Engine) scheduleRefresh(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		if err := e.Refresh(ctx); err != nil {
			logger.Warn("Follow-up refresh failed", logger.F("error", err.Error()))
		}
	}()
}

func (e *Engine) changed(s Snapshot) {
	if e.onChange != nil {
		e.onChange(s)
	}
}
