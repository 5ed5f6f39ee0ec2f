package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/existflow/slotflow/internal/api"
	"github.com/existflow/slotflow/internal/auth"
	"github.com/existflow/slotflow/internal/booking"
	"github.com/existflow/slotflow/internal/config"
	"github.com/existflow/slotflow/internal/guard"
	"github.com/existflow/slotflow/internal/logger"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/internal/notify"
)

// Pane represents which pane is focused
type Pane int

const (
	PaneSidebar Pane = iota
	PaneCourseList
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeConfirm
	ModeHelp
	ModeExpired
)

// Section is a sidebar entry. Each one stands for a guarded route.
type Section struct {
	Title string
	Route guard.Route
	// include decides whether a course is listed in the section
	include func(c model.Course, v booking.View) bool
	// manage enables admin actions
	manage bool
}

var (
	sectionCourses = Section{
		Title:   "All Courses",
		Route:   guard.Home,
		include: func(model.Course, booking.View) bool { return true },
	}
	sectionAvailable = Section{
		Title:   "Available",
		Route:   guard.Home,
		include: func(_ model.Course, v booking.View) bool { return !v.IsBooked && !v.IsFull },
	}
	sectionBookings = Section{
		Title:   "My Bookings",
		Route:   guard.LearnerDashboard,
		include: func(_ model.Course, v booking.View) bool { return v.IsBooked },
	}
	sectionAdmin = Section{
		Title:   "Admin",
		Route:   guard.AdminDashboard,
		include: func(model.Course, booking.View) bool { return true },
		manage:  true,
	}
)

// pendingAction waits for a y/n answer
type pendingAction struct {
	prompt string
	action string
	run    func(ctx context.Context) error
}

// Model is the main TUI model
type Model struct {
	cfg    *config.Config
	store  *auth.Store
	client *api.Client
	engine *booking.Engine
	auto   *booking.AutoRefresh
	guard  *guard.Guard
	queue  *notify.Queue

	changes  chan struct{} // engine snapshot replaced
	expired  chan struct{} // session expired
	authSub  <-chan auth.Change
	stopAuth func()

	snap     booking.Snapshot
	identity auth.Identity
	signedIn bool
	sections []Section

	// UI state
	width        int
	height       int
	pane         Pane
	mode         Mode
	secCursor    int
	courseCursor int
	visible      []model.Course

	// Input
	input   textinput.Model
	spinner spinner.Model
	busy    int

	filterText string
	confirm    *pendingAction

	message      string
	messageLevel notify.Level
	now          func() time.Time
}

// NewModel creates a TUI model talking to the API configured in cfg
func NewModel(cfg *config.Config, store *auth.Store) (Model, error) {
	logger.Info("Initializing TUI model", logger.F("api_url", cfg.APIURL))

	ti := textinput.New()
	ti.Placeholder = "title, description or language"
	ti.CharLimit = 64
	ti.Width = 40

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		cfg:     cfg,
		store:   store,
		queue:   notify.NewQueue(16),
		changes: make(chan struct{}, 1), // Buffered to avoid blocking
		expired: make(chan struct{}, 1),
		pane:    PaneCourseList,
		mode:    ModeNormal,
		input:   ti,
		spinner: sp,
		now:     time.Now,
		snap:    booking.Snapshot{Views: map[int]booking.View{}},
	}

	m.client = api.New(cfg.APIURL, store,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithNotifier(m.queue),
		api.WithSessionExpired(func() { signal(m.expired) }),
	)
	m.guard = guard.New(store, m.queue)
	m.engine = booking.NewEngine(booking.NewAPIBackend(m.client),
		booking.WithNotifier(m.queue),
		booking.WithBookings(func() bool {
			_, ok := store.CurrentUser()
			return ok
		}),
		booking.OnChange(func(booking.Snapshot) { signal(m.changes) }),
	)

	auto, err := booking.NewAutoRefresh(m.engine, cfg.RefreshInterval, func() bool {
		_, ok := store.CurrentUser()
		return ok
	})
	if err != nil {
		return Model{}, err
	}
	m.auto = auto
	m.auto.Start()

	m.authSub, m.stopAuth = store.Subscribe()
	m.loadIdentity()
	return m, nil
}

// Close stops background work
func (m Model) Close() {
	if m.auto != nil {
		m.auto.Stop()
	}
	if m.stopAuth != nil {
		m.stopAuth()
	}
	m.engine.Settle()
}

// signal does a non-blocking send on a wake-up channel
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// loadIdentity reads the credential and rebuilds the sidebar
func (m *Model) loadIdentity() {
	m.identity, m.signedIn = m.store.CurrentUser()

	m.sections = []Section{sectionCourses, sectionAvailable}
	if m.signedIn && m.identity.HasAnyRole(sectionBookings.Route.AllowedRoles...) {
		m.sections = append(m.sections, sectionBookings)
	}
	if m.signedIn && m.identity.HasAnyRole(sectionAdmin.Route.AllowedRoles...) {
		m.sections = append(m.sections, sectionAdmin)
	}
	if m.secCursor >= len(m.sections) {
		m.secCursor = 0
	}
	m.loadData()
}

// loadData rebuilds the visible course list from the snapshot
func (m *Model) loadData() {
	sec := m.currentSection()
	filter := strings.ToLower(strings.TrimSpace(m.filterText))

	var visible []model.Course
	for _, c := range m.snap.Courses {
		if !sec.include(c, m.snap.Views[c.ID]) {
			continue
		}
		if filter != "" && !matches(c, filter) {
			continue
		}
		visible = append(visible, c)
	}
	m.visible = visible
	if m.courseCursor >= len(m.visible) {
		m.courseCursor = len(m.visible) - 1
	}
	if m.courseCursor < 0 {
		m.courseCursor = 0
	}
}

func matches(c model.Course, filter string) bool {
	if strings.Contains(strings.ToLower(c.Title), filter) ||
		strings.Contains(strings.ToLower(c.Description), filter) {
		return true
	}
	for _, l := range c.Languages {
		if strings.Contains(strings.ToLower(l), filter) {
			return true
		}
	}
	return false
}

func (m *Model) currentSection() Section {
	if m.secCursor < len(m.sections) {
		return m.sections[m.secCursor]
	}
	return sectionCourses
}

func (m *Model) currentCourse() *model.Course {
	if m.courseCursor < len(m.visible) {
		return &m.visible[m.courseCursor]
	}
	return nil
}
