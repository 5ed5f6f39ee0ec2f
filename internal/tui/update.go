package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/existflow/slotflow/internal/auth"
	"github.com/existflow/slotflow/internal/guard"
	"github.com/existflow/slotflow/internal/logger"
	"github.com/existflow/slotflow/internal/notify"
)

// tickMsg is sent every second for the clock
type tickMsg time.Time

// changedMsg is sent when the engine replaced its snapshot
type changedMsg struct{}

// notificationMsg carries a queued notification
type notificationMsg notify.Notification

// expiredMsg is sent when the API rejected the credential
type expiredMsg struct{}

// authMsg is sent when the credential was stored or cleared
type authMsg auth.Change

// actionDoneMsg ends a background API call
type actionDoneMsg struct {
	action string
	err    error
}

// Init starts the clock, the listeners and the first refresh
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		m.waitForChange(),
		m.waitForNotification(),
		m.waitForExpiry(),
		m.waitForAuth(),
		m.refreshCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return changedMsg{}
	}
}

func (m Model) waitForNotification() tea.Cmd {
	return func() tea.Msg {
		return notificationMsg(<-m.queue.C())
	}
}

func (m Model) waitForExpiry() tea.Cmd {
	return func() tea.Msg {
		<-m.expired
		return expiredMsg{}
	}
}

func (m Model) waitForAuth() tea.Cmd {
	if m.authSub == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-m.authSub
		if !ok {
			return nil
		}
		return authMsg(c)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case changedMsg:
		m.snap = m.engine.Snapshot()
		m.loadData()
		return m, m.waitForChange()

	case notificationMsg:
		m.message = msg.Message
		m.messageLevel = msg.Level
		return m, m.waitForNotification()

	case expiredMsg:
		logger.Info("Session expired, leaving the course browser")
		m.mode = ModeExpired
		m.loadIdentity()
		return m, m.waitForExpiry()

	case authMsg:
		m.loadIdentity()
		return m, m.waitForAuth()

	case actionDoneMsg:
		if m.busy > 0 {
			m.busy--
		}
		if msg.err != nil {
			logger.Debug("Action failed", logger.F("action", msg.action), logger.F("error", msg.err))
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Handle mode-specific input
		switch m.mode {
		case ModeFilter:
			return m.updateFilter(msg)
		case ModeConfirm:
			return m.updateConfirm(msg)
		case ModeExpired:
			if key.Matches(msg, keys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}

		// Normal mode key handling
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.pane == PaneSidebar {
			m.pane = PaneCourseList
		} else {
			m.pane = PaneSidebar
		}

	case key.Matches(msg, keys.Left):
		m.pane = PaneSidebar

	case key.Matches(msg, keys.Right), key.Matches(msg, keys.Enter):
		m.pane = PaneCourseList

	case key.Matches(msg, keys.Up):
		m.handleUp()

	case key.Matches(msg, keys.Down):
		m.handleDown()

	case msg.String() == "G":
		if n := len(m.visible); n > 0 {
			m.courseCursor = n - 1
		}

	case key.Matches(msg, keys.Book):
		return m.handleBook()

	case key.Matches(msg, keys.Cancel):
		return m.handleCancel()

	case key.Matches(msg, keys.Delete):
		return m.handleDelete()

	case key.Matches(msg, keys.Filter):
		return m.startFilter()

	case key.Matches(msg, keys.Escape):
		if m.filterText != "" {
			m.filterText = ""
			m.loadData()
			m.message = "Filter cleared"
			m.messageLevel = notify.Info
		}

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp

	case key.Matches(msg, keys.Logout):
		return m.handleLogout()

	case key.Matches(msg, keys.Refresh):
		cmd := m.refreshCmd()
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleUp() {
	if m.pane == PaneSidebar {
		if m.secCursor > 0 {
			m.selectSection(m.secCursor - 1)
		}
	} else if m.courseCursor > 0 {
		m.courseCursor--
	}
}

func (m *Model) handleDown() {
	if m.pane == PaneSidebar {
		if m.secCursor < len(m.sections)-1 {
			m.selectSection(m.secCursor + 1)
		}
	} else if m.courseCursor < len(m.visible)-1 {
		m.courseCursor++
	}
}

// selectSection switches the course list, if the guard lets us in
func (m *Model) selectSection(i int) {
	d := m.guard.Check(m.sections[i].Route)
	if !d.Allowed() {
		m.secCursor = 0
		m.loadData()
		return
	}
	m.secCursor = i
	m.courseCursor = 0
	m.loadData()
}

// allowed runs the guard for an action and reports refusals
func (m *Model) allowed(route guard.Route) bool {
	d := m.guard.Check(route)
	if d.Allowed() {
		return true
	}
	if d.Message == "" {
		m.message = "Log in first: slotflow auth login"
		m.messageLevel = notify.Warning
	}
	return false
}

func (m Model) handleBook() (tea.Model, tea.Cmd) {
	c := m.currentCourse()
	if c == nil || !m.allowed(guard.LearnerDashboard) {
		return m, nil
	}
	id := c.ID
	return m.run("book", func(ctx context.Context) error {
		_, err := m.engine.Book(ctx, id)
		return err
	})
}

func (m Model) handleCancel() (tea.Model, tea.Cmd) {
	c := m.currentCourse()
	if c == nil || !m.allowed(guard.LearnerDashboard) {
		return m, nil
	}
	id := c.ID
	cancel := func(ctx context.Context) error { return m.engine.Cancel(ctx, id) }

	if v := m.snap.Views[id]; m.cfg.ConfirmDestructive && v.IsBooked {
		m.ask(fmt.Sprintf("Cancel your booking on %q?", c.Title), "cancel", cancel)
		return m, nil
	}
	return m.run("cancel", cancel)
}

func (m Model) handleDelete() (tea.Model, tea.Cmd) {
	c := m.currentCourse()
	if c == nil || !m.currentSection().manage || !m.allowed(guard.AdminDashboard) {
		return m, nil
	}
	id := c.ID
	del := func(ctx context.Context) error {
		if err := m.client.Courses.Delete(ctx, id); err != nil {
			return err
		}
		m.queue.Notify(notify.New(notify.Success, "Course deleted successfully"))
		return m.engine.Refresh(ctx)
	}

	if m.cfg.ConfirmDestructive {
		m.ask(fmt.Sprintf("Delete course %q?", c.Title), "delete", del)
		return m, nil
	}
	return m.run("delete", del)
}

func (m Model) handleLogout() (tea.Model, tea.Cmd) {
	if !m.signedIn {
		m.message = "Not logged in"
		m.messageLevel = notify.Info
		return m, nil
	}
	if err := m.client.Auth.Logout(); err != nil {
		m.message = fmt.Sprintf("Logout error: %v", err)
		m.messageLevel = notify.Error
		return m, nil
	}
	m.message = "Logged out successfully"
	m.messageLevel = notify.Success
	m.loadIdentity()
	cmd := m.refreshCmd()
	return m, cmd
}

// ask switches to confirm mode for a pending action
func (m *Model) ask(prompt, action string, fn func(ctx context.Context) error) {
	m.mode = ModeConfirm
	m.confirm = &pendingAction{prompt: prompt, action: action, run: fn}
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.confirm
	switch {
	case key.Matches(msg, keys.Yes):
		m.mode = ModeNormal
		m.confirm = nil
		if p != nil {
			return m.run(p.action, p.run)
		}
	case key.Matches(msg, keys.No):
		m.mode = ModeNormal
		m.confirm = nil
		m.message = "Aborted"
		m.messageLevel = notify.Info
	}
	return m, nil
}

// run executes fn off the UI goroutine
func (m Model) run(action string, fn func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.busy++
	return m, func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(context.Background())}
	}
}

func (m *Model) refreshCmd() tea.Cmd {
	m.busy++
	engine := m.engine
	return func() tea.Msg {
		return actionDoneMsg{action: "refresh", err: engine.Refresh(context.Background())}
	}
}

func (m Model) startFilter() (tea.Model, tea.Cmd) {
	m.mode = ModeFilter
	m.input.SetValue(m.filterText)
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		m.filterText = ""
		m.input.Blur()
		m.loadData()
		return m, nil

	case key.Matches(msg, keys.Enter):
		m.mode = ModeNormal
		m.input.Blur()
		m.pane = PaneCourseList
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	// Live filter as user types
	m.filterText = m.input.Value()
	m.courseCursor = 0
	m.loadData()
	return m, cmd
}
