package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/slotflow/internal/model"
)

const sidebarWidth = 26

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.mode == ModeExpired {
		return m.renderExpired()
	}

	sidebar := m.renderSidebar()
	courseList := m.renderCourseList()
	statusBar := m.renderStatusBar()

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, courseList)

	if m.mode == ModeConfirm && m.confirm != nil {
		mainContent = lipgloss.Place(
			m.width, m.height-2,
			lipgloss.Center, lipgloss.Center,
			m.renderConfirmModal(),
			lipgloss.WithWhitespaceChars(" "),
		)
	}

	if m.mode == ModeHelp {
		mainContent = m.renderHelp()
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, statusBar)
}

func (m Model) renderSidebar() string {
	var s string

	// Header with time
	s += HeaderStyle.Render("SlotFlow") + "\n"
	s += HelpStyle.Render(m.now().Format("15:04:05")) + "\n"
	if m.signedIn {
		s += HelpStyle.Render(truncate(m.identity.Username, sidebarWidth-4)) + "\n"
	} else {
		s += HelpStyle.Render("not logged in") + "\n"
	}
	s += lipgloss.NewStyle().Foreground(Border).Render(repeat("─", sidebarWidth-5)) + "\n\n"

	for i, sec := range m.sections {
		count := 0
		for _, c := range m.snap.Courses {
			if sec.include(c, m.snap.Views[c.ID]) {
				count++
			}
		}

		cursor := "  "
		style := SectionItemStyle
		if i == m.secCursor {
			cursor = "❯ "
			if m.pane == PaneSidebar {
				style = SectionItemSelectedStyle
			}
		}

		line := fmt.Sprintf("%s%-14s %d", cursor, truncate(sec.Title, 14), count)
		s += style.Render(line) + "\n"
	}

	return SidebarStyle.Width(sidebarWidth).Height(m.height - 2).Render(s)
}

func (m Model) renderCourseList() string {
	width := m.width - sidebarWidth - 2
	var s string

	sec := m.currentSection()
	header := fmt.Sprintf("%s (%d)", sec.Title, len(m.visible))
	if m.busy > 0 {
		header += " " + m.spinner.View()
	}
	s += HeaderStyle.Render(header) + "\n"
	s += lipgloss.NewStyle().Foreground(Border).Render(repeat("─", width-4)) + "\n\n"

	switch {
	case !m.snap.Loaded:
		s += HelpStyle.Render("  Loading courses...")
	case len(m.visible) == 0 && m.filterText != "":
		s += HelpStyle.Render(fmt.Sprintf("  No course matches %q.", m.filterText))
	case len(m.visible) == 0:
		s += HelpStyle.Render("  No courses here.")
	}

	titleWidth := width - 40
	if titleWidth < 10 {
		titleWidth = 10
	}
	for i, c := range m.visible {
		cursor := "  "
		style := CourseItemStyle
		if i == m.courseCursor && m.pane == PaneCourseList {
			cursor = "❯ "
			style = CourseItemSelectedStyle
		}
		if !c.IsActive {
			style = CourseInactiveStyle
		}

		line := fmt.Sprintf("%s%-*s %5s", cursor, titleWidth, truncate(c.Title, titleWidth),
			fmt.Sprintf("%d/%d", c.SlotsBooked, c.SlotsTotal))
		s += style.Render(line) + " " + m.renderBadges(c) + "\n"
	}

	if c := m.currentCourse(); c != nil {
		s += "\n" + DetailStyle.Width(width-4).Render(m.renderDetail(*c))
	}

	return CourseListStyle.Width(width).Height(m.height - 2).Render(s)
}

// renderBadges shows the derived status of a course
func (m Model) renderBadges(c model.Course) string {
	v := m.snap.Views[c.ID]
	var badges []string
	if v.IsBooked {
		badges = append(badges, BookedBadge.Render("Booked"))
	}
	if v.IsFull {
		badges = append(badges, FullBadge.Render("Full"))
	}
	if c.IsUpcoming(m.now()) {
		badges = append(badges, UpcomingBadge.Render("Upcoming"))
	}
	return strings.Join(badges, " ")
}

func (m Model) renderDetail(c model.Course) string {
	var s string
	s += lipgloss.NewStyle().Bold(true).Render(c.Title) + "\n"
	if c.Description != "" {
		s += c.Description + "\n"
	}
	s += "\n"
	s += fmt.Sprintf("Dates:     %s → %s\n", c.StartDate, c.EndDate)
	s += fmt.Sprintf("Duration:  %d hours\n", c.DurationHours)
	s += fmt.Sprintf("Slots:     %d available of %d\n", c.SlotsAvailable(), c.SlotsTotal)
	if len(c.Languages) > 0 {
		s += fmt.Sprintf("Languages: %s\n", strings.Join(c.Languages, ", "))
	}
	return s
}

func (m Model) renderStatusBar() string {
	// When in filter mode, show inline search input (like vim)
	if m.mode == ModeFilter {
		return StatusBarStyle.Width(m.width).Render("/" + m.input.View() + fmt.Sprintf(" [%d]", len(m.visible)))
	}

	help := "/:filter  b:book  c:cancel  r:refresh  ?:help  q:quit"
	if m.currentSection().manage {
		help = "/:filter  d:delete  r:refresh  ?:help  q:quit"
	}
	if m.signedIn {
		help += "  L:logout"
	}

	if m.message != "" {
		help = NotificationStyle(m.messageLevel).Render(m.message)
	} else if m.filterText != "" {
		help = fmt.Sprintf("/%s  [%d courses]  Esc:clear", m.filterText, len(m.visible))
	}

	// Right aligned refresh state
	state := ""
	if m.snap.Loaded {
		state = "Updated " + m.snap.FetchedAt.Format("15:04:05")
	}
	if m.auto != nil && m.auto.IsPending() {
		state = "Refreshing..."
	}
	if state != "" {
		avail := m.width - lipgloss.Width(help) - len(state) - 2
		if avail > 0 {
			help += repeat(" ", avail) + state
		} else {
			help += " " + state
		}
	}

	return StatusBarStyle.Width(m.width).Render(help)
}

func (m Model) renderConfirmModal() string {
	content := lipgloss.NewStyle().Bold(true).Render(m.confirm.prompt) + "\n\n"
	content += HelpStyle.Render("y:yes  n/Esc:no")
	return ModalStyle.Render(content)
}

func (m Model) renderExpired() string {
	content := lipgloss.NewStyle().Bold(true).Foreground(WarningColor).Render("Session expired") + "\n\n"
	content += "Your login is no longer valid.\n"
	content += "Run `slotflow auth login` and start slotflow again.\n\n"
	content += HelpStyle.Render("q:quit")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, ModalStyle.Render(content))
}

func (m Model) renderHelp() string {
	help := `
╭─── Keyboard Shortcuts ───╮
│                          │
│  Navigation              │
│  ──────────              │
│  j/↓    Move down        │
│  k/↑    Move up          │
│  h/l    Switch pane      │
│  Tab    Switch pane      │
│  G      Go to bottom     │
│                          │
│  Actions                 │
│  ───────                 │
│  b       Book course     │
│  c       Cancel booking  │
│  d       Delete (admin)  │
│  r       Refresh         │
│  /       Filter          │
│  L       Logout          │
│                          │
│  Other                   │
│  ─────                   │
│  ?       Toggle help     │
│  q       Quit            │
│                          │
╰──────────────────────────╯

     Press any key to close
`
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, help)
}
