package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/slotflow/internal/notify"
)

// Color palette
var (
	// Course status colors
	BookedColor   = lipgloss.Color("#95E1A3") // Green
	FullColor     = lipgloss.Color("#FF6B6B") // Red
	UpcomingColor = lipgloss.Color("#4ECDC4") // Blue
	InactiveColor = lipgloss.Color("#6C757D") // Gray

	// Notification colors
	InfoColor    = lipgloss.Color("#4ECDC4")
	SuccessColor = lipgloss.Color("#95E1A3")
	WarningColor = lipgloss.Color("#FFE66D")
	ErrorColor   = lipgloss.Color("#FF6B6B")

	// UI colors
	Primary    = lipgloss.Color("#4ECDC4")
	Secondary  = lipgloss.Color("#6C757D")
	Background = lipgloss.Color("#1a1a2e")
	Surface    = lipgloss.Color("#16213e")
	Text       = lipgloss.Color("#FFFFFF")
	TextMuted  = lipgloss.Color("#888888")
	Border     = lipgloss.Color("#333333")
)

// Styles
var (
	// Header
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	// Sidebar
	SidebarStyle = lipgloss.NewStyle().
			Width(24).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Border).
			Padding(1, 1)

	// Course list
	CourseListStyle = lipgloss.NewStyle().
			Padding(1, 2)

	SectionItemStyle = lipgloss.NewStyle().
				Padding(0, 1)

	SectionItemSelectedStyle = lipgloss.NewStyle().
					Padding(0, 1).
					Background(Surface).
					Bold(true)

	CourseItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	CourseItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	CourseInactiveStyle = lipgloss.NewStyle().
				Foreground(TextMuted).
				Strikethrough(true).
				Padding(0, 1)

	// Badges
	BookedBadge   = lipgloss.NewStyle().Foreground(BookedColor).Bold(true)
	FullBadge     = lipgloss.NewStyle().Foreground(FullColor).Bold(true)
	UpcomingBadge = lipgloss.NewStyle().Foreground(UpcomingColor)

	// Detail pane
	DetailStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border).
			Padding(1, 0, 0, 0)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	// Modal
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// NotificationStyle returns the status bar style for a notification level
func NotificationStyle(level notify.Level) lipgloss.Style {
	switch level {
	case notify.Success:
		return lipgloss.NewStyle().Foreground(SuccessColor)
	case notify.Warning:
		return lipgloss.NewStyle().Foreground(WarningColor)
	case notify.Error:
		return lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(InfoColor)
	}
}
