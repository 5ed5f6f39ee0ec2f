package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

// Level is the severity of a notification
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notification is a transient user-visible message
type Notification struct {
	ID      string
	Level   Level
	Message string
	At      time.Time
}

// New builds a notification stamped with an id and the current time
func New(level Level, msg string) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Message: msg,
		At:      time.Now(),
	}
}

// Notifier delivers notifications to the user
type Notifier interface {
	Notify(n Notification)
}

// Errorf is a shorthand for an error notification
func Errorf(n Notifier, format string, args ...interface{}) {
	n.Notify(New(Error, fmt.Sprintf(format, args...)))
}

// Successf is a shorthand for a success notification
func Successf(n Notifier, format string, args ...interface{}) {
	n.Notify(New(Success, fmt.Sprintf(format, args...)))
}

var (
	consoleStyles = map[Level]lipgloss.Style{
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}
	consoleIcons = map[Level]string{
		Info:    "ℹ",
		Success: "✓",
		Warning: "⚠️ ",
		Error:   "✗",
	}
)

// Console prints notifications as single styled lines
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := fmt.Sprintf("%s %s", consoleIcons[n.Level], n.Message)
	fmt.Fprintln(c.out, consoleStyles[n.Level].Render(line))
}

// Queue buffers notifications for a consumer such as the TUI. When full
// the oldest entry is dropped.
type Queue struct {
	ch chan Notification
}

// NewQueue creates a queue holding up to size notifications
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan Notification, size)}
}

func (q *Queue) Notify(n Notification) {
	for {
		select {
		case q.ch <- n:
			return
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

// C returns the receive side of the queue
func (q *Queue) C() <-chan Notification {
	return q.ch
}

// Recorder keeps every notification, for tests and summaries
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Count returns how many notifications at level carry msg
func (r *Recorder) Count(level Level, msg string) int {
	n := 0
	for _, item := range r.All() {
		if item.Level == level && item.Message == msg {
			n++
		}
	}
	return n
}

// Reset forgets everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Multi fans a notification out to several notifiers
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, t := range m {
		if t != nil {
			t.Notify(n)
		}
	}
}

// Discard drops every notification
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Notification) {}
