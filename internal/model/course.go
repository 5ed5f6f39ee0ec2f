package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire format for course dates
const DateLayout = "2006-01-02"

// Date is a calendar day encoded as YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day
func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// String returns the wire representation, or "" for the zero date
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps too, the API has returned both
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Course is a bookable course as served by the API
type Course struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Instructor    int        `json:"instructor,omitempty"`
	StartDate     Date       `json:"start_date"`
	EndDate       Date       `json:"end_date"`
	DurationHours int        `json:"duration_hours"`
	SlotsTotal    int        `json:"slots_total"`
	SlotsBooked   int        `json:"slots_booked"`
	Languages     []string   `json:"languages"`
	CohortNumber  int        `json:"cohort_number,omitempty"`
	IsActive      bool       `json:"is_active"`
	Picture       *string    `json:"course_picture,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// IsFull reports whether every slot is taken
func (c *Course) IsFull() bool {
	return c.SlotsBooked >= c.SlotsTotal
}

// SlotsAvailable returns the number of open slots, never negative
func (c *Course) SlotsAvailable() int {
	if n := c.SlotsTotal - c.SlotsBooked; n > 0 {
		return n
	}
	return 0
}

// IsUpcoming returns true if the course starts after now
func (c *Course) IsUpcoming(now time.Time) bool {
	if c.StartDate.IsZero() {
		return false
	}
	return c.StartDate.After(now)
}

// CourseInput is the create/update payload sent as multipart form data
type CourseInput struct {
	Title         string
	Description   string
	StartDate     Date
	EndDate       Date
	DurationHours int
	SlotsTotal    int
	Languages     []string

	// Optional picture upload
	PictureName string
	Picture     []byte
}
