package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CourseRef points at a course from a booking. The API sends either the
// bare primary key or an embedded course object.
type CourseRef struct {
	ID     int
	Course *Course
}

func (r CourseRef) MarshalJSON() ([]byte, error) {
	if r.Course != nil {
		return json.Marshal(r.Course)
	}
	return json.Marshal(r.ID)
}

func (r *CourseRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("booking course reference is empty")
	}

	if data[0] == '{' {
		var c Course
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		r.ID = c.ID
		r.Course = &c
		return nil
	}

	var id int
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("invalid course reference %s: %w", string(data), err)
	}
	r.ID = id
	r.Course = nil
	return nil
}

// Booking is a learner's reservation of a course slot. Cancellation is a
// soft state flip, the record stays.
type Booking struct {
	ID          int        `json:"id"`
	Course      CourseRef  `json:"course"`
	Learner     int        `json:"learner,omitempty"`
	BookedAt    *time.Time `json:"booked_at,omitempty"`
	IsCancelled bool       `json:"is_cancelled"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// IsActive returns true if the booking still holds a slot
func (b *Booking) IsActive() bool {
	return !b.IsCancelled
}
