// Package booking derives the per-course booking view from the course
// catalog and the learner's bookings, and keeps it current across book
// and cancel actions.
package booking

import "github.com/existflow/slotflow/internal/model"

// View is the derived state of one course
type View struct {
	IsBooked       bool
	IsFull         bool
	SlotsAvailable int
}

// Reconcile derives the view of every course. It does not modify its
// inputs and returns the same result for the same snapshots.
func Reconcile(courses []model.Course, bookings []model.Booking) map[int]View {
	active := make(map[int]bool, len(bookings))
	for i := range bookings {
		if bookings[i].IsActive() {
			active[bookings[i].Course.ID] = true
		}
	}

	views := make(map[int]View, len(courses))
	for i := range courses {
		c := &courses[i]
		views[c.ID] = View{
			IsBooked:       active[c.ID],
			IsFull:         c.IsFull(),
			SlotsAvailable: c.SlotsAvailable(),
		}
	}
	return views
}

// ActiveBooking finds the active booking for courseID
func ActiveBooking(bookings []model.Booking, courseID int) (model.Booking, bool) {
	for _, b := range bookings {
		if b.Course.ID == courseID && b.IsActive() {
			return b, true
		}
	}
	return model.Booking{}, false
}

// FindCourse returns the course with id
func FindCourse(courses []model.Course, id int) (model.Course, bool) {
	for _, c := range courses {
		if c.ID == id {
			return c, true
		}
	}
	return model.Course{}, false
}
