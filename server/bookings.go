package server

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/existflow/slotflow/internal/model"
)

type bookingRequest struct {
	Course *int `json:"course"`
}

type cancelRequest struct {
	Confirm *bool `json:"confirm"`
}

// handleListBookings returns the caller's bookings, newest first
func (s *Server) handleListBookings(c echo.Context) error {
	me := currentUser(c)

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	out := []model.Booking{}
	for _, b := range s.data.bookings {
		if b.LearnerID == me.ID {
			out = append(out, b.model())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookedAt.After(*out[j].BookedAt) })
	return c.JSON(http.StatusOK, out)
}

// handleCreateBooking takes a slot. A learner holds at most one booking
// record per course; booking again after a cancel reactivates it.
func (s *Server) handleCreateBooking(c echo.Context) error {
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Course == nil {
		return fieldErrors(c, map[string][]string{"course": {"This field is required."}})
	}
	me := currentUser(c)

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	course, ok := s.data.courses[*req.Course]
	switch {
	case !ok:
		return fieldErrors(c, map[string][]string{"course": {fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *req.Course)}})
	case !course.IsActive:
		return fieldErrors(c, map[string][]string{"course": {"Course is not active"}})
	case course.IsFull():
		return fieldErrors(c, map[string][]string{"course": {"Course is full"}})
	}

	var existing *booking
	for _, b := range s.data.bookings {
		if b.CourseID == course.ID && b.LearnerID == me.ID {
			existing = b
		}
	}
	if existing != nil && !existing.IsCancelled {
		return fieldErrors(c, map[string][]string{"non_field_errors": {"You already have an active booking for this course"}})
	}

	now := s.now()
	if existing == nil {
		existing = &booking{ID: s.data.id(), CourseID: course.ID, LearnerID: me.ID}
		s.data.bookings[existing.ID] = existing
	}
	existing.BookedAt = now
	existing.IsCancelled = false
	existing.CancelledAt = nil
	course.SlotsBooked++

	c.Logger().Infof("Booking %d: %s -> %s", existing.ID, me.Username, course.Title)
	return c.JSON(http.StatusCreated, existing.model())
}

// handleCancelBooking soft-cancels one of the caller's bookings
func (s *Server) handleCancelBooking(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return detail(c, http.StatusNotFound, "Not found.")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "invalid request")
	}
	me := currentUser(c)

	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	b, ok := s.data.bookings[id]
	switch {
	case !ok:
		return detail(c, http.StatusNotFound, "Not found.")
	case b.LearnerID != me.ID:
		return detail(c, http.StatusForbidden, "Not your booking to cancel")
	case b.IsCancelled:
		return detail(c, http.StatusBadRequest, "Booking already cancelled")
	case req.Confirm == nil:
		return fieldErrors(c, map[string][]string{"confirm": {"This field is required."}})
	case !*req.Confirm:
		return fieldErrors(c, map[string][]string{"confirm": {"Must confirm cancellation"}})
	}

	now := s.now()
	b.IsCancelled = true
	b.CancelledAt = &now
	if course, ok := s.data.courses[b.CourseID]; ok && course.SlotsBooked > 0 {
		course.SlotsBooked--
	}
	return detail(c, http.StatusOK, "Booking cancelled successfully")
}
