package api

import (
	"context"
	"fmt"

	"github.com/existflow/slotflow/internal/model"
)

// BookingService wraps the /bookings/ endpoints
type BookingService struct {
	c *Client
}

// List returns the signed-in learner's bookings, cancelled ones included
func (s *BookingService) List(ctx context.Context, opts ...CallOption) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := s.c.Get(ctx, "/bookings/", &bookings, opts...); err != nil {
		return nil, err
	}
	return bookings, nil
}

// Create books a slot on courseID
func (s *BookingService) Create(ctx context.Context, courseID int, opts ...CallOption) (*model.Booking, error) {
	var b model.Booking
	if err := s.c.Post(ctx, "/bookings/", map[string]int{"course": courseID}, &b, opts...); err != nil {
		return nil, err
	}
	return &b, nil
}

// Cancel soft-cancels a booking and returns the server's confirmation text
func (s *BookingService) Cancel(ctx context.Context, bookingID int, opts ...CallOption) (string, error) {
	var resp struct {
		Detail string `json:"detail"`
	}
	path := fmt.Sprintf("/bookings/%d/cancel/", bookingID)
	if err := s.c.Patch(ctx, path, map[string]bool{"confirm": true}, &resp, opts...); err != nil {
		return "", err
	}
	return resp.Detail, nil
}
