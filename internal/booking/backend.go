package booking

import (
	"context"

	"github.com/existflow/slotflow/internal/api"
	"github.com/existflow/slotflow/internal/model"
)

// Backend is the remote side of the engine
type Backend interface {
	ListCourses(ctx context.Context) ([]model.Course, error)
	ListBookings(ctx context.Context) ([]model.Booking, error)
	Book(ctx context.Context, courseID int) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID int) (string, error)
}

type apiBackend struct {
	client *api.Client
}

// NewAPIBackend serves the engine from the REST API
func NewAPIBackend(client *api.Client) Backend {
	return &apiBackend{client: client}
}

func (b *apiBackend) ListCourses(ctx context.Context) ([]model.Course, error) {
	return b.client.Courses.List(ctx)
}

func (b *apiBackend) ListBookings(ctx context.Context) ([]model.Booking, error) {
	return b.client.Bookings.List(ctx)
}

func (b *apiBackend) Book(ctx context.Context, courseID int) (*model.Booking, error) {
	return b.client.Bookings.Create(ctx, courseID)
}

func (b *apiBackend) Cancel(ctx context.Context, bookingID int) (string, error) {
	return b.client.Bookings.Cancel(ctx, bookingID)
}
