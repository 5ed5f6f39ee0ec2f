package api

import (
	"context"
	"fmt"
	"strconv"

	"github.com/existflow/slotflow/internal/model"
)

// DefaultLanguage is sent when a course input names no language
const DefaultLanguage = "English"

// CourseService wraps the /courses/ endpoints
type CourseService struct {
	c *Client
}

// List returns the course catalog
func (s *CourseService) List(ctx context.Context, opts ...CallOption) ([]model.Course, error) {
	var courses []model.Course
	if err := s.c.Get(ctx, "/courses/", &courses, opts...); err != nil {
		return nil, err
	}
	return courses, nil
}

// Get returns a single course
func (s *CourseService) Get(ctx context.Context, id int) (*model.Course, error) {
	var course model.Course
	if err := s.c.Get(ctx, coursePath(id), &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create adds a course
func (s *CourseService) Create(ctx context.Context, in model.CourseInput) (*model.Course, error) {
	var course model.Course
	if err := s.c.Post(ctx, "/courses/", CourseForm(in, false), &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Update patches a course. Zero valued fields are left unchanged.
func (s *CourseService) Update(ctx context.Context, id int, in model.CourseInput) (*model.Course, error) {
	var course model.Course
	if err := s.c.Patch(ctx, coursePath(id), CourseForm(in, true), &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// Delete removes a course
func (s *CourseService) Delete(ctx context.Context, id int) error {
	return s.c.Delete(ctx, coursePath(id), nil)
}

func coursePath(id int) string {
	return fmt.Sprintf("/courses/%d/", id)
}

// CourseForm encodes a course input as multipart fields. With partial set
// only non-zero fields are written.
func CourseForm(in model.CourseInput, partial bool) *Form {
	f := NewForm()
	text := func(name, v string) {
		if !partial || v != "" {
			f.Field(name, v)
		}
	}
	number := func(name string, v int) {
		if !partial || v != 0 {
			f.Field(name, strconv.Itoa(v))
		}
	}
	date := func(name string, d model.Date) {
		if !partial || !d.IsZero() {
			f.Field(name, d.String())
		}
	}

	text("title", in.Title)
	text("description", in.Description)
	date("start_date", in.StartDate)
	date("end_date", in.EndDate)
	number("duration_hours", in.DurationHours)
	number("slots_total", in.SlotsTotal)

	switch {
	case len(in.Languages) > 0:
		f.Fields("languages", in.Languages...)
	case !partial:
		f.Field("languages", DefaultLanguage)
	}

	if len(in.Picture) > 0 {
		name := in.PictureName
		if name == "" {
			name = "course_picture"
		}
		f.File("course_picture", name, in.Picture)
	}
	return f
}
