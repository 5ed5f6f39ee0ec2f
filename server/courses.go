package server

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/existflow/slotflow/internal/model"
)

// handleListCourses returns active courses, newest first
func (s *Server) handleListCourses(c echo.Context) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.sortedCourses(true))
}

func (s *Server) handleGetCourse(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return detail(c, http.StatusNotFound, "Not found.")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	course, ok := s.data.courses[id]
	if !ok {
		return detail(c, http.StatusNotFound, "Not found.")
	}
	return c.JSON(http.StatusOK, copyCourse(course))
}

// handleCreateCourse creates a course from multipart form fields
func (s *Server) handleCreateCourse(c echo.Context) error {
	var course model.Course
	errs := s.bindCourse(c, &course, false)
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}

	course.Instructor = currentUser(c).ID
	created := s.AddCourse(course)
	return c.JSON(http.StatusCreated, created)
}

// handleUpdateCourse applies the fields present in the form
func (s *Server) handleUpdateCourse(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return detail(c, http.StatusNotFound, "Not found.")
	}

	s.data.mu.Lock()
	existing, ok := s.data.courses[id]
	var working model.Course
	if ok {
		working = copyCourse(existing)
	}
	s.data.mu.Unlock()
	if !ok {
		return detail(c, http.StatusNotFound, "Not found.")
	}

	if errs := s.bindCourse(c, &working, true); len(errs) > 0 {
		return fieldErrors(c, errs)
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	current, ok := s.data.courses[id]
	if !ok {
		return detail(c, http.StatusNotFound, "Not found.")
	}
	// slot accounting may have moved while the form was parsed
	working.SlotsBooked = current.SlotsBooked
	working.IsActive = current.IsActive
	*current = working
	return c.JSON(http.StatusOK, copyCourse(current))
}

// handleDeleteCourse deactivates a course
func (s *Server) handleDeleteCourse(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return detail(c, http.StatusNotFound, "Not found.")
	}

	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	course, ok := s.data.courses[id]
	if !ok {
		return detail(c, http.StatusNotFound, "Not found.")
	}
	course.IsActive = false
	return detail(c, http.StatusOK, "Course deactivated successfully")
}

// bindCourse reads course fields from the form into course. In partial
// mode absent fields keep their value.
func (s *Server) bindCourse(c echo.Context, course *model.Course, partial bool) map[string][]string {
	errs := map[string][]string{}
	form, err := c.MultipartForm()
	if err != nil {
		errs["non_field_errors"] = []string{"Expected multipart form data."}
		return errs
	}
	value := func(name string) (string, bool) {
		vs := form.Value[name]
		if len(vs) == 0 {
			return "", false
		}
		return strings.TrimSpace(vs[0]), true
	}
	required := func(name string) (string, bool) {
		v, ok := value(name)
		if !ok || v == "" {
			if !partial || ok {
				errs[name] = []string{"This field is required."}
			}
			return "", false
		}
		return v, true
	}

	if v, ok := required("title"); ok {
		course.Title = v
	}
	if v, ok := required("description"); ok {
		course.Description = v
	}
	for name, dst := range map[string]*model.Date{"start_date": &course.StartDate, "end_date": &course.EndDate} {
		if v, ok := required(name); ok {
			d, err := model.ParseDate(v)
			if err != nil {
				errs[name] = []string{"Date has wrong format. Use one of these formats instead: YYYY-MM-DD."}
				continue
			}
			*dst = d
		}
	}
	for name, dst := range map[string]*int{"duration_hours": &course.DurationHours, "slots_total": &course.SlotsTotal} {
		if v, ok := required(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs[name] = []string{"A valid integer is required."}
				continue
			}
			*dst = n
		}
	}
	if langs, ok := form.Value["languages"]; ok {
		course.Languages = append([]string{}, langs...)
	} else if !partial {
		course.Languages = []string{}
	}
	if files := form.File["course_picture"]; len(files) > 0 {
		pic := "/media/course_pics/" + filepath.Base(files[0].Filename)
		course.Picture = &pic
	}

	if len(errs) > 0 {
		return errs
	}

	today := model.NewDate(s.now())
	if !course.StartDate.Before(course.EndDate.Time) {
		errs["end_date"] = []string{"End date must be after start date"}
	}
	if !partial && course.StartDate.Before(today.Time) {
		errs["start_date"] = []string{"Start date cannot be in the past"}
	}
	if course.SlotsTotal <= 0 {
		errs["slots_total"] = []string{"Must have at least 1 slot"}
	}
	return errs
}
