package server

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/existflow/slotflow/internal/model"
)

// addUser stores a new account. Callers hold mu.
func (st *store) addUser(username, email, password, role string) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &user{
		ID:           st.id(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      role == model.RoleAdmin,
		IsLearner:    role == model.RoleLearner,
	}
	st.users[u.ID] = u
	return u, nil
}

// CreateUser adds an account directly, skipping request validation
func (s *Server) CreateUser(username, email, password, role string) (model.Profile, error) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	if s.data.findUser(username) != nil || s.data.findUser(email) != nil {
		return model.Profile{}, fmt.Errorf("user %s already exists", username)
	}
	u, err := s.data.addUser(username, email, password, role)
	if err != nil {
		return model.Profile{}, err
	}
	return u.profile(), nil
}

// AddCourse stores c as given and returns it with an id. Courses are
// active unless marked otherwise by a later delete.
func (s *Server) AddCourse(c model.Course) model.Course {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()

	c.ID = s.data.id()
	c.IsActive = true
	if c.CohortNumber == 0 {
		c.CohortNumber = 1
	}
	if c.Languages == nil {
		c.Languages = []string{}
	}
	created := s.now()
	c.CreatedAt = &created
	s.data.courses[c.ID] = &c
	return copyCourse(&c)
}

// Course returns the stored course with id
func (s *Server) Course(id int) (model.Course, bool) {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	c, ok := s.data.courses[id]
	if !ok {
		return model.Course{}, false
	}
	return copyCourse(c), true
}

// Seed loads a small demo data set: an admin, a learner and a few courses
func (s *Server) Seed() error {
	admin, err := s.CreateUser("admin", "admin@slotflow.dev", "Admin123!", model.RoleAdmin)
	if err != nil {
		return err
	}
	if _, err := s.CreateUser("learner", "learner@slotflow.dev", "Learner123!", model.RoleLearner); err != nil {
		return err
	}

	today := s.now().Truncate(24 * time.Hour)
	courses := []model.Course{
		{Title: "Go for Backend Engineers", Description: "Services, tooling and testing in Go", DurationHours: 24, SlotsTotal: 12, Languages: []string{"English"}},
		{Title: "Distributed Systems Basics", Description: "Consensus, replication and failure", DurationHours: 16, SlotsTotal: 2, SlotsBooked: 2, Languages: []string{"English", "French"}},
		{Title: "Kubernetes Operations", Description: "Running workloads in production", DurationHours: 12, SlotsTotal: 8, Languages: []string{"English"}},
	}
	for i, c := range courses {
		c.Instructor = admin.ID
		c.StartDate = model.NewDate(today.AddDate(0, 0, 7*(i+1)))
		c.EndDate = model.NewDate(today.AddDate(0, 0, 7*(i+1)+4))
		s.AddCourse(c)
	}
	return nil
}
