package server

import (
	"sort"
	"sync"
	"time"

	"github.com/existflow/slotflow/internal/model"
)

type user struct {
	ID           int
	Username     string
	Email        string
	PasswordHash []byte
	IsAdmin      bool
	IsLearner    bool
	Picture      string
}

func (u *user) profile() model.Profile {
	p := model.Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		IsLearner: u.IsLearner,
	}
	if u.Picture != "" {
		pic := u.Picture
		p.ProfilePicture = &pic
	}
	return p
}

type booking struct {
	ID          int
	CourseID    int
	LearnerID   int
	BookedAt    time.Time
	IsCancelled bool
	CancelledAt *time.Time
}

func (b *booking) model() model.Booking {
	booked := b.BookedAt
	out := model.Booking{
		ID:          b.ID,
		Course:      model.CourseRef{ID: b.CourseID},
		Learner:     b.LearnerID,
		BookedAt:    &booked,
		IsCancelled: b.IsCancelled,
	}
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		out.CancelledAt = &at
	}
	return out
}

// store holds all server state behind one lock
type store struct {
	mu       sync.Mutex
	users    map[int]*user
	courses  map[int]*model.Course
	bookings map[int]*booking
	nextID   int
}

func newStore() *store {
	return &store{
		users:    make(map[int]*user),
		courses:  make(map[int]*model.Course),
		bookings: make(map[int]*booking),
	}
}

// id returns a fresh identifier. Callers hold mu.
func (st *store) id() int {
	st.nextID++
	return st.nextID
}

func (st *store) user(id int) (*user, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	u, ok := st.users[id]
	return u, ok
}

// findUser matches a username or an email. Callers hold mu.
func (st *store) findUser(login string) *user {
	for _, u := range st.users {
		if u.Username == login || u.Email == login {
			return u
		}
	}
	return nil
}

func (st *store) sortedCourses(active bool) []model.Course {
	out := []model.Course{}
	for _, c := range st.courses {
		if c.IsActive == active {
			out = append(out, copyCourse(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func copyCourse(c *model.Course) model.Course {
	out := *c
	out.Languages = append([]string(nil), c.Languages...)
	if out.Languages == nil {
		out.Languages = []string{}
	}
	return out
}
