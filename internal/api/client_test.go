package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/slotflow/internal/auth"
	"github.com/existflow/slotflow/internal/failure"
	"github.com/existflow/slotflow/internal/model"
	"github.com/existflow/slotflow/internal/notify"
)

type fixture struct {
	client  *Client
	store   *auth.Store
	notes   *notify.Recorder
	expired int

	mu       sync.Mutex
	lastAuth string
}

func (f *fixture) authHeader() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func newFixture(t *testing.T, handler http.HandlerFunc) *fixture {
	t.Helper()
	f := &fixture{
		store: auth.NewStore(&auth.MemorySlot{}),
		notes: &notify.Recorder{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	f.client = New(srv.URL+"/api", f.store,
		WithNotifier(f.notes),
		WithSessionExpired(func() { f.expired++ }),
	)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetWithoutCredentialSendsNoAuthHeader(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/courses/", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, []model.Course{{ID: 1, Title: "Go"}})
	})

	courses, err := f.client.Courses.List(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Go", courses[0].Title)
	assert.Empty(t, f.authHeader())
}

func TestCredentialAttachedAsBearer(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []model.Booking{})
	})
	require.NoError(t, f.store.Save("abc.def.ghi"))

	_, err := f.client.Bookings.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc.def.ghi", f.authHeader())
}

func TestUnauthorizedClearsCredentialAndNotifiesOnce(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid"})
	})
	require.NoError(t, f.store.Save("stale"))

	_, err := f.client.Bookings.List(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, failure.AuthExpired, failure.Classify(err))

	_, ok := f.store.Read()
	assert.False(t, ok)
	assert.Equal(t, 1, f.expired)
	assert.Len(t, f.notes.All(), 1)
	assert.Equal(t, 1, f.notes.Count(notify.Warning, SessionExpiredMessage))
}

func TestSessionExpiryNotifiedEvenWhenSilenced(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	})
	require.NoError(t, f.store.Save("stale"))

	_, err := f.client.Courses.List(context.Background(), WithoutNotify())
	require.Error(t, err)
	assert.Equal(t, 1, f.notes.Count(notify.Warning, SessionExpiredMessage))
}

func TestSecondRejectionOfClearedCredentialIsQuiet(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "expired"})
	})
	require.NoError(t, f.store.Save("stale"))

	err := f.client.sessionExpired("stale", http.MethodGet, "/courses/", nil)
	require.Error(t, err)
	err = f.client.sessionExpired("stale", http.MethodGet, "/bookings/", nil)
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, 1, f.expired)
	assert.Len(t, f.notes.All(), 1)
}

func TestLoginRejectionIsNotSessionExpiry(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
	})

	err := f.client.Auth.Login(context.Background(), "bob", "wrong")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, 0, f.expired)
	assert.Equal(t, 1, f.notes.Count(notify.Error, "No active account found with the given credentials"))
}

func TestErrorMessageExtraction(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
		kind ErrorKind
	}{
		{"detail", `{"detail":"Course is full"}`, "Course is full", KindMessage},
		{"message", `{"message":"Nope"}`, "Nope", KindMessage},
		{"detail wins", `{"message":"second","detail":"first"}`, "first", KindMessage},
		{"fields", `{"course":["Course is full"]}`, GenericMessage, KindFieldErrors},
		{"wrapped fields", `{"errors":{"password":["too short"]}}`, GenericMessage, KindFieldErrors},
		{"empty", ``, GenericMessage, KindUnknown},
		{"html", `<h1>Server Error</h1>`, GenericMessage, KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := f.client.Bookings.Create(context.Background(), 1)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.kind, apiErr.Kind)
			assert.Equal(t, tc.want, apiErr.Message())
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, failure.Conflict, failure.Classify(err))
			assert.Equal(t, 1, f.notes.Count(notify.Error, tc.want))
		})
	}
}

func TestFieldSummarySortsFields(t *testing.T) {
	e := &Error{Kind: KindFieldErrors, Fields: map[string][]string{
		"title":    {"required"},
		"end_date": {"End date must be after start date"},
	}}
	assert.Equal(t, "end_date: End date must be after start date\ntitle: required", e.FieldSummary())
}

func TestWithoutNotifySuppressesErrors(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Booking already cancelled"})
	})

	_, err := f.client.Bookings.Cancel(context.Background(), 4, WithoutNotify())
	require.Error(t, err)
	assert.Empty(t, f.notes.All())
}

func TestServerErrorClassifiedAsNetworkOrServer(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := f.client.Courses.List(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.NetworkOrServer, failure.Classify(err))
}

func TestNetworkFailureNotifies(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	notes := &notify.Recorder{}
	c := New(srv.URL, auth.NewStore(&auth.MemorySlot{}), WithNotifier(notes))

	_, err := c.Courses.List(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, failure.NetworkOrServer, failure.Classify(err))
	assert.Equal(t, 1, notes.Count(notify.Error, GenericMessage))
}

func TestTruncatedResponseNotifies(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		defer conn.Close()
		buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 100\r\n\r\n[{\"id\":1")
		_ = buf.Flush()
	})

	_, err := f.client.Courses.List(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, failure.NetworkOrServer, failure.Classify(err))
	assert.Equal(t, 1, f.notes.Count(notify.Error, GenericMessage))
}

func TestLoginStoresAccessToken(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bob", body["username"])
		writeJSON(w, http.StatusOK, model.TokenPair{Access: "access-token", Refresh: "refresh-token"})
	})

	require.NoError(t, f.client.Auth.Login(context.Background(), "bob", "Secret1!"))
	token, ok := f.store.Read()
	require.True(t, ok)
	assert.Equal(t, "access-token", token)

	require.NoError(t, f.client.Auth.Logout())
	_, ok = f.store.Read()
	assert.False(t, ok)
}

func TestQueryAndHeaderOptions(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		writeJSON(w, http.StatusOK, []model.Course{})
	})

	_, err := f.client.Courses.List(context.Background(), WithQuery("active", "true"), WithHeader("X-Test", "yes"))
	require.NoError(t, err)
}

func TestCourseCreateSendsMultipart(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		assert.Equal(t, "Go", r.FormValue("title"))
		assert.Equal(t, "2030-01-02", r.FormValue("start_date"))
		assert.Equal(t, "12", r.FormValue("slots_total"))
		assert.Equal(t, []string{"English"}, r.MultipartForm.Value["languages"])

		file, header, err := r.FormFile("course_picture")
		if assert.NoError(t, err) {
			file.Close()
			assert.Equal(t, "cover.png", header.Filename)
		}

		writeJSON(w, http.StatusCreated, model.Course{ID: 9, Title: "Go"})
	})
	require.NoError(t, f.store.Save("token"))

	start, err := model.ParseDate("2030-01-02")
	require.NoError(t, err)
	course, err := f.client.Courses.Create(context.Background(), model.CourseInput{
		Title:       "Go",
		Description: "Learn Go",
		StartDate:   start,
		EndDate:     model.NewDate(start.AddDate(0, 0, 5)),
		SlotsTotal:  12,
		PictureName: "cover.png",
		Picture:     []byte("png"),
	})
	require.NoError(t, err)
	assert.Equal(t, 9, course.ID)
}

func TestCourseFormPartialSkipsZeroFields(t *testing.T) {
	form := CourseForm(model.CourseInput{Title: "New title"}, true)
	assert.Equal(t, []string{"New title"}, form.Values("title"))
	assert.Empty(t, form.Values("languages"))
	assert.Empty(t, form.Values("slots_total"))
	assert.Empty(t, form.Values("start_date"))
}

func TestCancelReturnsDetail(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/bookings/4/cancel/", r.URL.Path)
		var body map[string]bool
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["confirm"])
		writeJSON(w, http.StatusOK, map[string]string{"detail": "Booking cancelled successfully"})
	})

	msg, err := f.client.Bookings.Cancel(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "Booking cancelled successfully", msg)
}
