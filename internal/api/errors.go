package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/existflow/slotflow/internal/failure"
)

// GenericMessage is shown when the server gives nothing readable
const GenericMessage = "An error occurred"

// SessionExpiredMessage is the notification emitted on 401
const SessionExpiredMessage = "Session expired. Please log in again."

// ErrSessionExpired is wrapped by every error produced by a 401 on an
// authenticated call
var ErrSessionExpired = failure.New(failure.AuthExpired, "session expired")

// ErrorKind tags the shape of a server error body
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMessage
	KindFieldErrors
)

// Error is a failed API call
type Error struct {
	Method string
	Path   string
	Status int // 0 when no response was received
	Kind   ErrorKind
	Text   string
	Fields map[string][]string

	cause error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message())
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message())
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Message returns the human readable text for a notification
func (e *Error) Message() string {
	if e.Kind == KindMessage && e.Text != "" {
		return e.Text
	}
	return GenericMessage
}

// FieldSummary joins field errors as "field: a, b" lines, sorted by field
func (e *Error) FieldSummary() string {
	if len(e.Fields) == 0 {
		return e.Message()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], ", ")))
	}
	return strings.Join(lines, "\n")
}

// Category maps the failure onto the UI error taxonomy
func (e *Error) Category() failure.Category {
	switch {
	case errors.Is(e.cause, ErrSessionExpired):
		return failure.AuthExpired
	case e.Status == 0 || e.Status >= http.StatusInternalServerError:
		return failure.NetworkOrServer
	default:
		return failure.Conflict
	}
}

// normalize turns an error body into a tagged error value. It checks
// "detail", then "message", then field maps.
func normalize(body []byte) (ErrorKind, string, map[string][]string) {
	var raw interface{}
	if len(body) == 0 || json.Unmarshal(body, &raw) != nil {
		return KindUnknown, "", nil
	}

	switch v := raw.(type) {
	case map[string]interface{}:
		for _, key := range []string{"detail", "message"} {
			if s, ok := v[key].(string); ok && s != "" {
				return KindMessage, s, nil
			}
		}
		// Some views wrap field errors as {"errors": {...}}
		if inner, ok := v["errors"].(map[string]interface{}); ok {
			v = inner
		}
		fields := make(map[string][]string)
		for name, val := range v {
			if msgs := stringsOf(val); len(msgs) > 0 {
				fields[name] = msgs
			}
		}
		if len(fields) > 0 {
			return KindFieldErrors, "", fields
		}
	case []interface{}:
		if msgs := stringsOf(v); len(msgs) > 0 {
			return KindFieldErrors, "", map[string][]string{"non_field_errors": msgs}
		}
	case string:
		if v != "" {
			return KindMessage, v, nil
		}
	}
	return KindUnknown, "", nil
}

func stringsOf(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []interface{}:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
