// Package form validates user input against declarative schemas before
// anything is sent to the API.
package form

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/existflow/slotflow/internal/failure"
	"github.com/existflow/slotflow/internal/model"
)

// Type is the kind of value a field holds after coercion
type Type int

const (
	String Type = iota
	Number
	Date
	List
)

// Field is a named input with ordered rules. The first failing rule wins.
type Field struct {
	Name  string
	Type  Type
	Rules []validation.Rule
}

// Schema is an ordered set of fields
type Schema struct {
	Name   string
	Fields []Field
}

// Values holds the current raw input. Strings are coerced to the field
// type; typed values (int, []string, time.Time, model.Date) are used as is.
type Values map[string]interface{}

// Errors maps a field name to its first failing rule message
type Errors map[string]string

// Valid reports whether the form may be submitted
func (e Errors) Valid() bool {
	return len(e) == 0
}

// Err returns nil for a valid form, otherwise a *ValidationError
func (e Errors) Err() error {
	if e.Valid() {
		return nil
	}
	return &ValidationError{Fields: e}
}

// ValidationError is a failed local validation
type ValidationError struct {
	Fields Errors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Category() failure.Category {
	return failure.Validation
}

// Validate checks every field and returns the failures
func (s *Schema) Validate(values Values) Errors {
	st := s.newState(values)
	errs := Errors{}
	for _, f := range s.Fields {
		if msg := st.check(f); msg != "" {
			errs[f.Name] = msg
		}
	}
	return errs
}

// ValidateField checks a single field against the current values, as
// done when a field loses focus
func (s *Schema) ValidateField(name string, values Values) string {
	st := s.newState(values)
	for _, f := range s.Fields {
		if f.Name == name {
			return st.check(f)
		}
	}
	return ""
}

// state is one validation pass: raw input plus coerced values, read
// by cross-field rules at check time
type state struct {
	raw    Values
	typed  map[string]interface{}
	broken map[string]string
}

func (s *Schema) newState(values Values) *state {
	st := &state{
		raw:    values,
		typed:  make(map[string]interface{}, len(s.Fields)),
		broken: make(map[string]string),
	}
	for _, f := range s.Fields {
		v, err := coerce(f.Type, values[f.Name])
		if err != nil {
			st.broken[f.Name] = err.Error()
			continue
		}
		st.typed[f.Name] = v
	}
	return st
}

func (st *state) check(f Field) string {
	for _, r := range f.Rules {
		if msg, broken := st.broken[f.Name]; broken {
			if _, ok := r.(requiredRule); !ok {
				return msg
			}
		}
		if c, ok := r.(contextual); ok {
			r = c.bind(f.Name, st)
		}
		if err := validation.Validate(st.typed[f.Name], r); err != nil {
			return err.Error()
		}
	}
	return st.broken[f.Name]
}

// present reports whether the user supplied a value for name
func (st *state) present(name string) bool {
	switch v := st.raw[name].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []string:
		return len(v) > 0
	case time.Time:
		return !v.IsZero()
	case model.Date:
		return !v.IsZero()
	default:
		return true
	}
}

var errNotNumber = errors.New("must be a number")

func coerce(t Type, v interface{}) (interface{}, error) {
	switch t {
	case Number:
		switch n := v.(type) {
		case nil:
			return 0, nil
		case int:
			return n, nil
		case string:
			n = strings.TrimSpace(n)
			if n == "" {
				return 0, nil
			}
			i, err := strconv.Atoi(n)
			if err != nil {
				return 0, errNotNumber
			}
			return i, nil
		}
		return 0, errNotNumber
	case Date:
		switch d := v.(type) {
		case nil:
			return time.Time{}, nil
		case time.Time:
			return d, nil
		case model.Date:
			return d.Time, nil
		case string:
			if strings.TrimSpace(d) == "" {
				return time.Time{}, nil
			}
			parsed, err := model.ParseDate(strings.TrimSpace(d))
			if err != nil {
				return time.Time{}, fmt.Errorf("must be a date in %s format", model.DateLayout)
			}
			return parsed.Time, nil
		}
		return time.Time{}, fmt.Errorf("must be a date in %s format", model.DateLayout)
	case List:
		switch l := v.(type) {
		case nil:
			return []string{}, nil
		case []string:
			return l, nil
		case string:
			out := []string{}
			for _, item := range strings.Split(l, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			return out, nil
		}
		return []string{}, errors.New("must be a list")
	default:
		switch s := v.(type) {
		case nil:
			return "", nil
		case string:
			return s, nil
		default:
			return fmt.Sprint(s), nil
		}
	}
}
