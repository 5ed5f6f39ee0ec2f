package form

import (
	"errors"
	"reflect"
	"time"

	"github.com/dlclark/regexp2"
	validation "github.com/go-ozzo/ozzo-validation"
)

// PasswordPattern requires a lowercase letter, an uppercase letter, a
// digit and a symbol from @$!%*?&, at least 8 characters in total
const PasswordPattern = `^(?=.*[a-z])(?=.*[A-Z])(?=.*\d)(?=.*[@$!%*?&]).{8,}$`

var passwordExp = regexp2.MustCompile(PasswordPattern, regexp2.None)

// contextual rules need the other fields of the form
type contextual interface {
	bind(field string, st *state) validation.Rule
}

type ruleFunc func(value interface{}) error

func (f ruleFunc) Validate(value interface{}) error {
	return f(value)
}

type requiredRule struct {
	message string
}

// Required fails when no value was supplied. A supplied zero such as
// "0" counts as present, so later rules report on it.
func Required(message string) validation.Rule {
	return requiredRule{message: message}
}

func (r requiredRule) Validate(value interface{}) error {
	return validation.Required.Error(r.message).Validate(value)
}

func (r requiredRule) bind(field string, st *state) validation.Rule {
	return ruleFunc(func(interface{}) error {
		if !st.present(field) {
			return errors.New(r.message)
		}
		return nil
	})
}

type equalRule struct {
	other   string
	message string
}

// EqualTo fails unless the field equals the current value of other
func EqualTo(other, message string) validation.Rule {
	return equalRule{other: other, message: message}
}

func (r equalRule) Validate(interface{}) error {
	return errors.New("form: EqualTo used outside a schema")
}

func (r equalRule) bind(_ string, st *state) validation.Rule {
	return ruleFunc(func(value interface{}) error {
		if !reflect.DeepEqual(value, st.typed[r.other]) {
			return errors.New(r.message)
		}
		return nil
	})
}

type notBeforeRule struct {
	other   string
	message string
}

// NotBefore fails when the date is earlier than the current value of the
// date field other. Missing dates are left to Required.
func NotBefore(other, message string) validation.Rule {
	return notBeforeRule{other: other, message: message}
}

func (r notBeforeRule) Validate(interface{}) error {
	return errors.New("form: NotBefore used outside a schema")
}

func (r notBeforeRule) bind(_ string, st *state) validation.Rule {
	return ruleFunc(func(value interface{}) error {
		d, _ := value.(time.Time)
		ref, _ := st.typed[r.other].(time.Time)
		if d.IsZero() || ref.IsZero() {
			return nil
		}
		if d.Before(ref) {
			return errors.New(r.message)
		}
		return nil
	})
}

// NotBeforeToday fails for dates earlier than the current day
func NotBeforeToday(now func() time.Time, message string) validation.Rule {
	return ruleFunc(func(value interface{}) error {
		d, _ := value.(time.Time)
		if d.IsZero() {
			return nil
		}
		t := now()
		today := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if d.Before(today) {
			return errors.New(message)
		}
		return nil
	})
}

// StrongPassword checks PasswordPattern
func StrongPassword(message string) validation.Rule {
	return ruleFunc(func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		ok, err := passwordExp.MatchString(s)
		if err != nil || !ok {
			return errors.New(message)
		}
		return nil
	})
}

// MinItems fails for lists shorter than n
func MinItems(n int, message string) validation.Rule {
	return ruleFunc(func(value interface{}) error {
		l, _ := value.([]string)
		if len(l) < n {
			return errors.New(message)
		}
		return nil
	})
}

// MinNumber fails for numbers below min, zero included
func MinNumber(min int, message string) validation.Rule {
	return ruleFunc(func(value interface{}) error {
		n, _ := value.(int)
		if n < min {
			return errors.New(message)
		}
		return nil
	})
}
