// Package validation checks user form input before it reaches the backend.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ha1tch/friendgraph/pkg/models"
)

// Validator checks a form and reports every problem found
type Validator interface {
	Validate(form interface{}) (bool, []string)
}

// FormValidator validates forms using their validate struct tags
type FormValidator struct {
	validate *validator.Validate
}

// New creates a form validator. Problems are reported by JSON field name.
func New() *FormValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return &FormValidator{validate: v}
}

// Validate validates form, which must be a struct or a pointer to one
func (v *FormValidator) Validate(form interface{}) (bool, []string) {
	err := v.validate.Struct(form)
	if err == nil {
		return true, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false, []string{err.Error()}
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return false, problems
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	element := false
	if i := strings.Index(field, "["); i > 0 {
		field = field[:i]
		element = true
	}

	switch fe.Tag() {
	case "required":
		if element {
			return fmt.Sprintf("%s: values must not be empty", field)
		}
		return fmt.Sprintf("%s: is required", field)
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s: must be at least %s characters", field, fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("%s: at least %s required", field, fe.Param())
		default:
			return fmt.Sprintf("%s: must be at least %s", field, fe.Param())
		}
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s: must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s: must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s validation", field, fe.Tag())
	}
}

// ParseHobbies splits a comma separated hobby list, dropping blanks and
// repeats
func ParseHobbies(text string) []string {
	return CleanHobbies(strings.Split(text, ","))
}

// CleanHobbies trims hobbies and drops blanks and repeats, keeping order
func CleanHobbies(hobbies []string) []string {
	out := make([]string, 0, len(hobbies))
	seen := make(map[string]bool, len(hobbies))
	for _, h := range hobbies {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

// NormalizeCreate trims the username and cleans the hobby list
func NormalizeCreate(in models.UserCreate) models.UserCreate {
	in.Username = strings.TrimSpace(in.Username)
	in.Hobbies = CleanHobbies(in.Hobbies)
	return in
}

// NormalizeUpdate trims the username and cleans the hobby list. A nil hobby
// list stays nil so the backend leaves it untouched.
func NormalizeUpdate(in models.UserUpdate) models.UserUpdate {
	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		in.Username = &name
	}
	if in.Hobbies != nil {
		in.Hobbies = CleanHobbies(in.Hobbies)
	}
	return in
}
