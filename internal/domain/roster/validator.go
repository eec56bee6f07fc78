package roster

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	firstNamePattern   = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	lastInitialPattern = regexp.MustCompile(`^[A-Za-z]$`)
)

type FieldIssue string

const (
	IssueRequired FieldIssue = "required"
	IssueInvalid  FieldIssue = "invalid"
)

// FieldErrors holds the issue per field; an empty value means the field is valid.
type FieldErrors struct {
	FirstName   FieldIssue `json:"first_name,omitempty"`
	LastInitial FieldIssue `json:"last_initial,omitempty"`
	Password    FieldIssue `json:"password,omitempty"`
}

func (f FieldErrors) Valid() bool {
	return f.FirstName == "" && f.LastInitial == "" && f.Password == ""
}

type recordForm struct {
	FirstName   string `validate:"present,first_name"`
	LastInitial string `validate:"required,last_initial"`
	Password    string `validate:"present,alphanum"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	rules := map[string]validator.Func{
		"present": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		"first_name": func(fl validator.FieldLevel) bool {
			return firstNamePattern.MatchString(fl.Field().String())
		},
		"last_initial": func(fl validator.FieldLevel) bool {
			return lastInitialPattern.MatchString(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return v
}

// Validate checks a single record's fields.
func Validate(r Record) FieldErrors {
	var out FieldErrors

	err := validate.Struct(recordForm{
		FirstName:   r.FirstName,
		LastInitial: r.LastInitial,
		Password:    r.Password,
	})
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}

	for _, fe := range verrs {
		issue := IssueInvalid
		if fe.Tag() == "present" || fe.Tag() == "required" {
			issue = IssueRequired
		}
		switch fe.StructField() {
		case "FirstName":
			out.FirstName = issue
		case "LastInitial":
			out.LastInitial = issue
		case "Password":
			out.Password = issue
		}
	}
	return out
}

// ValidateRoster returns the field errors for every record, in roster order.
func ValidateRoster(records []Record) []FieldErrors {
	out := make([]FieldErrors, len(records))
	for i, r := range records {
		out[i] = Validate(r)
	}
	return out
}

// IsRosterValid is true iff the roster is non-empty and no record has a field error.
func IsRosterValid(records []Record) bool {
	if len(records) == 0 {
		return false
	}
	for _, r := range records {
		if !Validate(r).Valid() {
			return false
		}
	}
	return true
}

// ValidationMessages summarizes roster issues as one line per distinct problem.
func ValidationMessages(errs []FieldErrors) []string {
	type key struct {
		field string
		issue FieldIssue
	}
	seen := map[key]bool{}
	for _, e := range errs {
		seen[key{"first_name", e.FirstName}] = true
		seen[key{"last_initial", e.LastInitial}] = true
		seen[key{"password", e.Password}] = true
	}

	ordered := []struct {
		key
		msg string
	}{
		{key{"first_name", IssueRequired}, "First name is required"},
		{key{"first_name", IssueInvalid}, "First names must only contain letters, numbers, and hyphens"},
		{key{"last_initial", IssueRequired}, "Last initial is required"},
		{key{"last_initial", IssueInvalid}, "Last initial must be a letter"},
		{key{"password", IssueRequired}, "Password is required"},
		{key{"password", IssueInvalid}, "Passwords must only contain letters and numbers"},
	}

	var out []string
	for _, o := range ordered {
		if seen[o.key] {
			out = append(out, o.msg)
		}
	}
	return out
}
