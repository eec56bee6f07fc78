package roster

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Record is one student's account data as reviewed and provisioned by the wizard.
type Record struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastInitial string `json:"last_initial"`
	Password    string `json:"password"`
	Username    string `json:"username,omitempty"`
	IsExisting  bool   `json:"is_existing,omitempty"`
}

// DisplayName renders "First L." the way credential sheets and progress lists show a student.
func (r Record) DisplayName() string {
	if r.LastInitial == "" {
		return r.FirstName
	}
	return r.FirstName + " " + r.LastInitial + "."
}

// RecordPatch carries a partial edit from the review step. Nil fields are left untouched.
type RecordPatch struct {
	FirstName   *string `json:"first_name"`
	LastInitial *string `json:"last_initial"`
	Password    *string `json:"password"`
}

// TouchesName reports whether applying the patch changes a field the username is derived from.
func (p RecordPatch) TouchesName() bool {
	return p.FirstName != nil || p.LastInitial != nil
}

// Apply writes the patch into r.
func (p RecordPatch) Apply(r *Record) {
	if p.FirstName != nil {
		r.FirstName = *p.FirstName
	}
	if p.LastInitial != nil {
		r.LastInitial = strings.ToUpper(*p.LastInitial)
	}
	if p.Password != nil {
		r.Password = *p.Password
	}
}

// CapitalizeName upper-cases the first letter and lower-cases the rest.
func CapitalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	first, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(first)) + strings.ToLower(name[size:])
}

// InitialOf returns the upper-cased first letter of a last name, or "" when there is none.
func InitialOf(lastName string) string {
	lastName = strings.TrimSpace(lastName)
	if lastName == "" {
		return ""
	}
	first, _ := utf8.DecodeRuneInString(lastName)
	return string(unicode.ToUpper(first))
}

// CloneRecords returns a detached copy of records.
func CloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
