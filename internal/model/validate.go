package model

import (
	"strings"
	"unicode"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// FullMessage renders the error the way it is shown to users, e.g.
// "Title can't be blank". An empty Field yields the bare message.
func (fe FieldError) FullMessage() string {
	if fe.Field == "" {
		return fe.Message
	}
	return Humanize(fe.Field) + " " + fe.Message
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.FullMessage()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks a record against the entity's attribute constraints.
// It returns a *ValidationError if any rules fail, or nil if the record is valid.
func Validate(e *Entity, r Record) error {
	var ve ValidationError
	for _, a := range e.Attributes {
		v, present := r[a.Name]
		if a.Required && (!present || isBlank(v)) {
			ve.Errors = append(ve.Errors, FieldError{Field: a.Name, Message: "can't be blank"})
			continue
		}
		if a.Type == AttrEnum && present && !isBlank(v) {
			if s, ok := v.(string); !ok || !contains(a.Values, s) {
				ve.Errors = append(ve.Errors, FieldError{Field: a.Name, Message: "is not included in the list"})
			}
		}
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Humanize turns an attribute name into a label: "author_id" -> "Author",
// "published_on" -> "Published on".
func Humanize(name string) string {
	name = strings.TrimSuffix(name, "_id")
	name = strings.ReplaceAll(name, AssocSeparator, " ")
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
