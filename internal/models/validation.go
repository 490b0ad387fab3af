package models

import (
	"strings"
)

const (
	FieldEmail  = "email"
	FieldStatus = "status"
)

const (
	MsgBlank        = "can't be blank"
	MsgInvalidEmail = "must be a valid email address"
	MsgTaken        = "has already been taken"
)

func InvalidStatusMessage(value string) string {
	return value + " is not a valid status"
}

type FieldError struct {
	Field    string
	Messages []string
}

// ValidationError keeps field errors in the order they were added so that
// FullMessages is stable.
type ValidationError struct {
	fields []FieldError
}

// NewDuplicateEmailError is the error reported when the store rejects a
// write on its unique email index.
func NewDuplicateEmailError() *ValidationError {
	verr := &ValidationError{}
	verr.Add(FieldEmail, MsgTaken)
	return verr
}

func (e *ValidationError) Add(field, msg string) {
	for i := range e.fields {
		if e.fields[i].Field == field {
			e.fields[i].Messages = append(e.fields[i].Messages, msg)
			return
		}
	}
	e.fields = append(e.fields, FieldError{Field: field, Messages: []string{msg}})
}

func (e *ValidationError) Empty() bool {
	return len(e.fields) == 0
}

func (e *ValidationError) Fields() []FieldError {
	out := make([]FieldError, len(e.fields))
	copy(out, e.fields)
	return out
}

func (e *ValidationError) Messages(field string) []string {
	for _, f := range e.fields {
		if f.Field == field {
			return f.Messages
		}
	}
	return nil
}

// FullMessages prefixes each message with the humanized field name,
// e.g. "Email can't be blank".
func (e *ValidationError) FullMessages() []string {
	var out []string
	for _, f := range e.fields {
		for _, msg := range f.Messages {
			out = append(out, humanize(f.Field)+" "+msg)
		}
	}
	return out
}

func (e *ValidationError) Error() string {
	return strings.Join(e.FullMessages(), ", ")
}

func humanize(field string) string {
	if field == "" {
		return field
	}
	s := strings.ReplaceAll(field, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}
