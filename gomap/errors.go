package gomap

import (
	"fmt"

	"github.com/signadot/odoc/ir"
)

// MarshalError represents an error during marshaling
type MarshalError struct {
	FieldPath string // Field path (e.g., "person.address.street")
	Message   string
	Err       error
}

func (e *MarshalError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.FieldPath != "" {
		return fmt.Sprintf("marshal error at %s: %s", e.FieldPath, msg)
	}
	return fmt.Sprintf("marshal error: %s", msg)
}

func (e *MarshalError) Unwrap() error {
	return e.Err
}

// UnmarshalError represents an error during unmarshaling
type UnmarshalError struct {
	FieldPath string // Field path (e.g., "person.address.street")
	Message   string
	Err       error
}

func (e *UnmarshalError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.FieldPath != "" {
		return fmt.Sprintf("unmarshal error at %s: %s", e.FieldPath, msg)
	}
	return fmt.Sprintf("unmarshal error: %s", msg)
}

func (e *UnmarshalError) Unwrap() error {
	return e.Err
}

func marshalErr(path string, err error, format string, args ...any) error {
	return &MarshalError{FieldPath: path, Message: fmt.Sprintf(format, args...), Err: err}
}

func typeErr(path string, format string, args ...any) error {
	return &UnmarshalError{FieldPath: path, Message: fmt.Sprintf(format, args...), Err: ir.ErrType}
}

// wrapErr attaches a field path to an error from the tree or a codec.
func wrapErr(path string, err error) error {
	switch err.(type) {
	case nil, *UnmarshalError:
		return err
	}
	return &UnmarshalError{FieldPath: path, Err: err}
}

func fieldPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
