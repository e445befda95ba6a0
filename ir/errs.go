package ir

import "errors"

var (
	errInternal = errors.New("internal error")

	// ErrParse reports malformed input.
	ErrParse = errors.New("parse error")
	// ErrType reports a value whose type or range does not fit the request.
	ErrType = errors.New("type error")
	// ErrLookup reports a missing or duplicate field.
	ErrLookup = errors.New("lookup error")
)
