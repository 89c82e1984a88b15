package query

import (
	"fmt"

	"github.com/pkg/errors"
)

// ParseError reports a malformed request parameter. It is the only error
// returned by the translator, so callers can map it to a client error.
type ParseError struct {
	Param string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid '%s' parameter: %s", e.Param, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(param string, err error) error {
	return &ParseError{Param: param, Err: err}
}

// IsParseError reports whether err, or any error it wraps, is a ParseError.
func IsParseError(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr)
}
