package bvh

import "fmt"

// FormatError reports input that violates the BVH grammar. Line is 1-based
// and 0 when the problem is not tied to a line.
type FormatError struct {
	Line int
	Msg  string
	Err  error
}

func (e *FormatError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Line > 0 {
		return fmt.Sprintf("bvh: line %d: %s", e.Line, msg)
	}
	return "bvh: " + msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErrorf(line int, format string, args ...any) *FormatError {
	return &FormatError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
