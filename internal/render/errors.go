package render

import (
	"errors"
	"fmt"
)

// ErrRenderFailed matches every *RenderError via errors.Is.
var ErrRenderFailed = errors.New("render failed")

// ErrorKind classifies a render failure.
type ErrorKind string

const (
	KindProcessExit    ErrorKind = "process_exit"
	KindTimeout        ErrorKind = "timeout"
	KindOverloaded     ErrorKind = "overloaded"
	KindCanceled       ErrorKind = "canceled"
	KindEmptyOutput    ErrorKind = "empty_output"
	KindOutputTooLarge ErrorKind = "output_too_large"
	KindStart          ErrorKind = "start"
)

// RenderError reports a failed render. ExitCode is set for KindProcessExit
// and is -1 when the process was killed by a signal.
type RenderError struct {
	Kind     ErrorKind
	ExitCode int
	Err      error
}

func (e *RenderError) Error() string {
	switch e.Kind {
	case KindProcessExit:
		return fmt.Sprintf("render process exited with code %d", e.ExitCode)
	case KindOverloaded:
		return "render capacity exhausted"
	default:
		if e.Err != nil {
			return fmt.Sprintf("render %s: %v", e.Kind, e.Err)
		}
		return "render " + string(e.Kind)
	}
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool {
	return target == ErrRenderFailed
}
