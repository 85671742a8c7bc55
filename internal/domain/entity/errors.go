package entity

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrProbeFailure      = errors.New("probe failed")
	ErrProbeParseFailure = errors.New("probe output unparseable")
	ErrExtractionFailure = errors.New("frame extraction failed")
	ErrEmptyExtraction   = errors.New("no frames extracted")
	ErrPipelineFailure   = errors.New("pipeline failed")
	ErrSessionNotFound   = errors.New("session not found")
	ErrArchiveFailure    = errors.New("archive failed")
	ErrJobNotFound       = errors.New("job not found")
)

// ExtractionError carries the transcoder's diagnostic output.
type ExtractionError struct {
	Output string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %v, output: %s", ErrExtractionFailure, e.Err, e.Output)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailure
}

func invalidParam(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}
