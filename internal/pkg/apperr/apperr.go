package apperr

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStageLocked rejects entry into a pipeline stage whose precondition is unmet.
	ErrStageLocked = errors.New("stage locked")
	// ErrPollTimeout is returned when bounded analysis polling exhausts its attempts.
	ErrPollTimeout = errors.New("poll timeout")
)

// Code constants surfaced to API clients for upstream collaborator failures.
const (
	CodeTranscriptionFailed  = "TRANSCRIPTION_FAILED"
	CodeUnstructuredContent  = "UNSTRUCTURED_CONTENT"
	CodeTTSFailed            = "TTS_FAILED"
	CodeRenderSubmitRejected = "RENDER_SUBMIT_REJECTED"
)

// Coded wraps an error with a stable machine-readable code while keeping the
// human message from the upstream service verbatim.
type Coded struct {
	Code string
	Err  error
}

func (e *Coded) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *Coded) Unwrap() error { return e.Err }

func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	return &Coded{Code: code, Err: err}
}

// CodeOf extracts the stable code from an error chain, or "" when uncoded.
func CodeOf(err error) string {
	var c *Coded
	if errors.As(err, &c) {
		return c.Code
	}
	return ""
}
