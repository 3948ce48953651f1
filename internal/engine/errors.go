package engine

import "errors"

// Kind is the machine-readable error class surfaced to the gateway.
type Kind string

const (
	KindInvalidDeadlineFormat Kind = "invalid_deadline_format"
	KindInvalidOutcome        Kind = "invalid_outcome"
	KindRetrievalUnavailable  Kind = "retrieval_unavailable"
	KindIngestionSkipped      Kind = "ingestion_skipped"
)

// Error pairs a kind with a human-readable message. Callers always get a
// structured error object, never a raw trace.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// AsError extracts a structured engine error if err carries one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
