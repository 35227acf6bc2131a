// Package fault carries typed failures between the assistant components.
// External call sites wrap their errors in *Error so callers can branch on
// the Kind instead of parsing strings.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// ModerationRejection means the user input contained a banned term.
	ModerationRejection Kind = "moderation_rejection"
	// ModerationRedaction means the model output was redacted.
	ModerationRedaction Kind = "moderation_redaction"
	// ExternalService means a completion, search, transcription or synthesis call failed.
	ExternalService Kind = "external_service"
	// InvalidInput means a caller supplied a missing or unreadable file.
	InvalidInput Kind = "invalid_input"
)

// Error is a failure tagged with its Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string // "completion", "search", "moderate", "transcribe", "synthesize", "inspect"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s [%s]", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with kind and op. It returns nil when err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// External is shorthand for New(ExternalService, op, err).
func External(op string, err error) error {
	return New(ExternalService, op, err)
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
