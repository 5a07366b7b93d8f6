// Package pipeline implements the extraction-and-resolution pipeline that
// turns a meeting-notes email into a validated record plus resolved storage
// links: subject classification, LLM notes extraction, identity candidate
// resolution, and the cascading folder lookup, sequenced by the orchestrator.
package pipeline

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable marks a completion failure that may succeed on
// retry. Completer implementations wrap transient transport and rate-limit
// failures with it; anything else is treated as permanent.
var ErrServiceUnavailable = errors.New("completion service unavailable")

// ExtractionReason discriminates why an extraction was rejected.
type ExtractionReason string

// Extraction failure reasons. ReasonServiceUnavailable means every
// attempt hit a transient failure; ReasonCompletionRejected means the
// service refused the call outright (bad credentials, invalid request)
// and retrying the same call cannot help.
const (
	ReasonMalformedResponse    ExtractionReason = "malformed_response"
	ReasonMissingRequiredField ExtractionReason = "missing_required_field"
	ReasonServiceUnavailable   ExtractionReason = "service_unavailable"
	ReasonCompletionRejected   ExtractionReason = "completion_rejected"
)

// ExtractionError reports a failed notes extraction. The pipeline maps any
// ExtractionError to StatusFailed so the message stays unprocessed and is
// retried on a later poll.
type ExtractionError struct {
	Reason ExtractionReason
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StorageIOError reports a hard storage-backend failure, as opposed to a
// clean empty lookup result. It always escalates the run to StatusFailed
// and is never retried by this core.
type StorageIOError struct {
	Op  string
	Err error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }
