package model

import "errors"

// Sentinel errors for the pipeline's failure taxonomy. Call sites wrap
// these with fmt.Errorf("...: %w", ErrX) and callers discriminate with
// errors.Is.
var (
	// ErrMalformedFrame marks an upstream frame that failed to parse as a
	// Message. Logged and skipped; never fatal.
	ErrMalformedFrame = errors.New("model: malformed upstream frame")

	// ErrTransientExternal marks a transport failure or 5xx from the
	// classifier or embedding service. Neither call is retried: the
	// pipeline drops a message whose classification fails, and the
	// rule-based strategy skips the semantic signal when embedding fails.
	ErrTransientExternal = errors.New("model: transient external failure")

	// ErrParentNotFound marks an AddToConversation whose parent seqid is no
	// longer present in the SeqIndex (already archived or evicted).
	ErrParentNotFound = errors.New("model: parent message not tracked")

	// ErrStorageFailure marks a failed archive write, exhausted of retries.
	ErrStorageFailure = errors.New("model: storage failure")

	// ErrInvariantViolation marks a programming-invariant failure (unknown
	// StateEvent kind, inconsistent SeqIndex). Always fatal.
	ErrInvariantViolation = errors.New("model: invariant violation")
)
