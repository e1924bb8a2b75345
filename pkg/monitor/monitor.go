package monitor

import "time"

// Event is a standardized pipeline lifecycle notification, broadcast by a
// stage whenever it ingests, classifies, or transitions a conversation,
// so observability plugins (CLI, log-only, ...) can present or record the
// stream without reaching into pipeline internals.
type Event struct {
	Timestamp      time.Time
	Stage          string // "ingest" | "classify" | "disentangle" | "conversation" | "lifecycle" | "archive"
	Kind           string // e.g. "ingested", "classified", "created", "added", "suspended", "completed", "archived", "dropped"
	ConversationID string
	SeqID          int
	Detail         string
}

// Monitor defines the lifecycle and event consumption protocol for
// observability plugins. Implementations are responsible for presenting
// the internal pipeline event flow to the administrator or end-user.
type Monitor interface {
	// Start initiates the monitoring session and allocates display resources.
	Start() error

	// Stop gracefully terminates the monitor and releases held resources.
	Stop() error

	// OnEvent receives and displays a pipeline lifecycle event.
	OnEvent(e Event)
}

// SetupEnvironment initializes the global slog logger at logLevel and
// returns a default CLI monitor instance, simplifying the main bootstrap
// sequence.
func SetupEnvironment(logLevel string) Monitor {
	SetupSlog(logLevel)
	return NewCLIMonitor()
}
