package monitor

import (
	"fmt"
	"io"
	"os"
)

// CLIMonitor implements Monitor, providing a direct terminal-based view
// of pipeline lifecycle events (ingestion, classification, conversation
// creation/mutation, suspension, completion, archival).
type CLIMonitor struct {
	writer io.Writer // The output destination, typically os.Stdout.
}

// NewCLIMonitor creates a new CLI monitor.
func NewCLIMonitor() *CLIMonitor {
	return &CLIMonitor{
		writer: os.Stdout,
	}
}

// Start starts the CLI monitor.
func (m *CLIMonitor) Start() error {
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	fmt.Fprintln(m.writer, "pipeline monitor active - lifecycle events will appear here")
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	return nil
}

// Stop stops the CLI monitor.
func (m *CLIMonitor) Stop() error {
	return nil
}

// OnEvent receives and displays a pipeline lifecycle event.
func (m *CLIMonitor) OnEvent(e Event) {
	timestamp := e.Timestamp.Format("2006-01-02 15:04:05")

	switch {
	case e.ConversationID != "" && e.SeqID != 0:
		fmt.Fprintf(m.writer, "\033[90m[%s]\033[0m [%s/%s] conversation=%s seqid=%d %s\n",
			timestamp, e.Stage, e.Kind, e.ConversationID, e.SeqID, e.Detail)
	case e.ConversationID != "":
		fmt.Fprintf(m.writer, "\033[90m[%s]\033[0m [%s/%s] conversation=%s %s\n",
			timestamp, e.Stage, e.Kind, e.ConversationID, e.Detail)
	default:
		fmt.Fprintf(m.writer, "\033[90m[%s]\033[0m [%s/%s] %s\n", timestamp, e.Stage, e.Kind, e.Detail)
	}
}
