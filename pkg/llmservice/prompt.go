package llmservice

import (
	"fmt"
	"strings"
	"time"
)

// ContinuationPrompt formats the sliding window as enumerated options plus
// the new message, for providers whose SDK takes a single prompt string
// rather than a structured schema-only call.
func ContinuationPrompt(windowText []string, newMessage string) string {
	var b strings.Builder
	b.WriteString("You are deciding which ongoing conversation, if any, a new chat message continues.\n")
	b.WriteString("Below are recently seen messages, numbered as options:\n\n")
	for i, text := range windowText {
		fmt.Fprintf(&b, "%d. %s\n", i+1, text)
	}
	b.WriteString("\nNew message:\n")
	b.WriteString(newMessage)
	b.WriteString("\n\nReply with a JSON object {\"new_message\": string, \"option\": integer, \"reason\": string}.\n")
	fmt.Fprintf(&b, "\"option\" must be -1 if the new message starts an unrelated conversation, or between 1 and %d if it continues that numbered option.\n", len(windowText))
	return b.String()
}

// DatetimePrompt formats a suspended conversation's full text for the
// datetime-extraction call.
func DatetimePrompt(conversationText string, now time.Time) string {
	var b strings.Builder
	b.WriteString("The following is a chat conversation that may describe a scheduled event.\n")
	b.WriteString("Conversation:\n")
	b.WriteString(conversationText)
	fmt.Fprintf(&b, "\n\nCurrent time is %s.\n", now.UTC().Format(time.RFC3339))
	b.WriteString("Reply with a JSON object {\"event_datetime\": RFC3339 string, \"datetime_exists\": bool, \"reason\": string}.\n")
	b.WriteString("Set \"datetime_exists\" to false and leave \"event_datetime\" empty if no concrete date and time can be determined.\n")
	return b.String()
}

// ClampOption collapses an out-of-range option value to -1.
func ClampOption(option, windowLen int) int {
	if option < 1 || option > windowLen {
		return -1
	}
	return option
}
