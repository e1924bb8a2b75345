// Package model defines the immutable data types that flow through the
// pipeline: raw Messages, classifier-annotated ClassifiedMessages, and the
// StateEvents the Disentangler emits for the Conversation Manager to apply.
package model

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is a single chat-channel line as decoded from the upstream feed.
// It is immutable once constructed.
type Message struct {
	SeqID int       `json:"seqid"`
	Ts    time.Time `json:"ts"`
	User  string    `json:"user"`
	Text  string    `json:"text"`
}

// wireMessage mirrors the upstream JSON frame shape: RFC3339
// string timestamp and "message" rather than "text" for the body.
type wireMessage struct {
	SeqID   int    `json:"seqid"`
	Ts      string `json:"ts"`
	User    string `json:"user"`
	Message string `json:"message"`
}

// UnmarshalJSON decodes a wire frame, parsing ts as RFC3339 UTC. Extra
// fields are ignored by virtue of
// json.Unmarshal's default behavior.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, w.Ts)
	if err != nil {
		return fmt.Errorf("model: parse ts %q: %w", w.Ts, err)
	}
	m.SeqID = w.SeqID
	m.Ts = ts.UTC()
	m.User = w.User
	m.Text = w.Message
	return nil
}

// MarshalJSON re-emits the same wire shape, used by tests and any component
// that round-trips a Message.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		SeqID:   m.SeqID,
		Ts:      m.Ts.UTC().Format(time.RFC3339),
		User:    m.User,
		Message: m.Text,
	})
}

// Label values returned by the external calendar classifier.
const (
	LabelNegative = "LABEL_0"
	LabelPositive = "LABEL_1"
)

// ClassifiedMessage is a Message annotated with the calendar classifier's
// verdict. Immutable once constructed.
type ClassifiedMessage struct {
	Message
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// IsPositive reports whether the classifier judged this message
// calendar-related.
func (c ClassifiedMessage) IsPositive() bool {
	return c.Label == LabelPositive
}

// classifiedWire is the flattened JSON shape for ClassifiedMessage. Message
// defines its own MarshalJSON/UnmarshalJSON, which Go would otherwise
// promote to ClassifiedMessage unchanged, silently dropping Label and
// Score from every archived line; these overrides replace the promoted
// methods with the full-field encoding.
type classifiedWire struct {
	SeqID   int     `json:"seqid"`
	Ts      string  `json:"ts"`
	User    string  `json:"user"`
	Message string  `json:"message"`
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
}

// MarshalJSON overrides the promoted Message.MarshalJSON so Label and
// Score are not lost on encode.
func (c ClassifiedMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(classifiedWire{
		SeqID:   c.SeqID,
		Ts:      c.Ts.UTC().Format(time.RFC3339),
		User:    c.User,
		Message: c.Text,
		Label:   c.Label,
		Score:   c.Score,
	})
}

// UnmarshalJSON overrides the promoted Message.UnmarshalJSON so Label and
// Score are populated on decode.
func (c *ClassifiedMessage) UnmarshalJSON(data []byte) error {
	var w classifiedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, w.Ts)
	if err != nil {
		return fmt.Errorf("model: parse ts %q: %w", w.Ts, err)
	}
	c.SeqID = w.SeqID
	c.Ts = ts.UTC()
	c.User = w.User
	c.Text = w.Message
	c.Label = w.Label
	c.Score = w.Score
	return nil
}

// StateEvent is the tagged union the Disentangler emits and the
// Conversation Manager consumes.
type StateEvent struct {
	Kind   StateEventKind
	Msg    ClassifiedMessage
	Parent ClassifiedMessage // meaningful when Kind == AddToConversation and ResolvedConversationID == ""

	// ResolvedConversationID, when non-empty, names the target
	// conversation directly. The rule-based continuation strategy scores
	// against conversations, not window positions, so it has no Parent
	// message to hand the Conversation Manager a SeqIndex lookup key for;
	// it resolves the id itself and sets this field instead. The LLM
	// strategy leaves it empty and relies on Parent.SeqID.
	ResolvedConversationID string
}

// StateEventKind discriminates the two StateEvent variants.
type StateEventKind int

const (
	// CreateConversation opens a brand new conversation containing only Msg.
	CreateConversation StateEventKind = iota
	// AddToConversation appends Msg to the conversation that owns Parent.
	AddToConversation
)

func (k StateEventKind) String() string {
	switch k {
	case CreateConversation:
		return "CreateConversation"
	case AddToConversation:
		return "AddToConversation"
	default:
		return fmt.Sprintf("StateEventKind(%d)", int(k))
	}
}
