// Package conversation owns all Conversation state and is the only
// package permitted to mutate a Conversation's lines, users, or
// timestamps.
package conversation

import (
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"confluence/pkg/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Conversation is a single calendar-scheduling discussion thread.
// Archival re-serialises the same struct, so byte-identical re-archival
// depends on its stable field order.
type Conversation struct {
	ID            string                    `json:"id"`
	Lines         []model.ClassifiedMessage `json:"lines"`
	Users         []string                  `json:"users"`
	LastUpdated   time.Time                 `json:"last_updated"`
	Suspended     bool                      `json:"suspended"`
	Completed     bool                      `json:"completed"`
	EventDatetime *time.Time                `json:"event_datetime,omitempty"`

	// suspendedAt records when Suspended flipped true, so the lifecycle
	// evaluator's grace-period completion criterion has
	// something to measure against. Not part of the archived record.
	suspendedAt time.Time
	userSet     map[string]struct{}
}

// New allocates a Conversation seeded with a single message, per
// CreateConversation semantics: a Conversation with empty lines cannot
// exist.
func New(id string, m model.ClassifiedMessage) *Conversation {
	c := &Conversation{
		ID:          id,
		userSet:     make(map[string]struct{}),
		LastUpdated: m.Ts,
	}
	c.append(m)
	return c
}

// Append adds a message to the conversation in ingest order, updating
// the derived users set and last_updated.
func (c *Conversation) Append(m model.ClassifiedMessage) {
	c.append(m)
}

func (c *Conversation) append(m model.ClassifiedMessage) {
	c.Lines = append(c.Lines, m)
	if c.userSet == nil {
		c.userSet = make(map[string]struct{})
		for _, u := range c.Users {
			c.userSet[u] = struct{}{}
		}
	}
	if _, ok := c.userSet[m.User]; !ok {
		c.userSet[m.User] = struct{}{}
		c.Users = append(c.Users, m.User)
	}
	if m.Ts.After(c.LastUpdated) {
		c.LastUpdated = m.Ts
	}
}

// HasUser reports whether user is among the conversation's participants.
func (c *Conversation) HasUser(user string) bool {
	_, ok := c.userSet[user]
	return ok
}

// The methods below satisfy lifecycle.Conversation, letting the
// Lifecycle Evaluator (pkg/lifecycle) drive suspension/completion without
// this package importing it; the decisions are applied here, inside the
// Conversation Manager's single-owner goroutine.

// IsCompleted implements lifecycle.Conversation.
func (c *Conversation) IsCompleted() bool { return c.Completed }

// IsSuspended implements lifecycle.Conversation.
func (c *Conversation) IsSuspended() bool { return c.Suspended }

// GetLastUpdated implements lifecycle.Conversation.
func (c *Conversation) GetLastUpdated() time.Time { return c.LastUpdated }

// GetEventDatetime implements lifecycle.Conversation.
func (c *Conversation) GetEventDatetime() *time.Time { return c.EventDatetime }

// GetSuspendedAt implements lifecycle.Conversation.
func (c *Conversation) GetSuspendedAt() time.Time { return c.suspendedAt }

// MarkSuspended implements lifecycle.Conversation.
func (c *Conversation) MarkSuspended(at time.Time) {
	c.Suspended = true
	c.suspendedAt = at
}

// SetEventDatetime implements lifecycle.Conversation.
func (c *Conversation) SetEventDatetime(t time.Time) {
	c.EventDatetime = &t
}

// MarkCompleted implements lifecycle.Conversation.
func (c *Conversation) MarkCompleted() { c.Completed = true }

// FirstSeqID returns the seqid of the first line, used to name the
// archived file.
func (c *Conversation) FirstSeqID() int {
	if len(c.Lines) == 0 {
		return 0
	}
	return c.Lines[0].SeqID
}

// Text concatenates all line text in ingest order, for embedding and
// datetime-extraction calls.
func (c *Conversation) Text() string {
	var sb strings.Builder
	for i, l := range c.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.User)
		sb.WriteString(": ")
		sb.WriteString(l.Text)
	}
	return sb.String()
}

// Summary produces an immutable snapshot safe to share outside the
// Conversation Manager (see ConversationSummary).
func (c *Conversation) Summary() ConversationSummary {
	users := make([]string, len(c.Users))
	copy(users, c.Users)
	return ConversationSummary{
		ID:          c.ID,
		Users:       users,
		LastUpdated: c.LastUpdated,
		Text:        c.Text(),
	}
}

// ConversationSummary is a read-only, immutable projection of a live
// Conversation published by the Conversation Manager for the
// rule-based continuation strategy to score against, without granting
// it access to the conversations map or SeqIndex.
type ConversationSummary struct {
	ID          string
	Users       []string
	LastUpdated time.Time
	Text        string
}

// HasUser reports whether user participated in this conversation.
func (s ConversationSummary) HasUser(user string) bool {
	for _, u := range s.Users {
		if u == user {
			return true
		}
	}
	return false
}
