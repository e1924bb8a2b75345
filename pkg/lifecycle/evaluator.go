// Package lifecycle implements the suspension/completion state machine:
// conversations are marked suspended after inactivity, an
// optional external datetime extraction runs once on suspension, and
// completion follows once the extracted event datetime has passed or a
// grace period since suspension elapses.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Defaults for the two thresholds and the external-call timeout. Both
// completion criteria apply: an extracted event datetime passing, or the
// grace period elapsing since suspension.
const (
	DefaultSuspendAfter = 30 * time.Second
	DefaultGracePeriod  = 60 * time.Second
	DefaultCallTimeout  = 30 * time.Second
)

// Conversation is the narrow view of a live conversation the evaluator
// needs. It is satisfied by *conversation.Conversation; kept as an
// interface here so this package never imports pkg/conversation (the
// Conversation Manager imports pkg/lifecycle, not the reverse).
type Conversation interface {
	IsCompleted() bool
	IsSuspended() bool
	GetLastUpdated() time.Time
	GetEventDatetime() *time.Time
	GetSuspendedAt() time.Time
	Text() string
	MarkSuspended(at time.Time)
	SetEventDatetime(t time.Time)
	MarkCompleted()
}

// DatetimeExtractor asks an external service whether a conversation names
// a concrete future event datetime. Implemented by the adapter that
// pkg/llmservice.NewDatetimeExtractor returns.
type DatetimeExtractor interface {
	ExtractDatetime(ctx context.Context, conversationText string, now time.Time) (DatetimeResult, error)
}

// DatetimeResult mirrors llmservice.DatetimeResult; declared locally so
// this package has no compile-time dependency on pkg/llmservice either.
// The llmservice adapter copies llmservice.DatetimeResult into this type.
type DatetimeResult struct {
	EventDatetime  string
	DatetimeExists bool
	Reason         string
}

// Evaluator runs the per-conversation evaluation pass the Conversation
// Manager triggers every ArchiveEvery events.
type Evaluator struct {
	SuspendAfter time.Duration
	GracePeriod  time.Duration
	// Extractor may be nil, in which case event-datetime extraction is
	// skipped and completion relies solely on the grace period.
	Extractor DatetimeExtractor
	// CallTimeout bounds a single ExtractDatetime call (default 30s).
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// New constructs an Evaluator. A zero suspendAfter, gracePeriod, or
// callTimeout falls back to the package defaults.
func New(suspendAfter, gracePeriod, callTimeout time.Duration, extractor DatetimeExtractor, logger *slog.Logger) *Evaluator {
	if suspendAfter <= 0 {
		suspendAfter = DefaultSuspendAfter
	}
	if gracePeriod <= 0 {
		gracePeriod = DefaultGracePeriod
	}
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{SuspendAfter: suspendAfter, GracePeriod: gracePeriod, Extractor: extractor, CallTimeout: callTimeout, Logger: logger}
}

// Evaluate applies the two-step suspend/complete procedure to each live
// conversation in place and returns the subset that transitioned to
// completed in this pass, for the caller to enqueue for archival and
// drop from live state. Already-completed conversations are skipped.
func (e *Evaluator) Evaluate(ctx context.Context, conversations []Conversation, now time.Time) []Conversation {
	var completed []Conversation
	for _, c := range conversations {
		if c.IsCompleted() {
			continue
		}

		if !c.IsSuspended() && now.Sub(c.GetLastUpdated()) > e.SuspendAfter {
			c.MarkSuspended(now)
			e.extractDatetime(ctx, c, now)
		}

		if !c.IsSuspended() {
			continue
		}

		pastEvent := c.GetEventDatetime() != nil && c.GetEventDatetime().Before(now)
		graceElapsed := now.Sub(c.GetSuspendedAt()) >= e.GracePeriod
		if pastEvent || graceElapsed {
			c.MarkCompleted()
			completed = append(completed, c)
		}
	}
	return completed
}

func (e *Evaluator) extractDatetime(ctx context.Context, c Conversation, now time.Time) {
	if e.Extractor == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, e.CallTimeout)
	defer cancel()
	res, err := e.Extractor.ExtractDatetime(callCtx, c.Text(), now)
	if err != nil {
		e.Logger.Warn("lifecycle: datetime extraction failed, completion will rely on grace period", "error", err)
		return
	}
	if !res.DatetimeExists || res.EventDatetime == "" {
		return
	}
	t, err := time.Parse(time.RFC3339, res.EventDatetime)
	if err != nil {
		e.Logger.Warn("lifecycle: datetime extraction returned unparseable instant", "value", res.EventDatetime, "error", err)
		return
	}
	c.SetEventDatetime(t.UTC())
}

// ErrNoExtractor reports a missing datetime extractor. Nothing in this
// repository returns it: Evaluator accepts a nil Extractor and then skips
// datetime extraction.
var ErrNoExtractor = fmt.Errorf("lifecycle: no datetime extractor configured")
