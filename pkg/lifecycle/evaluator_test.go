package lifecycle

import (
	"context"
	"testing"
	"time"
)

// fakeConversation is a minimal in-memory Conversation for evaluator tests.
type fakeConversation struct {
	id            string
	completed     bool
	suspended     bool
	lastUpdated   time.Time
	suspendedAt   time.Time
	eventDatetime *time.Time
	text          string
}

func (f *fakeConversation) IsCompleted() bool           { return f.completed }
func (f *fakeConversation) IsSuspended() bool           { return f.suspended }
func (f *fakeConversation) GetLastUpdated() time.Time   { return f.lastUpdated }
func (f *fakeConversation) GetEventDatetime() *time.Time { return f.eventDatetime }
func (f *fakeConversation) GetSuspendedAt() time.Time   { return f.suspendedAt }
func (f *fakeConversation) Text() string                { return f.text }
func (f *fakeConversation) MarkSuspended(at time.Time)  { f.suspended = true; f.suspendedAt = at }
func (f *fakeConversation) SetEventDatetime(t time.Time) { f.eventDatetime = &t }
func (f *fakeConversation) MarkCompleted()              { f.completed = true }

type fakeExtractor struct {
	result DatetimeResult
	err    error
}

func (f fakeExtractor) ExtractDatetime(ctx context.Context, text string, now time.Time) (DatetimeResult, error) {
	return f.result, f.err
}

func TestEvaluate_ActiveConversationUntouched(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &fakeConversation{id: "c1", lastUpdated: now.Add(-5 * time.Second)}

	e := New(30*time.Second, 60*time.Second, time.Second, nil, nil)
	completed := e.Evaluate(context.Background(), []Conversation{c}, now)

	if len(completed) != 0 {
		t.Fatalf("expected no completions, got %d", len(completed))
	}
	if c.IsSuspended() {
		t.Fatal("conversation should not yet be suspended")
	}
}

func TestEvaluate_SuspendsAfterInactivity(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &fakeConversation{id: "c1", lastUpdated: now.Add(-31 * time.Second)}

	e := New(30*time.Second, 60*time.Second, time.Second, nil, nil)
	e.Evaluate(context.Background(), []Conversation{c}, now)

	if !c.IsSuspended() {
		t.Fatal("expected conversation to be suspended")
	}
	if c.IsCompleted() {
		t.Fatal("should not complete before grace period elapses")
	}
}

func TestEvaluate_CompletesAfterGracePeriod(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &fakeConversation{
		id:          "c1",
		lastUpdated: now.Add(-200 * time.Second),
		suspended:   true,
		suspendedAt: now.Add(-61 * time.Second),
	}

	e := New(30*time.Second, 60*time.Second, time.Second, nil, nil)
	completed := e.Evaluate(context.Background(), []Conversation{c}, now)

	if len(completed) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(completed))
	}
	if !c.IsCompleted() {
		t.Fatal("expected conversation marked completed")
	}
}

func TestEvaluate_CompletesWhenEventDatetimePassed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	c := &fakeConversation{
		id:            "c1",
		suspended:     true,
		suspendedAt:   now.Add(-5 * time.Second), // grace period not yet elapsed
		eventDatetime: &past,
	}

	e := New(30*time.Second, 60*time.Second, time.Second, nil, nil)
	completed := e.Evaluate(context.Background(), []Conversation{c}, now)

	if len(completed) != 1 {
		t.Fatalf("expected past-event completion, got %d", len(completed))
	}
}

func TestEvaluate_SkipsAlreadyCompleted(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &fakeConversation{id: "c1", completed: true}

	e := New(30*time.Second, 60*time.Second, time.Second, nil, nil)
	completed := e.Evaluate(context.Background(), []Conversation{c}, now)

	if len(completed) != 0 {
		t.Fatal("already-completed conversations must not be re-reported")
	}
}

func TestEvaluate_ExtractsDatetimeOnSuspension(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &fakeConversation{id: "c1", lastUpdated: now.Add(-31 * time.Second)}

	extractor := fakeExtractor{result: DatetimeResult{
		EventDatetime:  now.Add(2 * time.Hour).Format(time.RFC3339),
		DatetimeExists: true,
	}}
	e := New(30*time.Second, 60*time.Second, time.Second, extractor, nil)
	e.Evaluate(context.Background(), []Conversation{c}, now)

	if c.GetEventDatetime() == nil {
		t.Fatal("expected event datetime to be set from extractor result")
	}
	if !c.GetEventDatetime().Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("unexpected event datetime: %v", c.GetEventDatetime())
	}
}

func TestEvaluate_MalformedExtractorResultIgnored(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &fakeConversation{id: "c1", lastUpdated: now.Add(-31 * time.Second)}

	extractor := fakeExtractor{result: DatetimeResult{EventDatetime: "not-a-time", DatetimeExists: true}}
	e := New(30*time.Second, 60*time.Second, time.Second, extractor, nil)
	e.Evaluate(context.Background(), []Conversation{c}, now)

	if c.GetEventDatetime() != nil {
		t.Fatal("expected unparseable datetime to be ignored")
	}
}
