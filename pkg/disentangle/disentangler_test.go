package disentangle

import (
	"context"
	"errors"
	"testing"
	"time"

	"confluence/pkg/conversation"
	"confluence/pkg/llmservice"
	"confluence/pkg/model"
)

type fakeLLMClient struct {
	option      int
	err         error
	failAlways  bool
	transient   bool
	callsBefore int // succeed only once calls exceeds this count
	calls       int
}

func (f *fakeLLMClient) Continuation(ctx context.Context, windowText []string, newMessage string) (llmservice.ContinuationResult, error) {
	f.calls++
	if f.failAlways || f.calls <= f.callsBefore {
		return llmservice.ContinuationResult{}, f.err
	}
	return llmservice.ContinuationResult{Option: f.option}, nil
}

func (f *fakeLLMClient) ExtractDatetime(ctx context.Context, text string, now time.Time) (llmservice.DatetimeResult, error) {
	return llmservice.DatetimeResult{}, nil
}

func (f *fakeLLMClient) IsTransientError(err error) bool { return f.transient }

func dmsg(seqid int, user, text string, ts time.Time) model.ClassifiedMessage {
	return model.ClassifiedMessage{
		Message: model.Message{SeqID: seqid, User: user, Text: text, Ts: ts},
		Label:   model.LabelPositive,
		Score:   0.9,
	}
}

func TestDecide_FirstMessageAlwaysCreates(t *testing.T) {
	client := &fakeLLMClient{}
	d := New(NewLLMStrategy(client), nil, time.Second, nil)

	ev := d.Decide(context.Background(), dmsg(1, "alice", "hi", time.Now()))
	if ev.Kind != model.CreateConversation {
		t.Fatalf("expected CreateConversation for first message, got %v", ev.Kind)
	}
}

func TestDecide_LLMOptionResolvesToParent(t *testing.T) {
	client := &fakeLLMClient{option: 1}
	d := New(NewLLMStrategy(client), nil, time.Second, nil)

	base := time.Now()
	first := dmsg(1, "alice", "let's meet friday", base)
	d.Decide(context.Background(), first) // seed the window

	ev := d.Decide(context.Background(), dmsg(2, "bob", "works for me", base.Add(time.Second)))
	if ev.Kind != model.AddToConversation {
		t.Fatalf("expected AddToConversation, got %v", ev.Kind)
	}
	if ev.Parent.SeqID != 1 {
		t.Fatalf("expected parent seqid 1, got %d", ev.Parent.SeqID)
	}
}

func TestDecide_OutOfRangeOptionCreatesNew(t *testing.T) {
	client := &fakeLLMClient{option: 99}
	d := New(NewLLMStrategy(client), nil, time.Second, nil)

	base := time.Now()
	d.Decide(context.Background(), dmsg(1, "alice", "hi", base))
	ev := d.Decide(context.Background(), dmsg(2, "bob", "hi", base.Add(time.Second)))

	if ev.Kind != model.CreateConversation {
		t.Fatalf("expected out-of-range option to collapse to CreateConversation, got %v", ev.Kind)
	}
}

func TestDecide_NegativeOptionCreatesNew(t *testing.T) {
	client := &fakeLLMClient{option: -1}
	d := New(NewLLMStrategy(client), nil, time.Second, nil)

	base := time.Now()
	d.Decide(context.Background(), dmsg(1, "alice", "hi", base))
	ev := d.Decide(context.Background(), dmsg(2, "bob", "unrelated", base.Add(time.Second)))

	if ev.Kind != model.CreateConversation {
		t.Fatalf("expected -1 option to yield CreateConversation, got %v", ev.Kind)
	}
}

func TestDecide_FallsBackToRulesAfterPrimaryExhausted(t *testing.T) {
	client := &fakeLLMClient{failAlways: true, err: errors.New("boom")}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	convs := []conversation.ConversationSummary{{ID: "c1", Users: []string{"alice"}, LastUpdated: base, Text: "hello"}}
	fallback := NewRuleBasedStrategy(func() []conversation.ConversationSummary { return convs }, nil)

	d := New(NewLLMStrategy(client), fallback, time.Second, nil)

	d.Decide(context.Background(), dmsg(1, "alice", "seed", base))
	ev := d.Decide(context.Background(), dmsg(2, "alice", "still me", base.Add(2*time.Second)))

	if ev.Kind != model.AddToConversation || ev.ResolvedConversationID != "c1" {
		t.Fatalf("expected fallback to resolve c1 via same-author signal, got %+v", ev)
	}
}

func TestDecide_NoFallbackCreatesNewOnPrimaryFailure(t *testing.T) {
	client := &fakeLLMClient{failAlways: true, err: errors.New("boom")}
	d := New(NewLLMStrategy(client), nil, time.Second, nil)

	base := time.Now()
	d.Decide(context.Background(), dmsg(1, "alice", "seed", base))
	ev := d.Decide(context.Background(), dmsg(2, "bob", "x", base.Add(time.Second)))

	if ev.Kind != model.CreateConversation {
		t.Fatalf("expected CreateConversation with no fallback configured, got %v", ev.Kind)
	}
}

func TestDecide_RetriesOnceBeforeFallback(t *testing.T) {
	client := &fakeLLMClient{callsBefore: 1, option: 1, transient: true, err: errors.New("timeout")}
	d := New(NewLLMStrategy(client), nil, time.Second, nil)

	base := time.Now()
	d.Decide(context.Background(), dmsg(1, "alice", "seed", base))
	ev := d.Decide(context.Background(), dmsg(2, "bob", "follow-up", base.Add(time.Second)))

	if ev.Kind != model.AddToConversation {
		t.Fatalf("expected retry to succeed and resolve AddToConversation, got %v", ev.Kind)
	}
	if client.calls < 2 {
		t.Fatalf("expected at least 2 calls (initial + 1 retry), got %d", client.calls)
	}
}

func TestDecide_NonTransientFailureSkipsRetry(t *testing.T) {
	client := &fakeLLMClient{failAlways: true, transient: false, err: errors.New("invalid api key")}
	d := New(NewLLMStrategy(client), nil, time.Second, nil)

	base := time.Now()
	d.Decide(context.Background(), dmsg(1, "alice", "seed", base))
	ev := d.Decide(context.Background(), dmsg(2, "bob", "x", base.Add(time.Second)))

	if ev.Kind != model.CreateConversation {
		t.Fatalf("expected fallback decision, got %v", ev.Kind)
	}
	if client.calls != 1 {
		t.Fatalf("expected exactly 1 call for a permanent failure (no retry), got %d", client.calls)
	}
}
