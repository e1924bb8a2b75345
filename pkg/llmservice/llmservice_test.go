package llmservice

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestContinuationPrompt_EnumeratesWindow(t *testing.T) {
	window := []string{"alice: call at 4pm?", "bob: sure"}
	prompt := ContinuationPrompt(window, "carol: what about 5?")

	if !strings.Contains(prompt, "1. alice: call at 4pm?") {
		t.Errorf("prompt missing option 1:\n%s", prompt)
	}
	if !strings.Contains(prompt, "2. bob: sure") {
		t.Errorf("prompt missing option 2:\n%s", prompt)
	}
	if !strings.Contains(prompt, "between 1 and 2") {
		t.Errorf("prompt should bound options to the window length:\n%s", prompt)
	}
	if !strings.Contains(prompt, "carol: what about 5?") {
		t.Errorf("prompt missing the new message:\n%s", prompt)
	}
}

func TestDatetimePrompt_CarriesCurrentTime(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	prompt := DatetimePrompt("alice: meet friday 3pm", now)

	if !strings.Contains(prompt, "2026-01-02T15:04:05Z") {
		t.Errorf("prompt missing current time:\n%s", prompt)
	}
	if !strings.Contains(prompt, "datetime_exists") {
		t.Errorf("prompt missing response schema:\n%s", prompt)
	}
}

func TestClampOption(t *testing.T) {
	tests := []struct {
		option, windowLen, want int
	}{
		{-1, 6, -1},
		{0, 6, -1},
		{1, 6, 1},
		{6, 6, 6},
		{7, 6, -1},
		{42, 6, -1},
		{1, 0, -1},
	}
	for _, tc := range tests {
		if got := ClampOption(tc.option, tc.windowLen); got != tc.want {
			t.Errorf("ClampOption(%d, %d) = %d, want %d", tc.option, tc.windowLen, got, tc.want)
		}
	}
}

type stubFactory struct{ client Client }

func (f stubFactory) Create(cfg ProviderConfig) (Client, error) { return f.client, nil }

type stubClient struct{}

func (stubClient) Continuation(ctx context.Context, windowText []string, newMessage string) (ContinuationResult, error) {
	return ContinuationResult{Option: -1}, nil
}

func (stubClient) ExtractDatetime(ctx context.Context, conversationText string, now time.Time) (DatetimeResult, error) {
	return DatetimeResult{}, nil
}

func (stubClient) IsTransientError(err error) bool { return false }

func TestNew_UnknownProviderRejected(t *testing.T) {
	if _, err := New(ProviderConfig{Type: "no-such-provider"}); err == nil {
		t.Fatal("expected error for unregistered provider type")
	}
	if _, err := New(ProviderConfig{}); err == nil {
		t.Fatal("expected error for empty provider type")
	}
}

func TestNew_DispatchesToRegisteredFactory(t *testing.T) {
	RegisterProvider("stub-test", stubFactory{client: stubClient{}})

	client, err := New(ProviderConfig{Type: "stub-test"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := client.(stubClient); !ok {
		t.Fatalf("expected the registered factory's client, got %T", client)
	}
}
