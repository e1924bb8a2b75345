package classifier

import (
	"context"
	"testing"
	"time"

	"confluence/pkg/model"
)

type fakeClassifier struct {
	label string
	score float64
	seen  string
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	f.seen = text
	return f.label, f.score, nil
}

func TestClassify_NormalisesButKeepsOriginalText(t *testing.T) {
	f := &fakeClassifier{label: model.LabelPositive, score: 0.95}
	msg := model.Message{
		SeqID: 1,
		Ts:    time.Now(),
		User:  "alice",
		Text:  "Shall we meet @bob at http://x.com 3?",
	}

	got, err := Classify(context.Background(), f, msg)
	if err != nil {
		t.Fatal(err)
	}

	if got.Text != msg.Text {
		t.Errorf("stored text mutated: got %q, want %q", got.Text, msg.Text)
	}
	if f.seen == msg.Text {
		t.Error("classifier was not given normalised text")
	}
	if !got.IsPositive() {
		t.Errorf("expected positive classification, got label %q", got.Label)
	}
	if got.Score != 0.95 {
		t.Errorf("score not propagated: got %v", got.Score)
	}
}
