package disentangle

import (
	"testing"
	"time"

	"confluence/pkg/model"
)

func cm(seqid int, user, text string, ts time.Time) model.ClassifiedMessage {
	return model.ClassifiedMessage{
		Message: model.Message{SeqID: seqid, User: user, Text: text, Ts: ts},
		Label:   model.LabelPositive,
		Score:   0.9,
	}
}

func TestWindow_EmptyHasZeroLen(t *testing.T) {
	w := NewWindow(WindowSize)
	if w.Len() != 0 {
		t.Fatalf("expected empty window, got len %d", w.Len())
	}
	if _, ok := w.At(1); ok {
		t.Fatal("expected At(1) to fail on empty window")
	}
}

func TestWindow_PreservesInsertionOrder(t *testing.T) {
	w := NewWindow(WindowSize)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	w.Push(cm(1, "alice", "a", base))
	w.Push(cm(2, "bob", "b", base.Add(time.Second)))
	w.Push(cm(3, "carol", "c", base.Add(2*time.Second)))

	items := w.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].SeqID != 1 || items[1].SeqID != 2 || items[2].SeqID != 3 {
		t.Fatalf("items out of order: %+v", items)
	}

	got, ok := w.At(2)
	if !ok || got.SeqID != 2 {
		t.Fatalf("At(2) = %+v, %v; want seqid 2", got, ok)
	}
}

func TestWindow_EvictsOldestPastCapacity(t *testing.T) {
	w := NewWindow(3)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		w.Push(cm(i, "alice", "x", base.Add(time.Duration(i)*time.Second)))
	}

	if w.Len() != 3 {
		t.Fatalf("expected capacity-bounded len 3, got %d", w.Len())
	}
	items := w.Items()
	var seqids []int
	for _, it := range items {
		seqids = append(seqids, it.SeqID)
	}
	want := []int{3, 4, 5}
	for i, s := range want {
		if seqids[i] != s {
			t.Fatalf("expected surviving seqids %v, got %v", want, seqids)
		}
	}
}

func TestWindow_NeverExceedsN(t *testing.T) {
	w := NewWindow(WindowSize)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= WindowSize+1; i++ {
		w.Push(cm(i, "alice", "x", base.Add(time.Duration(i)*time.Second)))
	}
	if w.Len() != WindowSize {
		t.Fatalf("window grew past N=%d: len=%d", WindowSize, w.Len())
	}
}
