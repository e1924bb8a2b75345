package archive

import (
	"context"
	encjson "encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"confluence/pkg/conversation"
	"confluence/pkg/model"
)

func sampleConversation(id string, seqid int) *conversation.Conversation {
	m := model.ClassifiedMessage{
		Message: model.Message{SeqID: seqid, User: "alice", Text: "let's meet friday", Ts: time.Now()},
		Label:   model.LabelPositive,
		Score:   0.9,
	}
	return conversation.New(id, m)
}

func TestArchive_WritesFileNamedByFirstSeqID(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, 3, nil)
	c := sampleConversation("c1", 42)

	if err := a.Archive(context.Background(), c); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	path := filepath.Join(dir, "event_42_v2.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected archive file at %s: %v", path, err)
	}
}

func TestArchive_WrittenContentRoundTrips(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, 3, nil)
	c := sampleConversation("c2", 7)

	if err := a.Archive(context.Background(), c); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "event_7_v2.json"))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}

	var got conversation.Conversation
	if err := encjson.Unmarshal(data, &got); err != nil {
		t.Fatalf("archived file is not valid JSON: %v", err)
	}
	if got.ID != "c2" {
		t.Fatalf("round-tripped id = %q, want c2", got.ID)
	}
}

func TestArchive_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, 3, nil)
	c := sampleConversation("c3", 1)

	if err := a.Archive(context.Background(), c); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 file in results dir, got %d", len(entries))
	}
	if entries[0].Name() != "event_1_v2.json" {
		t.Fatalf("unexpected leftover file: %s", entries[0].Name())
	}
}

func TestRun_ArchivesUntilChannelClosed(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, 3, nil)

	ch := make(chan *conversation.Conversation, 2)
	ch <- sampleConversation("c4", 10)
	ch <- sampleConversation("c5", 11)
	close(ch)

	a.Run(context.Background(), ch)

	for _, name := range []string{"event_10_v2.json", "event_11_v2.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}
