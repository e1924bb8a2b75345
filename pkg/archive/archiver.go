// Package archive serialises completed conversations to durable storage:
// one JSON document per conversation, written atomically
// relative to a reader and retried with backoff on failure.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"

	"confluence/pkg/conversation"
	"confluence/pkg/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Archiver writes completed conversations to ResultsDir as
// event_<first_seqid>_v2.json, retrying transient write failures with
// exponential backoff before giving up.
type Archiver struct {
	ResultsDir string
	MaxRetries uint64
	Logger     *slog.Logger
}

// New constructs an Archiver. maxRetries bounds the backoff retry
// attempts; 0 disables retrying beyond the first attempt.
func New(resultsDir string, maxRetries uint64, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{ResultsDir: resultsDir, MaxRetries: maxRetries, Logger: logger}
}

// fileName returns the archive file name for c.
func fileName(c *conversation.Conversation) string {
	return fmt.Sprintf("event_%d_v2.json", c.FirstSeqID())
}

// Archive serialises c and writes it under ResultsDir. Writes are
// idempotent with respect to content: re-archiving the same conversation
// produces the same bytes, since Conversation marshals through a fixed
// struct with a stable field order, not a map.
func (a *Archiver) Archive(ctx context.Context, c *conversation.Conversation) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal conversation %s: %w", c.ID, err)
	}

	path := filepath.Join(a.ResultsDir, fileName(c))

	op := func() error {
		return writeAtomic(path, data)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrStorageFailure, path, err)
	}
	return nil
}

// writeAtomic writes data to path via a temp-file-then-rename sequence, so
// a concurrent reader never observes a partially written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".archive-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Run consumes completed conversations from ch until it is closed or ctx
// is cancelled, archiving each one. Failures after exhausted retries are
// logged and dropped; the pipeline must not halt.
func (a *Archiver) Run(ctx context.Context, ch <-chan *conversation.Conversation) {
	for {
		select {
		case <-ctx.Done():
			a.drain(ctx, ch)
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			a.archiveOne(ctx, c)
		}
	}
}

func (a *Archiver) drain(ctx context.Context, ch <-chan *conversation.Conversation) {
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return
			}
			a.archiveOne(ctx, c)
		default:
			return
		}
	}
}

func (a *Archiver) archiveOne(ctx context.Context, c *conversation.Conversation) {
	if err := a.Archive(ctx, c); err != nil {
		a.Logger.Error("archive: dropping conversation after exhausted retries", "id", c.ID, "error", err)
		return
	}
	a.Logger.Info("archive: wrote conversation", "id", c.ID, "file", fileName(c))
}
