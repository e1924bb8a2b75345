// Package ingest connects to the upstream chat feed and decodes frames
// into Messages: a websocket client dialing a single upstream feed.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"confluence/pkg/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ingestor dials the configured upstream feed and forwards valid
// Messages downstream.
type Ingestor struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// New constructs an Ingestor against the given websocket URL (WS_SOCK).
func New(url string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{url: url, dialer: websocket.DefaultDialer, logger: logger}
}

// Run dials the feed and reads frames until the connection closes or ctx
// is cancelled, decoding each as a Message and sending it on out,
// blocking when out is full (back-pressure to the feed). A clean close
// returns nil; an abrupt close returns a non-nil error. Wrapping Run in
// a reconnect loop is left to the caller, and does not require changing
// any downstream stage.
func (i *Ingestor) Run(ctx context.Context, out chan<- model.Message) error {
	conn, _, err := i.dialer.DialContext(ctx, i.url, nil)
	if err != nil {
		return fmt.Errorf("ingest: dial %s: %w", i.url, err)
	}
	defer conn.Close()

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closed:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return fmt.Errorf("ingest: read: %w", err)
		}

		var m model.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			i.logger.Error("ingest: malformed frame, skipping", "error", fmt.Errorf("%w: %v", model.ErrMalformedFrame, err), "frame", string(raw))
			continue
		}

		select {
		case out <- m:
		case <-ctx.Done():
			return nil
		}
	}
}
