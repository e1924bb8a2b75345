// Package disentangle decides, for each classified message, whether it
// continues an existing conversation or opens a new one.
package disentangle

import "confluence/pkg/model"

// WindowSize is N, the number of most-recently-seen ClassifiedMessages
// retained for the LLM continuation strategy.
const WindowSize = 6

// Window is a fixed-capacity, array-backed ring buffer of the N
// most-recently-seen ClassifiedMessages, owned exclusively by the
// Disentangler task.
type Window struct {
	entries []model.ClassifiedMessage
	head    int
	count   int
}

// NewWindow constructs an empty Window of the given capacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = WindowSize
	}
	return &Window{entries: make([]model.ClassifiedMessage, capacity)}
}

// Len reports how many messages are currently in the window.
func (w *Window) Len() int {
	return w.count
}

// Items returns the window's contents in insertion order (oldest first),
// the same order the LLM strategy enumerates as options 1..|window|.
func (w *Window) Items() []model.ClassifiedMessage {
	out := make([]model.ClassifiedMessage, w.count)
	bufLen := len(w.entries)
	start := (w.head - w.count + bufLen) % bufLen
	for i := 0; i < w.count; i++ {
		out[i] = w.entries[(start+i)%bufLen]
	}
	return out
}

// At returns the 1-based indexed item, matching the LLM strategy's
// option numbering. ok is false for an out-of-range index.
func (w *Window) At(option int) (model.ClassifiedMessage, bool) {
	if option < 1 || option > w.count {
		return model.ClassifiedMessage{}, false
	}
	items := w.Items()
	return items[option-1], true
}

// Push appends a message, evicting the oldest entry once the window is
// at capacity.
func (w *Window) Push(m model.ClassifiedMessage) {
	bufLen := len(w.entries)
	w.entries[w.head] = m
	w.head = (w.head + 1) % bufLen
	if w.count < bufLen {
		w.count++
	}
}
