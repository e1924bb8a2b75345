package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"confluence/pkg/lifecycle"
	"confluence/pkg/model"
)

// Manager is the sole mutator of Conversation state:
// a single-consumer goroutine over the state-event channel owns the
// conversations map and SeqIndex outright. No other component may read
// or write them directly.
type Manager struct {
	conversations map[string]*Conversation
	seqIndex      map[int]string

	archiveEvery int
	eventCount   int
	evalInterval time.Duration

	evaluator *lifecycle.Evaluator

	// snapshot publishes a read-only, already-copied view of live
	// conversations after every mutation, via an atomic.Pointer, so the
	// rule-based continuation strategy can score against every existing
	// conversation without reaching into this map or taking any lock.
	snapshot atomic.Pointer[[]ConversationSummary]

	logger *slog.Logger
}

// NewManager constructs a Manager. A lifecycle evaluation pass runs
// every archiveEvery applied events; evaluator may be nil only in tests
// that don't exercise lifecycle transitions.
func NewManager(archiveEvery int, evaluator *lifecycle.Evaluator, logger *slog.Logger) *Manager {
	if archiveEvery <= 0 {
		archiveEvery = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		conversations: make(map[string]*Conversation),
		seqIndex:      make(map[int]string),
		archiveEvery:  archiveEvery,
		evalInterval:  DefaultEvalInterval,
		evaluator:     evaluator,
		logger:        logger,
	}
	m.publishSnapshot()
	return m
}

// DefaultEvalInterval is how often a lifecycle pass runs even when no
// events arrive. The every-K-events trigger alone would leave a lone
// conversation suspended forever on a quiet feed; the timer guarantees
// suspension and completion proceed during silence.
const DefaultEvalInterval = 5 * time.Second

// SetEvalInterval overrides the idle lifecycle evaluation period. Must be
// called before Run.
func (m *Manager) SetEvalInterval(d time.Duration) {
	if d > 0 {
		m.evalInterval = d
	}
}

// Snapshot returns the most recently published, immutable view of live
// conversations. Safe to call from any goroutine.
func (m *Manager) Snapshot() []ConversationSummary {
	p := m.snapshot.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (m *Manager) publishSnapshot() {
	summaries := make([]ConversationSummary, 0, len(m.conversations))
	for _, c := range m.conversations {
		summaries = append(summaries, c.Summary())
	}
	m.snapshot.Store(&summaries)
}

// Run consumes StateEvents serially from events until it is closed,
// applying each, triggering a lifecycle pass every archiveEvery events
// and on every idle tick, and forwarding newly completed conversations
// onto archiveCh. fatal is invoked (and Run returns) on a programming
// invariant violation; it must not return until any operator
// notification it performs has completed.
func (m *Manager) Run(ctx context.Context, events <-chan model.StateEvent, archiveCh chan<- *Conversation, fatal func(error)) {
	defer close(archiveCh)
	ticker := time.NewTicker(m.evalInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.drain(events, archiveCh)
			return
		case <-ticker.C:
			m.evaluate(ctx, archiveCh)
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := m.apply(ev); err != nil {
				fatal(err)
				return
			}
			m.eventCount++
			if m.eventCount%m.archiveEvery == 0 {
				m.evaluate(ctx, archiveCh)
			}
		}
	}
}

// drain applies any events already queued before exiting, so shutdown
// never abandons events that were already accepted.
func (m *Manager) drain(events <-chan model.StateEvent, archiveCh chan<- *Conversation) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := m.apply(ev); err != nil {
				m.logger.Error("conversation manager: invariant violation during drain", "error", err)
				return
			}
		default:
			return
		}
	}
}

func (m *Manager) apply(ev model.StateEvent) error {
	var err error
	switch ev.Kind {
	case model.CreateConversation:
		m.create(ev.Msg)
	case model.AddToConversation:
		m.add(ev)
	default:
		err = fmt.Errorf("%w: unknown state event kind %v", model.ErrInvariantViolation, ev.Kind)
	}
	if err == nil {
		m.publishSnapshot()
	}
	return err
}

func (m *Manager) create(msg model.ClassifiedMessage) {
	id := uuid.NewString()
	c := New(id, msg)
	m.conversations[id] = c
	m.seqIndex[msg.SeqID] = id
}

func (m *Manager) add(ev model.StateEvent) {
	id := ev.ResolvedConversationID
	if id == "" {
		id = m.seqIndex[ev.Parent.SeqID]
	}

	c, ok := m.conversations[id]
	if !ok || id == "" {
		// Parent already archived/dropped: degrade to CreateConversation
		// rather than lose the message.
		m.logger.Warn("conversation manager: degrading add to create",
			"seqid", ev.Msg.SeqID,
			"error", fmt.Errorf("%w: parent seqid %d", model.ErrParentNotFound, ev.Parent.SeqID))
		m.create(ev.Msg)
		return
	}

	c.Append(ev.Msg)
	m.seqIndex[ev.Msg.SeqID] = id
}

// evaluate runs one lifecycle pass and forwards every newly completed
// conversation to archiveCh, dropping it from live state.
func (m *Manager) evaluate(ctx context.Context, archiveCh chan<- *Conversation) {
	if m.evaluator == nil || len(m.conversations) == 0 {
		return
	}

	live := make([]lifecycle.Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		live = append(live, c)
	}

	completed := m.evaluator.Evaluate(ctx, live, time.Now().UTC())
	if len(completed) == 0 {
		m.publishSnapshot()
		return
	}

	for _, lc := range completed {
		c := lc.(*Conversation)
		select {
		case archiveCh <- c:
			delete(m.conversations, c.ID)
			for _, line := range c.Lines {
				if m.seqIndex[line.SeqID] == c.ID {
					delete(m.seqIndex, line.SeqID)
				}
			}
		case <-ctx.Done():
			m.publishSnapshot()
			return
		}
	}
	m.publishSnapshot()
}
