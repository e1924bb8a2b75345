package disentangle

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"confluence/pkg/model"
)

// DefaultCallTimeout bounds a single primary-strategy (LLM) call.
const DefaultCallTimeout = 30 * time.Second

// Disentangler is the sole task consuming ClassifiedMessages and
// emitting StateEvents. It is not safe for concurrent
// use; the pipeline runs exactly one Disentangler instance.
type Disentangler struct {
	window      *Window
	primary     *LLMStrategy
	fallback    *RuleBasedStrategy
	callTimeout time.Duration
	logger      *slog.Logger
}

// New constructs a Disentangler. fallback may be nil only if the
// deployment accepts the primary strategy failing closed (not
// recommended). A zero callTimeout falls back to
// DefaultCallTimeout.
func New(primary *LLMStrategy, fallback *RuleBasedStrategy, callTimeout time.Duration, logger *slog.Logger) *Disentangler {
	if logger == nil {
		logger = slog.Default()
	}
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Disentangler{
		window:      NewWindow(WindowSize),
		primary:     primary,
		fallback:    fallback,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Decide consumes one ClassifiedMessage and returns the StateEvent it
// produces. It always
// returns exactly one event, appending m to the window afterward.
func (d *Disentangler) Decide(ctx context.Context, m model.ClassifiedMessage) model.StateEvent {
	defer d.window.Push(m)

	if d.window.Len() == 0 {
		return createEvent(m)
	}

	option, err := d.retryPrimary(ctx, m)
	if err != nil {
		d.logger.Warn("continuation strategy: primary exhausted, falling back to rule-based",
			"seqid", m.SeqID, "error", err)
		return d.decideByRules(ctx, m)
	}

	option = ClampOption(option, d.window.Len())
	if option == -1 {
		return createEvent(m)
	}

	parent, ok := d.window.At(option)
	if !ok {
		return createEvent(m)
	}
	return model.StateEvent{Kind: model.AddToConversation, Msg: m, Parent: parent}
}

// retryPrimary calls the primary (LLM) strategy, retrying once on a
// transient failure before giving up and letting the caller fall back.
// A non-transient failure (bad credentials, permanently malformed
// request) will not succeed on a second attempt, so it skips the retry
// and falls back immediately.
func (d *Disentangler) retryPrimary(ctx context.Context, m model.ClassifiedMessage) (int, error) {
	window := d.window.Items()

	var option int
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
		defer cancel()
		o, err := d.primary.Option(callCtx, window, m)
		if err != nil {
			if !d.primary.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		option = o
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1)
	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	return option, err
}

func (d *Disentangler) decideByRules(ctx context.Context, m model.ClassifiedMessage) model.StateEvent {
	if d.fallback == nil {
		return createEvent(m)
	}
	matchedID := d.fallback.Continuation(ctx, m)
	if matchedID == "" {
		return createEvent(m)
	}
	// The rule-based strategy scores against conversations directly, not
	// window positions, so it has no Parent message to resolve a SeqIndex
	// lookup from; it hands the Conversation Manager the conversation id
	// it already picked.
	return model.StateEvent{
		Kind:                   model.AddToConversation,
		Msg:                    m,
		ResolvedConversationID: matchedID,
	}
}

func createEvent(m model.ClassifiedMessage) model.StateEvent {
	return model.StateEvent{Kind: model.CreateConversation, Msg: m}
}

// ClampOption normalises a raw continuation option against the current
// window length: any value outside [1, windowLen] collapses to -1 (no
// continuation), guarding against a hallucinated out-of-range option
// from the LLM strategy.
func ClampOption(option, windowLen int) int {
	if option < 1 || option > windowLen {
		return -1
	}
	return option
}
