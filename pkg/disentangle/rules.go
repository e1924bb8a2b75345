package disentangle

import (
	"context"
	"regexp"
	"time"

	"confluence/pkg/conversation"
	"confluence/pkg/embedding"
	"confluence/pkg/model"
)

// Rule weights and trigger thresholds.
const (
	weightReply               = 1.0
	weightTimeProximity       = 1.0
	weightSameAuthorProximity = 1.0
	weightSemanticSimilarity  = 0.7

	semanticThreshold       = 0.6
	semanticWindowSecs      = 30
	sameAuthorWindowSecs    = 5
	timeProximityWindowSecs = 30
)

var mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// Snapshot is the read-only view of live conversations the rule-based
// strategy scores against. It is satisfied by a slice of
// conversation.ConversationSummary published by the Conversation
// Manager (see its atomic.Pointer snapshot).
type Snapshot func() []conversation.ConversationSummary

// RuleBasedStrategy implements the fallback continuation classifier:
// four weighted signals scored against every
// live conversation, not just the sliding window.
type RuleBasedStrategy struct {
	snapshot Snapshot
	embedder embedding.Embedder
	cache    map[string]cachedEmbedding
}

// cachedEmbedding pins a cached vector to the conversation state it was
// computed from; lastUpdated changes every time a line is appended, so a
// mismatch means the conversation grew and the vector must be recomputed.
type cachedEmbedding struct {
	lastUpdated time.Time
	vec         []float32
}

// NewRuleBasedStrategy constructs a RuleBasedStrategy. snapshot must
// return the current published set of conversations; embedder may be
// nil, in which case the semantic-similarity signal never fires.
func NewRuleBasedStrategy(snapshot Snapshot, embedder embedding.Embedder) *RuleBasedStrategy {
	return &RuleBasedStrategy{snapshot: snapshot, embedder: embedder}
}

// timeProximityScore is monotonically non-increasing in delta: 1 at
// delta 0, falling linearly to 0 at 30s and beyond.
func timeProximityScore(delta time.Duration) float64 {
	secs := delta.Seconds()
	score := (timeProximityWindowSecs - secs) / timeProximityWindowSecs
	if score < 0 {
		return 0
	}
	return score
}

func mentionsUser(text, user string) bool {
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		if len(m) > 1 && m[1] == user {
			return true
		}
	}
	return false
}

// Continuation scores m against every conversation in the current
// snapshot and returns the winning conversation's ID, or "" if none
// matched (the Disentangler maps "" to CreateConversation).
func (r *RuleBasedStrategy) Continuation(ctx context.Context, m model.ClassifiedMessage) (matchedID string) {
	convs := r.snapshot()
	if len(convs) == 0 {
		return ""
	}

	var msgVec []float32
	if r.embedder != nil {
		if v, err := r.embedder.Embed(ctx, m.Text); err == nil {
			msgVec = v
		}
	}

	var best conversation.ConversationSummary
	bestScore := -1.0
	found := false

	for _, c := range convs {
		delta := m.Ts.Sub(c.LastUpdated)
		if delta < 0 {
			delta = 0
		}

		replyScore := 0.0
		for _, u := range c.Users {
			if mentionsUser(m.Text, u) {
				replyScore = 1.0
				break
			}
		}

		timeScore := timeProximityScore(delta)

		sameAuthor := c.HasUser(m.User) && delta < sameAuthorWindowSecs*time.Second

		semanticSim := 0.0
		if msgVec != nil {
			convVec, ok := r.cachedEmbed(ctx, c)
			if ok {
				semanticSim = embedding.CosineSimilarity(msgVec, convVec)
			}
		}
		semanticMatch := semanticSim > semanticThreshold && delta < semanticWindowSecs*time.Second

		match := replyScore == 1.0 || semanticMatch || sameAuthor
		if !match {
			continue
		}

		total := replyScore*weightReply + timeScore*weightTimeProximity
		if sameAuthor {
			total += weightSameAuthorProximity
		}
		if semanticMatch {
			total += semanticSim * weightSemanticSimilarity
		}

		if !found || total > bestScore || (total == bestScore && c.LastUpdated.After(best.LastUpdated)) {
			best = c
			bestScore = total
			found = true
		}
	}

	if !found {
		return ""
	}
	return best.ID
}

func (r *RuleBasedStrategy) cachedEmbed(ctx context.Context, c conversation.ConversationSummary) ([]float32, bool) {
	if r.cache == nil {
		r.cache = make(map[string]cachedEmbedding)
	}
	if e, ok := r.cache[c.ID]; ok && e.lastUpdated.Equal(c.LastUpdated) {
		return e.vec, true
	}
	v, err := r.embedder.Embed(ctx, c.Text)
	if err != nil {
		return nil, false
	}
	r.cache[c.ID] = cachedEmbedding{lastUpdated: c.LastUpdated, vec: v}
	return v, true
}
