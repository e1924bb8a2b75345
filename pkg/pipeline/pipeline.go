// Package pipeline wires the six stages into one running process:
// Ingestor -> Calendar Classifier -> Disentangler -> Conversation
// Manager (which drives the Lifecycle Evaluator) -> Archiver. A Builder
// accumulates required collaborators and Build() validates and wires
// them; Run then owns every stage goroutine until shutdown.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"confluence/pkg/archive"
	"confluence/pkg/classifier"
	"confluence/pkg/conversation"
	"confluence/pkg/disentangle"
	"confluence/pkg/ingest"
	"confluence/pkg/model"
	"confluence/pkg/monitor"
	"confluence/pkg/notify"
)

// DefaultChannelBuffer is used when a Builder is not given an explicit
// buffer size.
const DefaultChannelBuffer = 100

// Pipeline owns every stage goroutine and the bounded channels
// connecting them: valid-message, classified-message,
// state-event, archival.
type Pipeline struct {
	ingestor     *ingest.Ingestor
	classifier   classifier.Classifier
	disentangler *disentangle.Disentangler
	manager      *conversation.Manager
	archiver     *archive.Archiver
	mon          monitor.Monitor
	notifySink   notify.Sink
	logger       *slog.Logger

	confidenceThreshold float64

	validMsgCh   chan model.Message
	classifiedCh chan model.ClassifiedMessage
	eventCh      chan model.StateEvent
	archiveCh    chan *conversation.Conversation

	wg sync.WaitGroup
}

// Builder assembles a Pipeline fluently: NewBuilder().With...().Build().
type Builder struct {
	p            *Pipeline
	channelBuf   int
	missingStage string
}

// NewBuilder starts a new Builder.
func NewBuilder() *Builder {
	return &Builder{p: &Pipeline{}, channelBuf: DefaultChannelBuffer}
}

// WithIngestor sets the Ingestor stage. Required.
func (b *Builder) WithIngestor(i *ingest.Ingestor) *Builder {
	b.p.ingestor = i
	return b
}

// WithClassifier sets the Calendar Classifier stage. Required.
func (b *Builder) WithClassifier(c classifier.Classifier) *Builder {
	b.p.classifier = c
	return b
}

// WithDisentangler sets the Disentangler stage. Required.
func (b *Builder) WithDisentangler(d *disentangle.Disentangler) *Builder {
	b.p.disentangler = d
	return b
}

// WithManager sets the Conversation Manager, which also drives the
// Lifecycle Evaluator internally. Required.
func (b *Builder) WithManager(m *conversation.Manager) *Builder {
	b.p.manager = m
	return b
}

// WithArchiver sets the Archiver stage. Required.
func (b *Builder) WithArchiver(a *archive.Archiver) *Builder {
	b.p.archiver = a
	return b
}

// WithMonitor attaches an optional observability sink.
func (b *Builder) WithMonitor(m monitor.Monitor) *Builder {
	b.p.mon = m
	return b
}

// WithNotify attaches an optional operator alert sink.
func (b *Builder) WithNotify(n notify.Sink) *Builder {
	b.p.notifySink = n
	return b
}

// WithConfidenceThreshold configures an optional gate dropping
// positive-labelled messages scoring below threshold before they reach
// the Disentangler; negative-labelled messages are not gated.
// 0 disables the gate, the default.
func (b *Builder) WithConfidenceThreshold(threshold float64) *Builder {
	b.p.confidenceThreshold = threshold
	return b
}

// WithChannelBuffer overrides the bounded capacity shared by all four
// inter-stage channels.
func (b *Builder) WithChannelBuffer(n int) *Builder {
	if n > 0 {
		b.channelBuf = n
	}
	return b
}

// WithLogger sets the structured logger used for pipeline-level
// messages (stage start/stop, fatal shutdown).
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.p.logger = l
	return b
}

// Build validates that every required stage was supplied and allocates
// the inter-stage channels.
func (b *Builder) Build() (*Pipeline, error) {
	switch {
	case b.p.ingestor == nil:
		b.missingStage = "ingestor"
	case b.p.classifier == nil:
		b.missingStage = "classifier"
	case b.p.disentangler == nil:
		b.missingStage = "disentangler"
	case b.p.manager == nil:
		b.missingStage = "conversation manager"
	case b.p.archiver == nil:
		b.missingStage = "archiver"
	}
	if b.missingStage != "" {
		return nil, fmt.Errorf("pipeline: missing required stage: %s", b.missingStage)
	}

	if b.p.logger == nil {
		b.p.logger = slog.Default()
	}
	if b.p.notifySink == nil {
		b.p.notifySink = notify.NoopSink{}
	}

	b.p.validMsgCh = make(chan model.Message, b.channelBuf)
	b.p.classifiedCh = make(chan model.ClassifiedMessage, b.channelBuf)
	b.p.eventCh = make(chan model.StateEvent, b.channelBuf)
	b.p.archiveCh = make(chan *conversation.Conversation, b.channelBuf)

	return b.p, nil
}

// Run starts every stage goroutine and blocks until the pipeline has
// fully drained and stopped: either ctx was cancelled (signal-driven
// shutdown) or the Ingestor returned cleanly (upstream closed the feed).
// It returns a non-nil error only when the run ended abnormally: a
// fatal invariant violation or an Ingestor failure.
func (p *Pipeline) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if p.mon != nil {
		if err := p.mon.Start(); err != nil {
			return fmt.Errorf("pipeline: start monitor: %w", err)
		}
		defer p.mon.Stop()
	}

	fatalCh := make(chan error, 1)
	fatal := func(err error) {
		p.logger.Error("pipeline: invariant violation, shutting down", "error", err)
		p.notifySink.Notify(fmt.Sprintf("confluence: fatal invariant violation, pipeline shutting down: %v", err))
		select {
		case fatalCh <- err:
		default:
		}
		cancel()
	}

	var ingestErr error

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.validMsgCh)
		if err := p.ingestor.Run(runCtx, p.validMsgCh); err != nil {
			ingestErr = err
			p.logger.Error("ingest: stage stopped", "error", err)
		}
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.classifiedCh)
		p.runClassify(runCtx)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(p.eventCh)
		p.runDisentangle(runCtx)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.manager.Run(runCtx, p.eventCh, p.archiveCh, fatal)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.archiver.Run(runCtx, p.archiveCh)
	}()

	doneCh := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-runCtx.Done():
	case <-doneCh:
	}
	<-doneCh

	select {
	case err := <-fatalCh:
		return err
	default:
	}
	return ingestErr
}

func (p *Pipeline) runClassify(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drainClassify(ctx)
			return
		case msg, ok := <-p.validMsgCh:
			if !ok {
				return
			}
			p.classifyOne(ctx, msg)
		}
	}
}

func (p *Pipeline) drainClassify(ctx context.Context) {
	for {
		select {
		case msg, ok := <-p.validMsgCh:
			if !ok {
				return
			}
			p.classifyOne(ctx, msg)
		default:
			return
		}
	}
}

func (p *Pipeline) classifyOne(ctx context.Context, msg model.Message) {
	cm, err := classifier.Classify(ctx, p.classifier, msg)
	if err != nil {
		p.logger.Error("classify: failed, dropping message", "seqid", msg.SeqID, "error", err)
		return
	}

	if p.confidenceThreshold > 0 && cm.IsPositive() && cm.Score < p.confidenceThreshold {
		p.logger.Debug("classify: below confidence threshold, dropping", "seqid", msg.SeqID, "score", cm.Score)
		return
	}

	if p.mon != nil {
		p.mon.OnEvent(monitor.Event{Timestamp: time.Now(), Stage: "classify", Kind: "classified", SeqID: msg.SeqID, Detail: cm.Label})
	}

	select {
	case p.classifiedCh <- cm:
	case <-ctx.Done():
	}
}

func (p *Pipeline) runDisentangle(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drainDisentangle(ctx)
			return
		case cm, ok := <-p.classifiedCh:
			if !ok {
				return
			}
			p.disentangleOne(ctx, cm)
		}
	}
}

func (p *Pipeline) drainDisentangle(ctx context.Context) {
	for {
		select {
		case cm, ok := <-p.classifiedCh:
			if !ok {
				return
			}
			p.disentangleOne(ctx, cm)
		default:
			return
		}
	}
}

func (p *Pipeline) disentangleOne(ctx context.Context, cm model.ClassifiedMessage) {
	ev := p.disentangler.Decide(ctx, cm)

	if p.mon != nil {
		kind := "created"
		if ev.Kind == model.AddToConversation {
			kind = "added"
		}
		p.mon.OnEvent(monitor.Event{Timestamp: time.Now(), Stage: "disentangle", Kind: kind, SeqID: cm.SeqID})
	}

	select {
	case p.eventCh <- ev:
	case <-ctx.Done():
	}
}
