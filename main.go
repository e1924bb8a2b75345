package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"confluence/pkg/archive"
	"confluence/pkg/classifier"
	"confluence/pkg/config"
	"confluence/pkg/conversation"
	"confluence/pkg/disentangle"
	"confluence/pkg/embedding"
	"confluence/pkg/ingest"
	"confluence/pkg/lifecycle"
	"confluence/pkg/llmservice"
	_ "confluence/pkg/llmservice/gemini" // auto-register provider
	_ "confluence/pkg/llmservice/ollama" // auto-register provider
	_ "confluence/pkg/llmservice/openai" // auto-register provider
	"confluence/pkg/model"
	"confluence/pkg/monitor"
	"confluence/pkg/notify"
	"confluence/pkg/pipeline"
)

// Exit codes. Ordinary termination (signal-driven shutdown, clean
// upstream close) is 0; everything else is distinguished so an operator
// or supervisor can tell a configuration mistake from an external
// dependency failure from a programming invariant violation.
const (
	exitOK = iota
	exitConfigError
	exitIngestFailure
	exitFatalInvariant
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sysCfg := config.LoadSystemConfig("system.json")
	monitor.SetupEnvironment(sysCfg.LogLevel)
	monitor.PrintBanner()

	reloadCh := config.WatchSystemConfig(ctx, "system.json")

	for {
		code, restart := runOnce(ctx, reloadCh)
		if !restart {
			return code
		}
		select {
		case <-ctx.Done():
			return exitOK
		default:
			slog.Info("==== system configuration reloaded, restarting pipeline ====")
		}
	}
}

// runOnce builds and runs one instance of the pipeline to completion. It
// returns (exit code, restart); restart is true only when a
// configuration reload stopped the pipeline cleanly and the outer loop
// should rebuild and run again.
func runOnce(ctx context.Context, reloadCh <-chan struct{}) (int, bool) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		return exitConfigError, false
	}
	sysCfg := config.LoadSystemConfig("system.json")
	monitor.SetupSlog(sysCfg.LogLevel)

	llmClient, err := llmservice.New(llmservice.ProviderConfig{
		Type:    cfg.LLMProvider,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		BaseURL: cfg.LLMBaseURL,
	})
	if err != nil {
		slog.Error("failed to init LLM client", "error", err)
		return exitConfigError, false
	}

	httpTimeout := time.Duration(sysCfg.HTTPTimeoutMs) * time.Millisecond
	llmTimeout := time.Duration(sysCfg.LLMTimeoutMs) * time.Millisecond

	classifierClient := classifier.NewHTTPClassifier(cfg.ClassifierURL, httpTimeout)
	embedder := embedding.NewHTTPEmbedder(cfg.EmbeddingURL, httpTimeout)

	ingestor := ingest.New(cfg.WSSock, slog.Default())

	llmStrategy := disentangle.NewLLMStrategy(llmClient)

	// mgr is assigned below; the rule-based strategy's snapshot closure
	// captures the variable, not its (not-yet-set) value, so this
	// ordering is safe: Continuation is never called before Build/Run.
	var mgr *conversation.Manager
	ruleStrategy := disentangle.NewRuleBasedStrategy(func() []conversation.ConversationSummary {
		if mgr == nil {
			return nil
		}
		return mgr.Snapshot()
	}, embedder)

	disentangler := disentangle.New(llmStrategy, ruleStrategy, llmTimeout, slog.Default())

	extractor := llmservice.NewDatetimeExtractor(llmClient)
	evaluator := lifecycle.New(cfg.SuspendAfter, cfg.CompletionGrace, llmTimeout, extractor, slog.Default())

	mgr = conversation.NewManager(cfg.ArchiveEvery, evaluator, slog.Default())

	archiver := archive.New(cfg.ResultsDir, uint64(sysCfg.MaxRetries), slog.Default())

	var notifySink notify.Sink = notify.NoopSink{}
	if cfg.NotifyTelegramToken != "" && cfg.NotifyTelegramChatID != 0 {
		sink, err := notify.NewTelegramSink(cfg.NotifyTelegramToken, cfg.NotifyTelegramChatID, slog.Default())
		if err != nil {
			slog.Warn("notify: failed to init telegram sink, alerts disabled", "error", err)
		} else {
			notifySink = sink
		}
	}

	m := monitor.NewCLIMonitor()

	pl, err := pipeline.NewBuilder().
		WithIngestor(ingestor).
		WithClassifier(classifierClient).
		WithDisentangler(disentangler).
		WithManager(mgr).
		WithArchiver(archiver).
		WithMonitor(m).
		WithNotify(notifySink).
		WithConfidenceThreshold(cfg.ConfidenceThreshold).
		WithChannelBuffer(sysCfg.ChannelBuffer).
		WithLogger(slog.Default()).
		Build()
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		return exitConfigError, false
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var reloaded atomic.Bool
	go func() {
		select {
		case <-ctx.Done():
		case <-reloadCh:
			slog.Info("configuration change detected, stopping pipeline for restart")
			reloaded.Store(true)
			cancel()
		}
	}()

	slog.Info("pipeline starting", "feed", cfg.WSSock, "results_dir", cfg.ResultsDir)
	if err := pl.Run(runCtx); err != nil {
		select {
		case <-ctx.Done():
			return exitOK, false
		default:
		}
		if errors.Is(err, model.ErrInvariantViolation) {
			slog.Error("pipeline halted on invariant violation", "error", err)
			return exitFatalInvariant, false
		}
		slog.Error("pipeline halted on ingest failure", "error", err)
		return exitIngestFailure, false
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, exiting")
		return exitOK, false
	default:
	}
	if reloaded.Load() {
		// runCtx was cancelled by a config reload, not the outer ctx.
		return exitOK, true
	}
	slog.Info("upstream feed closed, exiting")
	return exitOK, false
}
