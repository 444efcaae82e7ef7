// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// The clipforge daemon hosts the persistent media job queue: it recovers
// interrupted work from the durable store, runs the processors, and
// serves the HTTP control surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/clipforge/internal/ai"
	"github.com/ManuGH/clipforge/internal/ai/providers/gemini"
	"github.com/ManuGH/clipforge/internal/ai/providers/openaicompat"
	"github.com/ManuGH/clipforge/internal/api"
	"github.com/ManuGH/clipforge/internal/config"
	"github.com/ManuGH/clipforge/internal/fsutil"
	cflog "github.com/ManuGH/clipforge/internal/log"
	"github.com/ManuGH/clipforge/internal/media/ffmpeg"
	"github.com/ManuGH/clipforge/internal/pathsafe"
	"github.com/ManuGH/clipforge/internal/processor"
	"github.com/ManuGH/clipforge/internal/queue"
	"github.com/ManuGH/clipforge/internal/store"
	"github.com/ManuGH/clipforge/internal/telemetry"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clipforge: %v\n", err)
		os.Exit(1)
	}

	cflog.Configure(cflog.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "clipforge",
	})
	logger := cflog.WithComponent("daemon")

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
	logger.Info().Str(cflog.FieldEvent, "shutdown.complete").Msg("daemon stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := cflog.WithComponent("daemon")
	logger.Info().
		Str(cflog.FieldEvent, "startup").
		Str("version", version).
		Str("addr", cfg.ListenAddr).
		Str("staging_dir", cfg.StagingDir).
		Int("max_concurrent", cfg.MaxConcurrent).
		Msg("starting clipforge")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		ServiceName:    "clipforge",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	layout, err := fsutil.InitLayout(cfg.StagingDir)
	if err != nil {
		return fmt.Errorf("init staging layout: %w", err)
	}
	gate, err := pathsafe.NewGate(layout.Root)
	if err != nil {
		return fmt.Errorf("init path gate: %w", err)
	}

	st, err := store.Open(layout.QueueDBPath(), store.DefaultConfig())
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("closing queue store")
		}
	}()

	chain, err := cfg.LoadChain()
	if err != nil {
		return fmt.Errorf("load fallback chain: %w", err)
	}
	engine := ai.NewEngine(gemini.New(""), openaicompat.NewOpenAI(), openaicompat.NewDeepSeek())

	runner := ffmpeg.NewRunner(cfg.FFmpegPath)
	prober := ffmpeg.NewProber(cfg.FFprobePath)

	mgr := queue.NewManager(
		queue.Config{MaxConcurrent: cfg.MaxConcurrent, AutoStart: cfg.AutoStart},
		st,
		fsutil.NewRemover(gate, cfg.SecureErase),
		processor.NewSingleBurn(runner, prober, gate),
		processor.NewMultiExport(runner, gate),
		processor.NewTranscribe(engine, chain, gate, layout),
	)
	if err := mgr.Recover(ctx); err != nil {
		return fmt.Errorf("recover queue: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(mgr).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str(cflog.FieldEvent, "http.listen").Str("addr", cfg.ListenAddr).Msg("control surface up")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str(cflog.FieldEvent, "shutdown.begin").Msg("signal received, draining")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("queue shutdown")
		}
		return nil
	})
	return g.Wait()
}
