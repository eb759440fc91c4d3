package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"harvester/pkg/capture"
	"harvester/pkg/coordination"
	"harvester/pkg/coordination/etcd"
	"harvester/pkg/logger"
	"harvester/pkg/metrics"
	"harvester/pkg/notify"
	tracing "harvester/pkg/observability"
	"harvester/pkg/report"
	"harvester/pkg/resilience"
	"harvester/pkg/runner"
	"harvester/pkg/sources"
	"harvester/pkg/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every registered source once and send the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runOnce(ctx, cmd)
	},
}

func runOnce(ctx context.Context, cmd *cobra.Command) error {
	log := logger.Named("run")

	formats, err := report.ParseFormats(cfg.Webhook.Formats)
	if err != nil {
		return err
	}

	provider, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
		SamplingRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	if len(cfg.Etcd.Endpoints) > 0 {
		locker, err := etcd.NewLocker(cfg.Etcd.Endpoints, cfg.Etcd.LockKey, cfg.Etcd.LockTTL)
		if err != nil {
			return err
		}
		defer locker.Close()

		unlock, err := locker.TryLock(ctx)
		if errors.Is(err, coordination.ErrLocked) {
			log.Warn("Another run holds the lock, skipping", zap.String("key", cfg.Etcd.LockKey))
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				log.Warn("Failed to release run lock", zap.Error(err))
			}
		}()
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	opts := report.Options{
		Title:             cfg.Report.Title,
		Location:          cfg.Report.Location(),
		TextErrorLimit:    cfg.Report.TextErrorLimit,
		PostErrorLimit:    cfg.Report.PostErrorLimit,
		TranscriptLimit:   cfg.Report.TranscriptLimit,
		IncludeTranscript: cfg.Report.IncludeTranscript,
	}

	webhook := notify.NewWebhook(notify.Config{
		URL:     cfg.Webhook.URL,
		Secret:  cfg.Webhook.Secret,
		Timeout: cfg.Webhook.Timeout,
		Breaker: resilience.DefaultCircuitBreakerConfig(),
	})

	runnerOpts := []runner.Option{
		runner.WithTracer(provider.Tracer()),
		runner.WithPublisher(notify.NewDispatcher(webhook, formats, opts)),
	}
	if b.archiving() {
		runnerOpts = append(runnerOpts, runner.WithPublisher(storage.NewArchiver(b.runs, b.transcripts, b.stream)))
	}

	r := runner.New(capture.New(os.Stdout), runnerOpts...)

	registry, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return err
	}
	if err := registry.Register(r, b.items, opts.Location); err != nil {
		return err
	}

	run, err := r.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.Digest(run.Results, opts.TextErrorLimit))

	if err := metrics.Push(ctx, cfg.PushgatewayURL, "harvester"); err != nil {
		log.Warn("Metrics push failed", zap.Error(err))
	}
	return nil
}
