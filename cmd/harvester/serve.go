package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"harvester/pkg/api"
	"harvester/pkg/auth"
	"harvester/pkg/logger"
	tracing "harvester/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve archived run reports over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Named("serve")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Postgres.DSN == "" {
			return errors.New("DB_DSN is required to serve the run archive")
		}

		jwt, err := newJWTService()
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

		b, err := openBackends(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		server, err := api.NewServer(api.Config{
			Port:        cfg.API.Port,
			ServiceName: cfg.Tracing.ServiceName,
			Runs:        b.runs,
			Transcripts: b.transcripts,
			JWT:         jwt,
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			log.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn("Shutdown error", zap.Error(err))
			}
			if err := provider.Shutdown(shutdownCtx); err != nil {
				log.Warn("Tracer shutdown error", zap.Error(err))
			}
			return nil
		})
		return g.Wait()
	},
}

func newJWTService() (*auth.JWTService, error) {
	jwtCfg := auth.DefaultJWTConfig()
	jwtCfg.SecretKey = cfg.API.JWTSecret
	jwtCfg.TokenExpiry = cfg.API.TokenTTL
	return auth.NewJWTService(jwtCfg)
}
