package main

import (
	"context"
	"io"

	"go.uber.org/zap"

	config "harvester/configs"
	"harvester/pkg/logger"
	"harvester/pkg/storage"
	"harvester/pkg/storage/postgres"
	"harvester/pkg/storage/redis"
)

// backends holds whichever archive stores are configured. Unset fields
// stay nil interfaces so callers can skip them.
type backends struct {
	runs        storage.RunStore
	items       storage.ItemStore
	transcripts storage.TranscriptStore
	stream      storage.ReportStream

	closers []io.Closer
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	log := logger.Named("setup")
	b := &backends{}

	if cfg.Postgres.DSN != "" {
		store, err := postgres.NewPostgresStore(cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		b.runs = store
		b.items = store
		b.closers = append(b.closers, store)
		log.Info("Postgres connected")
	}

	switch {
	case cfg.S3.Bucket != "":
		s3Store, err := storage.NewS3TranscriptStore(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.transcripts = s3Store
		log.Info("Transcripts go to S3", zap.String("bucket", cfg.S3.Bucket))
	case cfg.TranscriptDir != "":
		local, err := storage.NewLocalTranscriptStore(cfg.TranscriptDir)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.transcripts = local
		log.Info("Transcripts go to local disk", zap.String("dir", cfg.TranscriptDir))
	}

	if cfg.Redis.Addr != "" {
		rcfg := redis.DefaultReportStreamConfig(cfg.Redis.Addr)
		rcfg.Password = cfg.Redis.Password
		rcfg.DB = cfg.Redis.DB
		rcfg.Stream = cfg.Redis.Stream
		stream, err := redis.NewReportStream(rcfg)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.stream = stream
		b.closers = append(b.closers, stream)
		log.Info("Redis connected", zap.String("stream", rcfg.Stream))
	}

	return b, nil
}

// archiving reports whether any archive backend is configured.
func (b *backends) archiving() bool {
	return b.runs != nil || b.transcripts != nil || b.stream != nil
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i].Close()
	}
}
