package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"harvester/pkg/models"
)

const (
	DefaultStreamKey = "harvester:reports"
	// DefaultMaxLen bounds the stream; older entries are trimmed approximately.
	DefaultMaxLen = 1000
)

// ReportStream appends run summaries to a Redis stream.
type ReportStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// ReportStreamConfig holds Redis connection configuration
type ReportStreamConfig struct {
	Addr         string
	Password     string
	DB           int
	Stream       string
	MaxLen       int64
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultReportStreamConfig returns defaults suited to one write per run.
func DefaultReportStreamConfig(addr string) ReportStreamConfig {
	return ReportStreamConfig{
		Addr:         addr,
		Stream:       DefaultStreamKey,
		MaxLen:       DefaultMaxLen,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewReportStream connects and pings Redis.
func NewReportStream(cfg ReportStreamConfig) (*ReportStream, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewReportStreamWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewReportStreamWithClient wraps an existing client.
func NewReportStreamWithClient(client *redis.Client, stream string, maxLen int64) *ReportStream {
	if stream == "" {
		stream = DefaultStreamKey
	}
	return &ReportStream{client: client, stream: stream, maxLen: maxLen}
}

func (r *ReportStream) Close() error {
	return r.client.Close()
}

// Publish XADDs the run summary and returns the entry ID.
func (r *ReportStream) Publish(ctx context.Context, run *models.RunRecord) (string, error) {
	summary := *run
	summary.Results = nil
	payload, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run summary: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"run_id":  run.ID.String(),
			"failed":  strconv.Itoa(run.Failed),
			"payload": payload,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish run summary: %w", err)
	}
	return id, nil
}
