package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvester/pkg/models"
)

// Needs a live server: TEST_REDIS_ADDR=localhost:6379 go test ./pkg/storage/redis/
func TestReportStream_Publish(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	cfg := DefaultReportStreamConfig(addr)
	cfg.Stream = "harvester:test:" + uuid.NewString()
	stream, err := NewReportStream(cfg)
	require.NoError(t, err)
	defer stream.Close()

	ctx := context.Background()
	defer stream.client.Del(ctx, cfg.Stream)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	record := models.NewRunRecord(&models.RunReport{
		ID:        uuid.New(),
		StartedAt: start,
		EndedAt:   start.Add(time.Second),
		Results:   models.Results{{Name: "gov", Status: models.ResultFailed, ErrorMessage: "boom"}},
	}, "")

	id, err := stream.Publish(ctx, record)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := stream.client.XRange(ctx, cfg.Stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, record.ID.String(), entries[0].Values["run_id"])
	assert.Equal(t, "1", entries[0].Values["failed"])

	var summary models.RunRecord
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &summary))
	assert.Equal(t, record.ID, summary.ID)
	assert.Empty(t, summary.Results)
}

func TestNewReportStreamWithClient_DefaultsStreamKey(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	s := NewReportStreamWithClient(client, "", 0)
	assert.Equal(t, DefaultStreamKey, s.stream)
}
