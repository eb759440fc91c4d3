package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FEISHU_BOT_WEBHOOK", "")
	t.Setenv("ETCD_ENDPOINTS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Webhook.URL)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, "card", cfg.Webhook.Formats)
	assert.Equal(t, "Crawler run report", cfg.Report.Title)
	assert.Equal(t, 8, cfg.Report.UTCOffsetHours)
	assert.Equal(t, 100, cfg.Report.TextErrorLimit)
	assert.Equal(t, 50, cfg.Report.PostErrorLimit)
	assert.Equal(t, 2000, cfg.Report.TranscriptLimit)
	assert.True(t, cfg.Report.IncludeTranscript)
	assert.Empty(t, cfg.Etcd.Endpoints)
	assert.Equal(t, "8080", cfg.API.Port)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("FEISHU_BOT_WEBHOOK", "  https://open.feishu.cn/open-apis/bot/v2/hook/abc  ")
	t.Setenv("FEISHU_BOT_FORMATS", "text,post")
	t.Setenv("FEISHU_BOT_TIMEOUT", "3s")
	t.Setenv("REPORT_UTC_OFFSET_HOURS", "0")
	t.Setenv("ETCD_ENDPOINTS", "etcd-0:2379, ,etcd-1:2379")
	t.Setenv("LOG_LEVEL", " DEBUG ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://open.feishu.cn/open-apis/bot/v2/hook/abc", cfg.Webhook.URL)
	assert.Equal(t, "text,post", cfg.Webhook.Formats)
	assert.Equal(t, 3*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, []string{"etcd-0:2379", "etcd-1:2379"}, cfg.Etcd.Endpoints)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "UTC+0", cfg.Report.Location().String())
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("FEISHU_BOT_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestSanitize_ClampsOutOfRange(t *testing.T) {
	cfg := Config{
		Report:  ReportConfig{UTCOffsetHours: 42},
		Tracing: TracingConfig{SampleRate: 3},
		Etcd:    EtcdConfig{LockTTL: -1},
	}
	cfg.Sanitize()

	assert.Equal(t, 8, cfg.Report.UTCOffsetHours)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
	assert.Equal(t, 30, cfg.Etcd.LockTTL)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.API.TokenTTL)
}

func TestReportConfig_Location(t *testing.T) {
	loc := ReportConfig{UTCOffsetHours: 8}.Location()
	ts := time.Date(2025, 3, 1, 0, 30, 0, 0, time.UTC).In(loc)

	assert.Equal(t, "UTC+8", loc.String())
	assert.Equal(t, 8, ts.Hour())
}
