// Package config loads harvester settings from the environment.
//
// Values come from environment variables (see the env tags below), with an
// optional .env file in the working directory loaded first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Log      LogConfig
	Webhook  WebhookConfig  `envPrefix:"FEISHU_"`
	Report   ReportConfig   `envPrefix:"REPORT_"`
	Postgres PostgresConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	S3       S3Config       `envPrefix:"S3_"`
	Etcd     EtcdConfig     `envPrefix:"ETCD_"`
	Tracing  TracingConfig  `envPrefix:"OTEL_"`
	API      APIConfig      `envPrefix:"API_"`

	// TranscriptDir stores transcripts on local disk when S3 is not configured.
	TranscriptDir string `env:"TRANSCRIPT_DIR"`
	// SourcesFile is the YAML registry of collection jobs.
	SourcesFile string `env:"SOURCES_FILE" envDefault:"sources.yaml"`
	// PushgatewayURL receives run metrics after each run.
	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL"    envDefault:"info"`
	Encoding   string `env:"LOG_ENCODING" envDefault:"json"`
	OutputPath string `env:"LOG_OUTPUT"   envDefault:"stderr"`
}

// WebhookConfig configures the bot notifications. An empty URL disables them.
type WebhookConfig struct {
	URL     string        `env:"BOT_WEBHOOK"`
	Secret  string        `env:"BOT_SECRET"`
	Timeout time.Duration `env:"BOT_TIMEOUT" envDefault:"10s"`
	Formats string        `env:"BOT_FORMATS" envDefault:"card"`
}

type ReportConfig struct {
	Title string `env:"TITLE" envDefault:"Crawler run report"`
	// UTCOffsetHours is the display zone for report timestamps.
	UTCOffsetHours    int  `env:"UTC_OFFSET_HOURS"   envDefault:"8"`
	TextErrorLimit    int  `env:"TEXT_ERROR_LIMIT"   envDefault:"100"`
	PostErrorLimit    int  `env:"POST_ERROR_LIMIT"   envDefault:"50"`
	TranscriptLimit   int  `env:"TRANSCRIPT_LIMIT"   envDefault:"2000"`
	IncludeTranscript bool `env:"INCLUDE_TRANSCRIPT" envDefault:"true"`
}

// PostgresConfig holds the run archive DSN. Empty disables the archive.
type PostgresConfig struct {
	DSN string `env:"DSN"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"     envDefault:"0"`
	Stream   string `env:"STREAM" envDefault:"harvester:reports"`
}

type S3Config struct {
	Bucket          string `env:"BUCKET"`
	Prefix          string `env:"PREFIX"   envDefault:"transcripts/"`
	Region          string `env:"REGION"   envDefault:"us-east-1"`
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

// EtcdConfig enables the single-run lock when endpoints are set.
type EtcdConfig struct {
	Endpoints []string `env:"ENDPOINTS" envSeparator:","`
	LockKey   string   `env:"LOCK_KEY"  envDefault:"/harvester/run-lock"`
	LockTTL   int      `env:"LOCK_TTL"  envDefault:"30"`
}

type TracingConfig struct {
	Enabled     bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate  float64 `env:"SAMPLE_RATE" envDefault:"1.0"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"harvester"`
	Environment string  `env:"ENVIRONMENT" envDefault:"development"`
}

type APIConfig struct {
	Port      string        `env:"PORT"       envDefault:"8080"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL"  envDefault:"24h"`
}

// Load reads .env (if present) and the environment, then sanitizes.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return &cfg, nil
}

// Sanitize trims values and replaces out-of-range numbers with defaults.
func (c *Config) Sanitize() {
	c.Webhook.URL = strings.TrimSpace(c.Webhook.URL)
	c.Webhook.Secret = strings.TrimSpace(c.Webhook.Secret)
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = 10 * time.Second
	}

	c.Report.Title = strings.TrimSpace(c.Report.Title)
	if c.Report.UTCOffsetHours < -12 || c.Report.UTCOffsetHours > 14 {
		c.Report.UTCOffsetHours = 8
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))

	endpoints := c.Etcd.Endpoints[:0]
	for _, e := range c.Etcd.Endpoints {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}
	c.Etcd.Endpoints = endpoints
	if c.Etcd.LockTTL <= 0 {
		c.Etcd.LockTTL = 30
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		c.Tracing.SampleRate = 1.0
	}
	if c.API.TokenTTL <= 0 {
		c.API.TokenTTL = 24 * time.Hour
	}
}

// Location returns the report display zone.
func (r ReportConfig) Location() *time.Location {
	offset := r.UTCOffsetHours
	name := fmt.Sprintf("UTC%+d", offset)
	return time.FixedZone(name, offset*60*60)
}
