// Package notify delivers rendered run reports to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"harvester/pkg/logger"
	"harvester/pkg/metrics"
	"harvester/pkg/resilience"
)

// DefaultTimeout bounds a single webhook POST.
const DefaultTimeout = 10 * time.Second

// maxResponseBody caps how much of a webhook reply is read.
const maxResponseBody = 64 << 10

var errRejected = errors.New("webhook rejected message")

// Sink accepts one payload and reports whether it was delivered.
// Implementations never return errors or panic to the caller.
type Sink interface {
	Send(ctx context.Context, payload any) bool
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, payload any) bool

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, payload any) bool {
	if f == nil {
		return false
	}
	return f(ctx, payload)
}

// Config configures a Webhook.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Client  *http.Client
	Breaker resilience.CircuitBreakerConfig
	Logger  *zap.Logger
}

// Webhook posts JSON payloads to a bot endpoint.
type Webhook struct {
	url     string
	secret  string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	log     *zap.Logger
	now     func() time.Time
}

// botReply is the bot API reply. Newer endpoints answer with code, older
// ones with StatusCode; zero means accepted in both.
type botReply struct {
	Code       *int   `json:"code"`
	Msg        string `json:"msg"`
	StatusCode *int   `json:"StatusCode"`
}

func (r botReply) accepted() bool {
	if r.Code != nil {
		return *r.Code == 0
	}
	return r.StatusCode != nil && *r.StatusCode == 0
}

// NewWebhook builds a webhook sink. An empty URL yields a disabled sink whose
// Send returns false without doing any I/O.
func NewWebhook(cfg Config) *Webhook {
	log := cfg.Logger
	if log == nil {
		log = logger.Named("notify")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.FailureThreshold == 0 {
		breakerCfg = resilience.DefaultCircuitBreakerConfig()
	}

	w := &Webhook{
		url:     strings.TrimSpace(cfg.URL),
		secret:  cfg.Secret,
		client:  client,
		breaker: resilience.NewCircuitBreaker("webhook", breakerCfg),
		log:     log,
		now:     time.Now,
	}
	if w.url == "" {
		log.Info("Webhook URL not configured, notifications disabled")
	}
	return w
}

// Enabled reports whether a URL is configured.
func (w *Webhook) Enabled() bool {
	return w.url != ""
}

// Send encodes payload and posts it once. It returns true only for a 2xx
// response whose body reports success.
func (w *Webhook) Send(ctx context.Context, payload any) (delivered bool) {
	if !w.Enabled() {
		return false
	}
	defer func() {
		if v := recover(); v != nil {
			w.log.Error("Webhook send panicked", zap.Any("panic", v))
			delivered = false
		}
	}()

	body, err := w.encode(payload)
	if err != nil {
		w.log.Warn("Failed to encode webhook payload", zap.Error(err))
		return false
	}

	err = w.breaker.Execute(ctx, func() error {
		return w.post(ctx, body)
	})
	switch {
	case err == nil:
		w.log.Debug("Webhook message delivered")
		return true
	case errors.Is(err, resilience.ErrCircuitOpen):
		metrics.BreakerRejections.Inc()
		w.log.Warn("Webhook send skipped, circuit open")
	default:
		w.log.Warn("Webhook send failed", zap.Error(err))
	}
	return false
}

func (w *Webhook) encode(payload any) ([]byte, error) {
	if payload == nil {
		return nil, errors.New("payload is nil")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if w.secret == "" {
		return body, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("signed payload must be a JSON object: %w", err)
	}
	timestamp := strconv.FormatInt(w.now().Unix(), 10)
	sign, err := Sign(timestamp, w.secret)
	if err != nil {
		return nil, err
	}
	fields["timestamp"], _ = json.Marshal(timestamp)
	fields["sign"], _ = json.Marshal(sign)
	return json.Marshal(fields)
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", errRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var reply botReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !reply.accepted() {
		return fmt.Errorf("%w: %s", errRejected, strings.TrimSpace(string(raw)))
	}
	return nil
}

// Sign computes the bot signature for a timestamp (unix seconds): the
// HMAC-SHA256 of an empty message keyed by "timestamp\nsecret", base64
// encoded.
func Sign(timestamp, secret string) (string, error) {
	mac := hmac.New(sha256.New, []byte(timestamp+"\n"+secret))
	if _, err := mac.Write(nil); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
