// Package runner executes registered collection jobs one after another,
// isolating each job's failures and accounting for what it produced.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"harvester/pkg/capture"
	"harvester/pkg/logger"
	"harvester/pkg/metrics"
	"harvester/pkg/models"
)

// ErrInvalidJob is returned by Register for unusable registrations.
var ErrInvalidJob = errors.New("invalid job registration")

// Publisher consumes a finished run report, e.g. to notify or archive it.
type Publisher interface {
	Publish(ctx context.Context, report *models.RunReport) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, report *models.RunReport) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, report *models.RunReport) error {
	if f == nil {
		return nil
	}
	return f(ctx, report)
}

// Job is one registered unit of work.
type Job struct {
	Name     string
	Contract Contract
	Target   string
}

// Runner owns the ordered job registry.
type Runner struct {
	capture    *capture.Capture
	publishers []Publisher
	log        *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time

	jobs []Job
}

// Option configures a Runner.
type Option func(*Runner)

// WithPublisher appends a publisher that receives every run report.
func WithPublisher(p Publisher) Option {
	return func(r *Runner) {
		if p != nil {
			r.publishers = append(r.publishers, p)
		}
	}
}

// WithLogger sets the diagnostic logger. Diagnostics are separate from the
// progress lines written to the transcript.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithTracer sets the tracer used for run and job spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a runner that records its transcript through c.
func New(c *capture.Capture, opts ...Option) *Runner {
	if c == nil {
		c = capture.New(nil)
	}
	r := &Runner{
		capture: c,
		log:     logger.Named("runner"),
		tracer:  noop.NewTracerProvider().Tracer("harvester/runner"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends a job. Registering the same name twice creates two
// independent entries.
func (r *Runner) Register(name string, c Contract, target string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidJob)
	}
	if c == nil {
		return fmt.Errorf("%w: job %q has no contract", ErrInvalidJob, name)
	}
	r.jobs = append(r.jobs, Job{Name: name, Contract: c, Target: strings.TrimSpace(target)})
	r.log.Debug("registered job", zap.String("job", name), zap.String("target", target))
	return nil
}

// Jobs returns a copy of the registry in registration order.
func (r *Runner) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// RunAll executes every registered job once and returns the results in
// registration order.
func (r *Runner) RunAll(ctx context.Context) (models.Results, error) {
	report, err := r.Run(ctx)
	if err != nil {
		return nil, err
	}
	return report.Results, nil
}

// Run executes every registered job once, publishes the report and returns
// it. Job failures never surface as errors; only a failure to build the
// report does.
func (r *Runner) Run(ctx context.Context) (*models.RunReport, error) {
	ctx, span := r.tracer.Start(ctx, "run", trace.WithAttributes(attribute.Int("jobs", len(r.jobs))))
	defer span.End()

	report, err := r.execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	summary := models.Summarize(report)
	metrics.RecordRun(summary.HasFailures(), summary.Duration.Seconds())
	span.SetAttributes(
		attribute.String("run.id", report.ID.String()),
		attribute.Int("run.failed", summary.Failed),
	)

	r.publish(ctx, report)
	return report, nil
}

func (r *Runner) execute(ctx context.Context) (*models.RunReport, error) {
	startedAt := r.now()
	out := r.capture.Begin()
	ended := false
	defer func() {
		if !ended {
			r.capture.End()
		}
	}()

	progress := logger.NewConsole(out)
	progress.Info("run started", zap.Int("jobs", len(r.jobs)))

	results := make(models.Results, 0, len(r.jobs))
	for _, job := range r.jobs {
		results = append(results, r.runJob(ctx, job, out, progress))
	}

	endedAt := r.now()
	summary := models.Summarize(&models.RunReport{StartedAt: startedAt, EndedAt: endedAt, Results: results})
	progress.Info("run finished",
		zap.Int("jobs", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("found", summary.TotalFound),
		zap.Int("persisted", summary.TotalPersisted),
		zap.Duration("elapsed", summary.Duration),
	)
	_ = progress.Sync()

	transcript := r.capture.End()
	ended = true
	if cerr := r.capture.Err(); cerr != nil {
		r.log.Warn("console write failed during run", zap.Error(cerr))
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate run id: %w", err)
	}

	return &models.RunReport{
		ID:         id,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
		Results:    results,
		Transcript: transcript,
	}, nil
}

func (r *Runner) runJob(ctx context.Context, job Job, out io.Writer, progress *zap.Logger) models.JobResult {
	jobCtx, span := r.tracer.Start(ctx, "job "+job.Name, trace.WithAttributes(
		attribute.String("job.name", job.Name),
		attribute.String("job.target", job.Target),
	))
	defer span.End()

	progress.Info("job started", zap.String("job", job.Name), zap.String("target", job.Target))

	start := r.now()
	outcome := Supervise(jobCtx, job.Contract, out)
	completedAt := r.now()

	result := models.JobResult{
		Name:        job.Name,
		Elapsed:     completedAt.Sub(start),
		CompletedAt: completedAt,
		Target:      job.Target,
	}
	if result.Elapsed < 0 {
		result.Elapsed = 0
	}

	if outcome.Failed() {
		result.Status = models.ResultFailed
		result.ErrorMessage = errorMessage(outcome.Err)
		span.RecordError(errors.New(result.ErrorMessage))
		span.SetStatus(codes.Error, result.ErrorMessage)
		progress.Error("job failed",
			zap.String("job", job.Name),
			zap.String("error", result.ErrorMessage),
			zap.Duration("elapsed", result.Elapsed),
		)
		if outcome.Stack != nil {
			r.log.Error("job panicked", zap.String("job", job.Name), zap.ByteString("stack", outcome.Stack))
		}
	} else {
		result.Status = models.ResultSucceeded
		result.FoundCount = outcome.Found
		result.PersistedCount = outcome.Persisted
		span.SetAttributes(
			attribute.Int("job.found", result.FoundCount),
			attribute.Int("job.persisted", result.PersistedCount),
		)
		progress.Info("job succeeded",
			zap.String("job", job.Name),
			zap.Int("found", result.FoundCount),
			zap.Int("persisted", result.PersistedCount),
			zap.Duration("elapsed", result.Elapsed),
		)
	}

	metrics.RecordJob(job.Name, string(result.Status), result.Elapsed.Seconds(), result.FoundCount, result.PersistedCount)
	return result
}

// errorMessage keeps the full error text. An error whose text is empty,
// or whose Error method itself panics, still has to mark the result
// failed, so it falls back to the error's type.
func errorMessage(err error) (msg string) {
	defer func() {
		if recover() != nil {
			msg = fmt.Sprintf("%T", err)
		}
	}()
	msg = err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = fmt.Sprintf("%T", err)
	}
	return msg
}

// publish hands each publisher its own copy of the report so nothing
// downstream can rewrite the recorded results.
func (r *Runner) publish(ctx context.Context, report *models.RunReport) {
	for _, p := range r.publishers {
		snapshot := *report
		snapshot.Results = append(models.Results(nil), report.Results...)
		if err := safePublish(ctx, p, &snapshot); err != nil {
			r.log.Error("failed to publish run report",
				zap.String("run_id", report.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func safePublish(ctx context.Context, p Publisher, report *models.RunReport) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return p.Publish(ctx, report)
}
