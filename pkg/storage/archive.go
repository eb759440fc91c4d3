package storage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"harvester/pkg/logger"
	"harvester/pkg/metrics"
	"harvester/pkg/models"
)

// Archiver keeps a copy of every finished run. Each backend is optional;
// a nil backend is skipped. It satisfies runner.Publisher.
type Archiver struct {
	Runs        RunStore
	Transcripts TranscriptStore
	Stream      ReportStream

	log *zap.Logger
}

// NewArchiver builds an archiver over the given backends.
func NewArchiver(runs RunStore, transcripts TranscriptStore, stream ReportStream) *Archiver {
	return &Archiver{
		Runs:        runs,
		Transcripts: transcripts,
		Stream:      stream,
		log:         logger.Named("archive"),
	}
}

// Publish uploads the transcript first so the run row can reference it.
// A failing backend does not stop the others.
func (a *Archiver) Publish(ctx context.Context, report *models.RunReport) error {
	var errs []error

	var ref string
	if a.Transcripts != nil && report.Transcript != "" {
		r, err := a.Transcripts.Store(ctx, report.ID.String(), []byte(report.Transcript))
		if err != nil {
			metrics.ArchiveErrors.WithLabelValues("transcript").Inc()
			errs = append(errs, fmt.Errorf("transcript: %w", err))
		} else {
			ref = r
		}
	}

	record := models.NewRunRecord(report, ref)

	if a.Runs != nil {
		if err := a.Runs.SaveRun(ctx, record); err != nil {
			metrics.ArchiveErrors.WithLabelValues("runs").Inc()
			errs = append(errs, fmt.Errorf("runs: %w", err))
		}
	}

	if a.Stream != nil {
		id, err := a.Stream.Publish(ctx, record)
		if err != nil {
			metrics.ArchiveErrors.WithLabelValues("stream").Inc()
			errs = append(errs, fmt.Errorf("stream: %w", err))
		} else {
			a.log.Debug("Run summary published", zap.String("entry_id", id))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	a.log.Info("Run archived", zap.String("run_id", report.ID.String()), zap.String("transcript", ref))
	return nil
}
