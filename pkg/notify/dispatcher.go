package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"harvester/pkg/logger"
	"harvester/pkg/metrics"
	"harvester/pkg/models"
	"harvester/pkg/report"
)

// Dispatcher renders a finished run in each configured format and hands
// every payload to the sink. It satisfies runner.Publisher.
type Dispatcher struct {
	sink    Sink
	formats []report.Format
	opts    report.Options
	log     *zap.Logger
}

// NewDispatcher builds a dispatcher. With no formats, a single card is sent.
func NewDispatcher(sink Sink, formats []report.Format, opts report.Options) *Dispatcher {
	if len(formats) == 0 {
		formats = []report.Format{report.FormatCard}
	}
	return &Dispatcher{
		sink:    sink,
		formats: append([]report.Format(nil), formats...),
		opts:    opts,
		log:     logger.Named("notify"),
	}
}

// Publish sends one message per format. Rendering errors are returned;
// delivery failures are only logged and counted.
func (d *Dispatcher) Publish(ctx context.Context, run *models.RunReport) error {
	if d.sink == nil {
		return nil
	}
	if w, ok := d.sink.(*Webhook); ok && !w.Enabled() {
		return nil
	}

	var errs []error
	for _, format := range d.formats {
		payload, err := report.Render(format, run, d.opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("render %s: %w", format, err))
			continue
		}

		delivered := d.sink.Send(ctx, payload)
		metrics.RecordNotification(string(format), delivered)
		if delivered {
			d.log.Info("Report sent", zap.String("format", string(format)))
		} else {
			d.log.Warn("Report not delivered", zap.String("format", string(format)))
		}
	}
	return errors.Join(errs...)
}
