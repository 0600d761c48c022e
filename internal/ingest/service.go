package ingest

import (
	"context"
	"log/slog"

	"awaves/internal/types"
)

// CacheWarmer refreshes the read-path caches after an ingest run.
type CacheWarmer interface {
	WarmCaches(ctx context.Context) error
}

// Pipeline is one ingest run end to end: write forecasts, project the
// latest records, flag changed saved selections, publish metrics, warm
// the read caches.
type Pipeline struct {
	writer   *Writer
	detector *ChangeDetector
	metrics  *Metrics
	warmer   CacheWarmer
	logger   *slog.Logger
}

// NewPipeline wires the ingest stages together. detector, metrics, and
// warmer may be nil; the corresponding stage is skipped.
func NewPipeline(writer *Writer, detector *ChangeDetector, metrics *Metrics, warmer CacheWarmer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		writer:   writer,
		detector: detector,
		metrics:  metrics,
		warmer:   warmer,
		logger:   logger,
	}
}

// Run processes the batch under inferencePrefix. Only the forecast
// write can fail the run; change detection, metrics, and cache warming
// are best-effort follow-ups.
func (p *Pipeline) Run(ctx context.Context, inferencePrefix string) (types.IngestSummary, error) {
	summary, latest, err := p.writer.Run(ctx, inferencePrefix)
	if err != nil {
		return summary, err
	}

	if p.detector != nil && len(latest) > 0 {
		summary.SavedFlagged = p.detector.Detect(ctx, latest)
	}

	if p.metrics != nil {
		p.metrics.Publish(ctx, summary)
	}

	if p.warmer != nil && summary.Written > 0 {
		if err := p.warmer.WarmCaches(ctx); err != nil {
			p.logger.WarnContext(ctx, "post-ingest cache warm failed", "error", err)
		}
	}

	return summary, nil
}
