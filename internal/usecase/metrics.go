package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "kingsroom-ingest/internal/usecase"

// scrapeMetrics holds the instruments recorded by the scrape pipeline.
// Instruments that fail to register stay nil and are skipped.
type scrapeMetrics struct {
	urlsProcessed metric.Int64Counter
	cacheHits     metric.Int64Counter
	jobDuration   metric.Float64Histogram
	gamesSaved    metric.Int64Counter
	batchesQueued metric.Int64Counter
}

func newScrapeMetrics() *scrapeMetrics {
	meter := otel.Meter(meterName)
	m := &scrapeMetrics{}
	m.urlsProcessed, _ = meter.Int64Counter("scraper.urls.processed",
		metric.WithDescription("Tournament URLs processed by outcome"))
	m.cacheHits, _ = meter.Int64Counter("scraper.cache.hits",
		metric.WithDescription("Fetched pages identical to the stored blob"))
	m.jobDuration, _ = meter.Float64Histogram("scraper.job.duration",
		metric.WithDescription("Scraper job wall time"), metric.WithUnit("s"))
	m.gamesSaved, _ = meter.Int64Counter("games.saved",
		metric.WithDescription("Game save results by action"))
	m.batchesQueued, _ = meter.Int64Counter("games.player_batches.queued",
		metric.WithDescription("Player result batches sent downstream"))
	return m
}

func (m *scrapeMetrics) countURL(ctx context.Context, entityID, outcome string) {
	if m == nil || m.urlsProcessed == nil {
		return
	}
	m.urlsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity_id", entityID),
		attribute.String("outcome", outcome),
	))
}

func (m *scrapeMetrics) countCacheHit(ctx context.Context, entityID string) {
	if m == nil || m.cacheHits == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("entity_id", entityID)))
}

func (m *scrapeMetrics) observeJob(ctx context.Context, entityID, status string, seconds float64) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("entity_id", entityID),
		attribute.String("status", status),
	))
}

func (m *scrapeMetrics) countSave(ctx context.Context, action string) {
	if m == nil || m.gamesSaved == nil {
		return
	}
	m.gamesSaved.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func (m *scrapeMetrics) countBatches(ctx context.Context, n int) {
	if m == nil || m.batchesQueued == nil || n == 0 {
		return
	}
	m.batchesQueued.Add(ctx, int64(n))
}
