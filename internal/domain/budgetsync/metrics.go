package budgetsync

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	syncTracer            = otel.Tracer("ynabmirror/sync")
	syncMeter             = otel.Meter("ynabmirror/sync")
	fetchAttempts, _      = syncMeter.Int64Counter("sync.fetch.attempts", metric.WithDescription("Upstream calls made, retries included"))
	collectionTotal, _    = syncMeter.Int64Counter("sync.collection.total", metric.WithDescription("Collections synchronized by status"))
	collectionDuration, _ = syncMeter.Float64Histogram("sync.collection.duration", metric.WithDescription("Fetch and reconcile duration per collection in seconds"), metric.WithUnit("s"))
	rowsUpserted, _       = syncMeter.Int64Counter("sync.rows.upserted", metric.WithDescription("Top-level rows written"))
	runTotal, _           = syncMeter.Int64Counter("sync.run.total", metric.WithDescription("Sync passes by status"))
)
