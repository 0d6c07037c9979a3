package octoserve

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/coffyg/octoserve"

type serverMetrics struct {
	connections metric.Int64Counter
	responses   metric.Int64Counter
	duration    metric.Float64Histogram
	panics      metric.Int64Counter
	queued      metric.Int64ObservableGauge
}

// newServerMetrics registers the server instruments. Instruments that fail to
// register are replaced by no-ops so serving never depends on metrics.
func newServerMetrics(mp metric.MeterProvider, pool *Pool) *serverMetrics {
	meter := mp.Meter(instrumentationName)
	m := &serverMetrics{}

	var err error
	if m.connections, err = meter.Int64Counter("octoserve.connections",
		metric.WithDescription("Accepted connections."),
		metric.WithUnit("{connection}")); err != nil {
		logger.Warn().Err(err).Msg("[octoserve] failed to create connections counter")
	}
	if m.responses, err = meter.Int64Counter("octoserve.responses",
		metric.WithDescription("Responses written, by outcome."),
		metric.WithUnit("{response}")); err != nil {
		logger.Warn().Err(err).Msg("[octoserve] failed to create responses counter")
	}
	if m.duration, err = meter.Float64Histogram("octoserve.request.duration",
		metric.WithDescription("Time from accept to the last byte flushed."),
		metric.WithUnit("s")); err != nil {
		logger.Warn().Err(err).Msg("[octoserve] failed to create duration histogram")
	}
	if m.panics, err = meter.Int64Counter("octoserve.task.panics",
		metric.WithDescription("Recovered panics in connection tasks."),
		metric.WithUnit("{panic}")); err != nil {
		logger.Warn().Err(err).Msg("[octoserve] failed to create panics counter")
	}
	if m.queued, err = meter.Int64ObservableGauge("octoserve.pool.queued",
		metric.WithDescription("Connections waiting for a worker."),
		metric.WithUnit("{connection}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(pool.Stats().Queued))
			return nil
		})); err != nil {
		logger.Warn().Err(err).Msg("[octoserve] failed to create queue gauge")
	}
	return m
}

func (m *serverMetrics) connectionAccepted(ctx context.Context) {
	if m.connections != nil {
		m.connections.Add(ctx, 1)
	}
}

func (m *serverMetrics) connectionDone(ctx context.Context, c *Ctx) {
	attrs := metric.WithAttributes(attribute.String("outcome", c.Outcome()))
	if m.responses != nil {
		m.responses.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, c.Elapsed().Seconds(), attrs)
	}
}

func (m *serverMetrics) taskPanicked(ctx context.Context) {
	if m.panics != nil {
		m.panics.Add(ctx, 1)
	}
}
