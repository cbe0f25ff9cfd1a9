package telemetry

import (
	"context"
	"time"

	"github.com/joeycumines/behavior-engine/internal/scheduler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/joeycumines/behavior-engine/internal/telemetry"

// Span, metric and attribute names.
const (
	SpanTick = "bte.tick"

	MetricTicks        = "bte.ticks"
	MetricFaults       = "bte.faults"
	MetricTickDuration = "bte.tick.duration"

	AttrTree   = "bte.tree"
	AttrRunID  = "bte.run_id"
	AttrTick   = "bte.tick"
	AttrStatus = "bte.status"
)

// Observer is a scheduler.Observer that records every root tick.
type Observer struct {
	tracer   trace.Tracer
	ticks    metric.Int64Counter
	faults   metric.Int64Counter
	duration metric.Float64Histogram
	now      func() time.Time
}

var _ scheduler.Observer = (*Observer)(nil)

// NewObserver creates the instruments. Nil providers mean the global ones.
func NewObserver(tp trace.TracerProvider, mp metric.MeterProvider) (*Observer, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentation)

	ticks, err := meter.Int64Counter(MetricTicks,
		metric.WithDescription("Root ticks by tree and resulting status"),
	)
	if err != nil {
		return nil, err
	}
	faults, err := meter.Int64Counter(MetricFaults,
		metric.WithDescription("Root ticks that ended in a runtime fault"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(MetricTickDuration,
		metric.WithDescription("Wall time of a root tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &Observer{
		tracer:   tp.Tracer(instrumentation),
		ticks:    ticks,
		faults:   faults,
		duration: duration,
		now:      time.Now,
	}, nil
}

// ObserveTick implements scheduler.Observer.
func (o *Observer) ObserveTick(ctx context.Context, info scheduler.TickInfo) {
	if o == nil {
		return
	}
	end := o.now()
	tree := attribute.String(AttrTree, info.Tree)
	status := attribute.String(AttrStatus, info.Status.String())

	_, span := o.tracer.Start(ctx, SpanTick,
		trace.WithTimestamp(end.Add(-info.Duration)),
		trace.WithAttributes(
			tree,
			status,
			attribute.String(AttrRunID, info.RunID),
			attribute.Int64(AttrTick, int64(info.Tick)),
		),
	)
	if info.Err != nil {
		span.RecordError(info.Err)
		span.SetStatus(codes.Error, info.Err.Error())
		o.faults.Add(ctx, 1, metric.WithAttributes(tree))
	}
	span.End(trace.WithTimestamp(end))

	o.ticks.Add(ctx, 1, metric.WithAttributes(tree, status))
	o.duration.Record(ctx, float64(info.Duration)/float64(time.Millisecond), metric.WithAttributes(tree))
}
