// Package otel provides OpenTelemetry setup, metrics, spans, and HTTP middleware.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "reverb"

// Metrics holds all Reverb metric instruments.
type Metrics struct {
	EventsRecorded metric.Int64Counter
	RecordFailures metric.Int64Counter
	Replays        metric.Int64Counter
	ReplayDuration metric.Float64Histogram
	ReplayCost     metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EventsRecorded, err = meter.Int64Counter("reverb.events.recorded",
		metric.WithDescription("Number of events persisted to the store"))
	if err != nil {
		return nil, err
	}

	m.RecordFailures, err = meter.Int64Counter("reverb.events.record_failures",
		metric.WithDescription("Number of failed event save attempts"))
	if err != nil {
		return nil, err
	}

	m.Replays, err = meter.Int64Counter("reverb.replays",
		metric.WithDescription("Number of session replays performed"))
	if err != nil {
		return nil, err
	}

	m.ReplayDuration, err = meter.Float64Histogram("reverb.replay.duration_seconds",
		metric.WithDescription("Replay fold duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.ReplayCost, err = meter.Float64Histogram("reverb.replay.cost_usd",
		metric.WithDescription("Original session cost observed by replays in USD"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
