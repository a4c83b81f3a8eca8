// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/absmach/fluxdrain/migrate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/absmach/fluxdrain"

var _ migrate.Observer = (*Metrics)(nil)

// Metrics records migration progress as OpenTelemetry instruments.
type Metrics struct {
	meter metric.Meter

	messagesMigrated     metric.Int64Counter
	bytesMigrated        metric.Int64Counter
	destinationsDrained  metric.Int64Counter
	sendDuration         metric.Float64Histogram
	destinationDurations metric.Float64Histogram
}

// NewMetrics creates the instruments on mp, or on the global provider when mp
// is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := &Metrics{meter: mp.Meter(meterName)}

	var err error

	m.messagesMigrated, err = m.meter.Int64Counter(
		"fluxdrain.messages.migrated.total",
		metric.WithDescription("Messages sent to the remote and removed from the source"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesMigrated counter: %w", err)
	}

	m.bytesMigrated, err = m.meter.Int64Counter(
		"fluxdrain.bytes.migrated.total",
		metric.WithDescription("Payload bytes migrated"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bytesMigrated counter: %w", err)
	}

	m.destinationsDrained, err = m.meter.Int64Counter(
		"fluxdrain.destinations.drained.total",
		metric.WithDescription("Destinations fully drained"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create destinationsDrained counter: %w", err)
	}

	m.sendDuration, err = m.meter.Float64Histogram(
		"fluxdrain.send.duration.ms",
		metric.WithDescription("Confirmed send duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sendDuration histogram: %w", err)
	}

	m.destinationDurations, err = m.meter.Float64Histogram(
		"fluxdrain.destination.duration.s",
		metric.WithDescription("Time to drain one destination in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create destinationDurations histogram: %w", err)
	}

	return m, nil
}

// MessageMigrated records one acknowledged transfer.
func (m *Metrics) MessageMigrated(ctx context.Context, destination string, size int, send time.Duration) {
	attrs := metric.WithAttributes(attribute.String("destination", destination))
	m.messagesMigrated.Add(ctx, 1, attrs)
	m.bytesMigrated.Add(ctx, int64(size), attrs)
	m.sendDuration.Record(ctx, float64(send)/float64(time.Millisecond), attrs)
}

// DestinationDrained records a completed destination.
func (m *Metrics) DestinationDrained(ctx context.Context, destination string, migrated int64, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("destination", destination))
	m.destinationsDrained.Add(ctx, 1, attrs)
	m.destinationDurations.Record(ctx, elapsed.Seconds(), attrs)
}
