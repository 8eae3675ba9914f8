package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys shared by the payment instruments
const (
	AttrOutcome     = attribute.Key("outcome")
	AttrDestination = attribute.Key("destination")
	AttrPoolState   = attribute.Key("db.pool.state")
)

var (
	// amountBuckets are in the smallest currency unit
	amountBuckets = []int64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}
	// remoteDurationBuckets are in seconds
	remoteDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5}
)

// PaymentMetrics records transfer outcomes, outbound call behaviour and
// notification delivery. It satisfies the recorder interfaces of the transfer
// service, the resilience client and the outbox relay.
type PaymentMetrics struct {
	transfers      metric.Int64Counter
	transferAmount metric.Int64Histogram
	remoteAttempts metric.Int64Counter
	remoteDuration metric.Float64Histogram
	circuitOpen    metric.Int64Counter
	deliveries     metric.Int64Counter
}

// NewPaymentMetrics creates the instruments on meter
func NewPaymentMetrics(meter metric.Meter) (*PaymentMetrics, error) {
	if meter == nil {
		return nil, errors.New("NewPaymentMetrics: meter cannot be nil")
	}

	var (
		m    PaymentMetrics
		errs []error
		err  error
	)
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, cerr := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if cerr != nil {
			errs = append(errs, fmt.Errorf("counter %s: %w", name, cerr))
		}
		return c
	}

	m.transfers = counter("transfers_total", "Transfers by outcome", "{transfer}")
	m.remoteAttempts = counter("remote_call_attempts_total", "Outbound call attempts by destination and outcome", "{attempt}")
	m.circuitOpen = counter("circuit_breaker_open_total", "Calls short-circuited by an open breaker", "{call}")
	m.deliveries = counter("notification_deliveries_total", "Outbox delivery outcomes", "{delivery}")

	m.transferAmount, err = meter.Int64Histogram("transfer_amount",
		metric.WithDescription("Value of completed transfers in the smallest currency unit"),
		metric.WithUnit("{cent}"),
		metric.WithExplicitBucketBoundaries(toFloat(amountBuckets)...),
	)
	if err != nil {
		errs = append(errs, fmt.Errorf("histogram transfer_amount: %w", err))
	}
	m.remoteDuration, err = meter.Float64Histogram("remote_call_duration_seconds",
		metric.WithDescription("Outbound call attempt latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(remoteDurationBuckets...),
	)
	if err != nil {
		errs = append(errs, fmt.Errorf("histogram remote_call_duration_seconds: %w", err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &m, nil
}

func toFloat(in []int64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// RecordTransfer counts a transfer outcome. Amounts are recorded for completed transfers only.
func (m *PaymentMetrics) RecordTransfer(ctx context.Context, outcome string, amount int64) {
	m.transfers.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
	if outcome == "completed" {
		m.transferAmount.Record(ctx, amount)
	}
}

// ObserveAttempt records one outbound attempt
func (m *PaymentMetrics) ObserveAttempt(ctx context.Context, destination, outcome string, d time.Duration) {
	m.remoteAttempts.Add(ctx, 1, metric.WithAttributes(AttrDestination.String(destination), AttrOutcome.String(outcome)))
	m.remoteDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrDestination.String(destination)))
}

// ObserveCircuitOpen counts a call rejected by an open breaker
func (m *PaymentMetrics) ObserveCircuitOpen(ctx context.Context, destination string) {
	m.circuitOpen.Add(ctx, 1, metric.WithAttributes(AttrDestination.String(destination)))
}

// RecordDelivery counts an outbox delivery outcome
func (m *PaymentMetrics) RecordDelivery(ctx context.Context, outcome string) {
	m.deliveries.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}
