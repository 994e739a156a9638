// Package otel bridges the engine's in-process counters to an
// OpenTelemetry meter through observable instruments, so collection cost
// is paid at scrape time rather than on the hot path.
package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	sessionauth "github.com/MrEthical07/sessionauth"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type counterDef struct {
	id   sessionauth.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{sessionauth.MetricSignupSuccess, "sessionauth_signup_success_total", "Accounts created."},
	{sessionauth.MetricSignupDuplicate, "sessionauth_signup_duplicate_total", "Signups rejected for duplicate identifier."},
	{sessionauth.MetricLoginSuccess, "sessionauth_login_success_total", "Successful logins."},
	{sessionauth.MetricLoginFailure, "sessionauth_login_failure_total", "Failed logins."},
	{sessionauth.MetricLoginLocked, "sessionauth_login_locked_total", "Logins refused by the lockout guard."},
	{sessionauth.MetricLoginRateLimited, "sessionauth_login_rate_limited_total", "Logins refused by the IP throttle."},
	{sessionauth.MetricRefreshSuccess, "sessionauth_refresh_success_total", "Successful token rotations."},
	{sessionauth.MetricRefreshFailure, "sessionauth_refresh_failure_total", "Refreshes rejected for invalid tokens."},
	{sessionauth.MetricRefreshReplay, "sessionauth_refresh_replay_total", "Refresh replays detected."},
	{sessionauth.MetricRefreshConflict, "sessionauth_refresh_conflict_total", "Refresh rotations lost to a concurrent winner."},
	{sessionauth.MetricRefreshRateLimited, "sessionauth_refresh_rate_limited_total", "Refreshes refused by the subject throttle."},
	{sessionauth.MetricLogout, "sessionauth_logout_total", "Logouts."},
	{sessionauth.MetricValidateSuccess, "sessionauth_validate_success_total", "Access tokens validated."},
	{sessionauth.MetricValidateFailure, "sessionauth_validate_failure_total", "Access tokens rejected."},
	{sessionauth.MetricPasswordChangeSuccess, "sessionauth_password_change_success_total", "Password changes."},
	{sessionauth.MetricPasswordChangeFailure, "sessionauth_password_change_failure_total", "Password changes rejected."},
}

// Bucket upper bounds matching the engine's validate latency histogram.
var histogramBoundSuffix = [8]string{"5ms", "10ms", "25ms", "50ms", "100ms", "250ms", "500ms", "inf"}

type metricsSource interface {
	MetricsSnapshot() sessionauth.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         sessionauth.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter registers observable instruments for every engine counter and
// the validate latency histogram.
type Exporter struct {
	source         metricsSource
	registration   metric.Registration
	counters       []observedCounter
	latencyBuckets [8]metric.Int64ObservableGauge
	latencyCount   metric.Int64ObservableGauge
	auditDropped   metric.Int64ObservableCounter
}

// NewExporter wires engine counters to meter.
func NewExporter(meter metric.Meter, engine *sessionauth.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource wires any snapshot source to meter.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+len(histogramBoundSuffix)+2)

	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	for i, suffix := range histogramBoundSuffix {
		name := "sessionauth_validate_latency_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative latency bucket count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
		}
		exporter.latencyBuckets[i] = ins
		observables = append(observables, ins)
	}
	latencyCount, err := meter.Int64ObservableGauge(
		"sessionauth_validate_latency_count",
		metric.WithDescription("Latency histogram total sample count."),
	)
	if err != nil {
		return nil, fmt.Errorf("create histogram count gauge: %w", err)
	}
	exporter.latencyCount = latencyCount
	observables = append(observables, latencyCount)

	auditDropped, err := meter.Int64ObservableCounter(
		"sessionauth_audit_dropped_total",
		metric.WithDescription("Audit events dropped by dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}

		buckets := snapshot.Histograms[sessionauth.MetricValidateLatency]
		var cumulative int64
		for i := range exporter.latencyBuckets {
			if i < len(buckets) {
				cumulative += int64(buckets[i])
			}
			observer.ObserveInt64(exporter.latencyBuckets[i], cumulative)
		}
		observer.ObserveInt64(exporter.latencyCount, cumulative)

		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
