// Package metrics wires the daemon's OpenTelemetry instruments: RPC call
// counts, scheduler fire counts and durations. Instrument registration
// mirrors steveyegge-beads' internal/storage/dolt doltMetrics — package
// var struct of typed instruments, populated once via otel.Meter(name) —
// but the daemon owns a single concrete SDK MeterProvider here (a
// stdoutmetric periodic exporter) rather than beads' delegating-global
// pattern, since this repository has no separate telemetry bootstrap
// package to defer to.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/ctomkow/gluetube/daemon"

// Recorder holds the daemon's metric instruments.
type Recorder struct {
	rpcCalls     metric.Int64Counter
	schedulerRun metric.Int64Counter
	runDuration  metric.Float64Histogram
}

// NewRecorder registers the daemon's instruments against the global
// meter provider (a no-op provider until InstallStdoutExporter installs a
// real one).
func NewRecorder() *Recorder {
	m := otel.Meter(meterName)
	r := &Recorder{}
	r.rpcCalls, _ = m.Int64Counter("gluetube.rpc.calls",
		metric.WithDescription("RPC calls dispatched, by method"),
		metric.WithUnit("{call}"),
	)
	r.schedulerRun, _ = m.Int64Counter("gluetube.scheduler.runs",
		metric.WithDescription("Scheduled pipeline fires, by outcome"),
		metric.WithUnit("{run}"),
	)
	r.runDuration, _ = m.Float64Histogram("gluetube.scheduler.run_duration_ms",
		metric.WithDescription("Wall-clock duration of a pipeline run"),
		metric.WithUnit("ms"),
	)
	return r
}

// InstallStdoutExporter wires the global meter provider to periodically
// dump metrics as JSON to the process's standard output, for operators
// without a real collector. logger only receives a one-line notice that
// the exporter is installed. Returns a shutdown func.
func InstallStdoutExporter(logger *slog.Logger) (func(context.Context) error, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(60*time.Second))),
	)
	otel.SetMeterProvider(provider)
	if logger != nil {
		logger.Info("metrics exporter installed", "kind", "stdoutmetric", "interval", "60s")
	}
	return provider.Shutdown, nil
}

// RecordRPC increments the per-method RPC call counter.
func (r *Recorder) RecordRPC(ctx context.Context, method string) {
	if r == nil || r.rpcCalls == nil {
		return
	}
	r.rpcCalls.Add(ctx, 1, metric.WithAttributes(attrMethod(method)))
}

// RecordRun records one scheduler fire's outcome and duration.
func (r *Recorder) RecordRun(ctx context.Context, success bool, d time.Duration) {
	if r == nil {
		return
	}
	if r.schedulerRun != nil {
		r.schedulerRun.Add(ctx, 1, metric.WithAttributes(attrSuccess(success)))
	}
	if r.runDuration != nil {
		r.runDuration.Record(ctx, float64(d.Milliseconds()))
	}
}
