package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/storacha/cloud-mirror/pkg/build"
)

// Info is a single-sample metric recording fixed labels (version, commit,
// build date) as attributes on a constant value of 1, following the
// Prometheus "info" metric convention.
type Info struct {
	gauge metric.Float64Gauge
	attrs []attribute.KeyValue
}

type InfoConfig struct {
	Name        string
	Description string
	Labels      map[string]string
}

func NewInfo(meter metric.Meter, cfg InfoConfig) (*Info, error) {
	gauge, err := meter.Float64Gauge(cfg.Name, metric.WithDescription(cfg.Description))
	if err != nil {
		return nil, fmt.Errorf("failed to create info metric %s: %w", cfg.Name, err)
	}

	attrs := make([]attribute.KeyValue, 0, len(cfg.Labels))
	for k, v := range cfg.Labels {
		attrs = append(attrs, attribute.String(k, v))
	}

	return &Info{gauge: gauge, attrs: attrs}, nil
}

// Record emits the constant sample. Call once at startup; info metrics are
// not expected to change value over a process lifetime.
func (i *Info) Record(ctx context.Context, extra ...attribute.KeyValue) {
	allAttrs := append(i.attrs, extra...)
	i.gauge.Record(ctx, 1.0, metric.WithAttributes(allAttrs...))
}

// Update replaces the info metric's labels and re-emits the constant sample
// under the new label set.
func (i *Info) Update(ctx context.Context, labels map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	i.attrs = attrs
	i.Record(ctx)
}

// ConstantGauge reports a value fixed at construction time, for facts that
// don't change during a process lifetime but that dashboards still want as
// a normal time series (e.g. configured capacity).
type ConstantGauge struct {
	gauge metric.Float64Gauge
	attrs []attribute.KeyValue
	value float64
}

type ConstantGaugeConfig struct {
	Name        string
	Description string
	Unit        string
	Value       float64
	Attributes  map[string]string
}

func NewConstantGauge(meter metric.Meter, cfg ConstantGaugeConfig) (*ConstantGauge, error) {
	opts := []metric.Float64GaugeOption{metric.WithDescription(cfg.Description)}
	if cfg.Unit != "" {
		opts = append(opts, metric.WithUnit(cfg.Unit))
	}

	gauge, err := meter.Float64Gauge(cfg.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create constant gauge %s: %w", cfg.Name, err)
	}

	attrs := make([]attribute.KeyValue, 0, len(cfg.Attributes))
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return &ConstantGauge{gauge: gauge, attrs: attrs, value: cfg.Value}, nil
}

// Record re-emits the fixed value; safe to call on every collection tick.
func (g *ConstantGauge) Record(ctx context.Context) {
	g.gauge.Record(ctx, g.value, metric.WithAttributes(g.attrs...))
}

// RecordServerInfo emits a single build/version info sample, tagged with
// the component name (e.g. "redirect-service", "copy-worker").
func RecordServerInfo(ctx context.Context, meter metric.Meter, component string, extraAttrs ...attribute.KeyValue) error {
	allAttrs := append(extraAttrs,
		attribute.String("version", build.Version),
		attribute.String("commit", build.Commit),
		attribute.String("built_by", build.BuiltBy),
		attribute.String("build_date", build.Date),
		attribute.Int64("start_time_unix", time.Now().Unix()),
		attribute.String("component", component),
	)
	info, err := NewInfo(meter, InfoConfig{
		Name:        "cloud_mirror_server_info",
		Description: "Build and runtime information about a Cloud Mirror process",
	})
	if err != nil {
		return err
	}
	info.Record(ctx, allAttrs...)
	return nil
}
