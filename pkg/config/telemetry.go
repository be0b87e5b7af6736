package config

import "github.com/storacha/cloud-mirror/pkg/telemetry"

// TelemetryConfig is the raw OTLP export configuration; empty Endpoint
// disables OTLP export (the Prometheus exporter is always on).
type TelemetryConfig struct {
	ServiceName    string            `mapstructure:"service_name" toml:"service_name,omitempty"`
	Environment    string            `mapstructure:"environment" toml:"environment,omitempty"`
	Endpoint       string            `mapstructure:"endpoint" toml:"endpoint,omitempty"`
	Insecure       bool              `mapstructure:"insecure" toml:"insecure,omitempty"`
	Headers        map[string]string `mapstructure:"headers" toml:"headers,omitempty"`
}

func (t TelemetryConfig) Validate() error {
	return validateConfig(t)
}

func (t TelemetryConfig) ToAppConfig() telemetry.Config {
	serviceName := t.ServiceName
	if serviceName == "" {
		serviceName = "cloud-mirror"
	}
	return telemetry.Config{
		ServiceName: serviceName,
		Environment: t.Environment,
		Endpoint:    t.Endpoint,
		Insecure:    t.Insecure,
		Headers:     t.Headers,
	}
}
