package config

import (
	"fmt"

	"github.com/storacha/cloud-mirror/pkg/config/app"
)

// FleetConfig is the root raw configuration, decoded from flags/env/toml
// and validated before being transformed into app.Config.
type FleetConfig struct {
	Server    ServerConfig    `mapstructure:"server" toml:"server"`
	Pools     []PoolConfig    `mapstructure:"pools" validate:"required,min=1,dive" toml:"pools"`
	Queue     QueueConfig     `mapstructure:"queue" toml:"queue"`
	AWS       AWSConfig       `mapstructure:"aws" toml:"aws"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" toml:"telemetry"`
}

func (f FleetConfig) Validate() error {
	return validateConfig(f)
}

func (f FleetConfig) ToAppConfig() (app.Config, error) {
	var out app.Config
	var err error

	out.Server, err = f.Server.ToAppConfig()
	if err != nil {
		return app.Config{}, fmt.Errorf("converting server config: %w", err)
	}

	out.Pools = make([]app.PoolConfig, 0, len(f.Pools))
	seen := make(map[string]struct{}, len(f.Pools))
	for _, p := range f.Pools {
		poolCfg, err := p.ToAppConfig()
		if err != nil {
			return app.Config{}, fmt.Errorf("converting pool %s/%s: %w", p.Service, p.Region, err)
		}
		id := poolCfg.Service + "_" + poolCfg.Region
		if _, dup := seen[id]; dup {
			return app.Config{}, fmt.Errorf("duplicate pool %s", id)
		}
		seen[id] = struct{}{}
		out.Pools = append(out.Pools, poolCfg)
	}

	out.Queue, err = f.Queue.ToAppConfig()
	if err != nil {
		return app.Config{}, fmt.Errorf("converting queue config: %w", err)
	}

	out.AWS = f.AWS.ToAppConfig()
	out.Telemetry = f.Telemetry.ToAppConfig()

	return out, nil
}
