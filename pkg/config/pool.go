package config

import (
	"fmt"
	"time"

	"github.com/storacha/cloud-mirror/pkg/cacheentry"
	"github.com/storacha/cloud-mirror/pkg/config/app"
)

// PoolConfig is one {service, region} pool's raw configuration: its
// identity, backing container, and per-pool tuning.
type PoolConfig struct {
	Service string `mapstructure:"service" validate:"required" toml:"service"`
	Region  string `mapstructure:"region" validate:"required" toml:"region"`

	BucketName    string `mapstructure:"bucket" validate:"required" toml:"bucket"`
	PublicURLBase string `mapstructure:"public_url_base" validate:"required,url" toml:"public_url_base"`
	LifespanDays  int    `mapstructure:"lifespan_days" validate:"required,min=1" toml:"lifespan_days"`

	CacheTTL     string `mapstructure:"cache_ttl" toml:"cache_ttl,omitempty"`
	BackendCount int    `mapstructure:"backend_count" toml:"backend_count,omitempty"`
}

func (p PoolConfig) Validate() error {
	return validateConfig(p)
}

func (p PoolConfig) ToAppConfig() (app.PoolConfig, error) {
	if !cacheentry.ValidToken(p.Service) {
		return app.PoolConfig{}, fmt.Errorf("invalid service token %q", p.Service)
	}
	if !cacheentry.ValidToken(p.Region) {
		return app.PoolConfig{}, fmt.Errorf("invalid region token %q", p.Region)
	}

	ttl := time.Hour
	if p.CacheTTL != "" {
		parsed, err := time.ParseDuration(p.CacheTTL)
		if err != nil {
			return app.PoolConfig{}, fmt.Errorf("parsing cache_ttl: %w", err)
		}
		ttl = parsed
	}

	backendCount := p.BackendCount
	if backendCount <= 0 {
		backendCount = 1
	}

	return app.PoolConfig{
		Service:       p.Service,
		Region:        p.Region,
		BucketName:    p.BucketName,
		PublicURLBase: p.PublicURLBase,
		LifespanDays:  p.LifespanDays,
		CacheTTL:      ttl,
		BackendCount:  backendCount,
	}, nil
}
