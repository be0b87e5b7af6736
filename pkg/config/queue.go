package config

import (
	"fmt"
	"time"

	"github.com/storacha/cloud-mirror/pkg/config/app"
)

// QueueConfig is the raw copy-job queue policy shared by every pool.
type QueueConfig struct {
	DeadLetterSuffix  string `mapstructure:"dead_letter_suffix" toml:"dead_letter_suffix,omitempty"`
	MaxReceiveCount   int32  `mapstructure:"max_receive_count" validate:"omitempty,min=1" toml:"max_receive_count,omitempty"`
	BatchSize         int32  `mapstructure:"batch_size" validate:"omitempty,min=1,max=10" toml:"batch_size,omitempty"`
	VisibilityTimeout string `mapstructure:"visibility_timeout" toml:"visibility_timeout,omitempty"`
	WaitTime          string `mapstructure:"wait_time" toml:"wait_time,omitempty"`
	DeadLetterDrain   string `mapstructure:"dead_letter_drain_interval" toml:"dead_letter_drain_interval,omitempty"`
}

func (q QueueConfig) Validate() error {
	return validateConfig(q)
}

func parseDurationOrDefault(raw string, field string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}

func (q QueueConfig) ToAppConfig() (app.QueueConfig, error) {
	visibility, err := parseDurationOrDefault(q.VisibilityTimeout, "visibility_timeout", 30*time.Second)
	if err != nil {
		return app.QueueConfig{}, err
	}
	waitTime, err := parseDurationOrDefault(q.WaitTime, "wait_time", 20*time.Second)
	if err != nil {
		return app.QueueConfig{}, err
	}
	drainInterval, err := parseDurationOrDefault(q.DeadLetterDrain, "dead_letter_drain_interval", 30*time.Second)
	if err != nil {
		return app.QueueConfig{}, err
	}

	suffix := q.DeadLetterSuffix
	if suffix == "" {
		suffix = "-dlq"
	}
	maxReceive := q.MaxReceiveCount
	if maxReceive <= 0 {
		maxReceive = 5
	}
	batchSize := q.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	return app.QueueConfig{
		DeadLetterSuffix:        suffix,
		MaxReceiveCount:         maxReceive,
		BatchSize:               batchSize,
		VisibilityTimeout:       visibility,
		WaitTime:                waitTime,
		DeadLetterDrainInterval: drainInterval,
	}, nil
}
