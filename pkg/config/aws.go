package config

import "github.com/storacha/cloud-mirror/pkg/config/app"

// AWSConfig is the raw AWS client configuration shared by every region's
// adapters.
type AWSConfig struct {
	Region             string `mapstructure:"region" validate:"required" flag:"aws-region" toml:"region"`
	Endpoint           string `mapstructure:"endpoint" flag:"aws-endpoint" toml:"endpoint,omitempty"`
	PartSizeMB         int64  `mapstructure:"part_size_mb" toml:"part_size_mb,omitempty"`
	MultipartQueueSize int    `mapstructure:"multipart_queue_size" toml:"multipart_queue_size,omitempty"`
}

func (a AWSConfig) Validate() error {
	return validateConfig(a)
}

func (a AWSConfig) ToAppConfig() app.AWSConfig {
	partSizeMB := a.PartSizeMB
	if partSizeMB <= 0 {
		partSizeMB = 8
	}
	queueSize := a.MultipartQueueSize
	if queueSize <= 0 {
		queueSize = 4
	}
	return app.AWSConfig{
		Region:             a.Region,
		Endpoint:           a.Endpoint,
		PartSize:           partSizeMB * 1024 * 1024,
		MultipartQueueSize: queueSize,
	}
}
