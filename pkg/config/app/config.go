// Package app holds the strongly-typed configuration the Fleet Controller
// and its components are constructed from, as opposed to the raw,
// flag/env/toml-decoded structs in the parent config package.
package app

import "github.com/storacha/cloud-mirror/pkg/telemetry"

// Config is the root configuration the Fleet Controller is built from.
type Config struct {
	Server    ServerConfig
	Pools     []PoolConfig
	Queue     QueueConfig
	AWS       AWSConfig
	Telemetry telemetry.Config
}
