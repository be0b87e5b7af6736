package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/storacha/cloud-mirror/cmd/cli/serve"
	"github.com/storacha/cloud-mirror/pkg/build"
	"github.com/storacha/cloud-mirror/pkg/telemetry"
)

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

var log = logging.Logger("cmd")

const shortDescription = `
Cloud Mirror is a read-through caching proxy that mirrors origin URLs into
regional object storage and redirects clients to the cached copy.
`

var (
	cfgFile  string
	logLevel string
	rootCmd  = &cobra.Command{
		Use:     "cloud-mirror",
		Short:   shortDescription,
		Long:    fmt.Sprintf("Cloud Mirror (Version: %s)\n%s", build.Version, shortDescription),
		Version: build.Version,
	}
)

func init() {
	cobra.OnInitialize(initLogging, initConfig, initTelemetry)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "logging level")

	rootCmd.AddCommand(serve.Cmd)
}

func initConfig() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("CLOUD_MIRROR")

	// if we are provided an explicit config file, use it
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		cobra.CheckErr(viper.ReadInConfig())
	} else {
		// otherwise look for cloud-mirror-config.toml in current directory
		viper.SetConfigName("cloud-mirror-config")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		// Don't error if config file is not found - it's optional
		_ = viper.ReadInConfig()
	}
}

func initTelemetry() {
	// bail if this has been disabled.
	if os.Getenv("CLOUD_MIRROR_DISABLE_ANALYTICS") != "" {
		return
	}
	telCfg := telemetry.Config{
		ServiceName:    "cloud-mirror",
		ServiceVersion: build.Version,
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := telemetry.Initialize(ctx, telCfg); err != nil {
		log.Warnf("failed to initialize telemetry: %s", err)
	}
	telemetry.SetupMetrics(ctx)
}

func initLogging() {
	if logLevel != "" {
		ll, err := logging.LevelFromString(logLevel)
		cobra.CheckErr(err)
		logging.SetAllLoggers(ll)
	} else {
		// else set all loggers to error level, then the ones we care most about to info.
		logging.SetAllLoggers(logging.LevelError)
		logging.SetLogLevel("telemetry", "info")
		logging.SetLogLevel("cmd/serve", "info")
		logging.SetLogLevel("server", "info")
		logging.SetLogLevel("fleet", "info")
		logging.SetLogLevel("copyworker", "info")
		logging.SetLogLevel("redirect", "info")
		logging.SetLogLevel("queue", "warn")
		logging.SetLogLevel("metrics", "warn")
	}
}
