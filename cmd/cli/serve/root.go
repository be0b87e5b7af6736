package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"

	"github.com/storacha/cloud-mirror/cmd/cli/flags"
	"github.com/storacha/cloud-mirror/pkg/config"
	"github.com/storacha/cloud-mirror/pkg/fleet"
	"github.com/storacha/cloud-mirror/pkg/health"
	"github.com/storacha/cloud-mirror/pkg/server"
	"github.com/storacha/cloud-mirror/pkg/telemetry"
)

var log = logging.Logger("cmd/serve")

var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cache mirror service",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	cobra.CheckErr(flags.SetupServerFlags(Cmd.Flags()))
	cobra.CheckErr(flags.SetupAWSFlags(Cmd.Flags()))
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	rawCfg, err := config.Load[config.FleetConfig]()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	appCfg, err := rawCfg.ToAppConfig()
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	f, err := fleet.New(ctx, appCfg)
	if err != nil {
		return fmt.Errorf("constructing fleet: %w", err)
	}
	f.Start(ctx)
	defer f.Stop()

	if workDir, err := os.Getwd(); err == nil {
		if err := telemetry.StartHostMetrics(ctx, workDir); err != nil {
			log.Warnf("failed to start host metrics: %s", err)
		}
	}

	checker := health.NewChecker()
	checker.SetReady(true)

	mux, err := server.NewServer(checker, f.Redirect())
	if err != nil {
		return fmt.Errorf("constructing server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", appCfg.Server.Host, appCfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("server stopped: %s", err)
		}
	}()

	<-ctx.Done()
	log.Info("received shutdown signal, beginning graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	log.Info("cloud-mirror stopped successfully")
	return nil
}
