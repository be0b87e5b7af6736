package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/storacha/cloud-mirror/cmd/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	cli.ExecuteContext(ctx)
}
