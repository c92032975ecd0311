package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sergeygrin4/fb-job-parser-service/internal/cli"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()

	if err != nil {
		slog.Error("Fatal error", "error", err)
		if types.IsConfigError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
