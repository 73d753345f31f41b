// Package main provides the okrctl command.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	entrypoint "github.com/louisbranch/okrengine/internal/platform/cmd"
	"github.com/louisbranch/okrengine/internal/platform/config"
	"github.com/louisbranch/okrengine/internal/services/okr/app"
	"github.com/louisbranch/okrengine/internal/tools/okrctl"
)

func main() {
	log.SetPrefix("[OKR] ")

	cfg, err := app.LoadConfig()
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceOKRCtl, func(ctx context.Context) error {
		return okrctl.Execute(ctx, okrctl.Options{
			Open: okrctl.OpenFromConfig(cfg),
			Out:  os.Stdout,
			Err:  os.Stderr,
		}, os.Args[1:])
	})
	if err != nil {
		config.Exitf("Error: %v", err)
	}
}
