package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/vipclub/internal/buildinfo"
	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/dmitrijs2005/vipclub/internal/server"
	"github.com/dmitrijs2005/vipclub/internal/server/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	logger := logging.NewForEnv(cfg.Env, os.Stdout)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	err = app.Run(ctx)
	app.Close()
	if err != nil {
		logger.Error(ctx, "server stopped with error", "error", err)
		os.Exit(1)
	}
}
