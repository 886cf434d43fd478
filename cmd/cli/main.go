package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/vipclub/internal/buildinfo"
	"github.com/dmitrijs2005/vipclub/internal/client/cli"
	"github.com/dmitrijs2005/vipclub/internal/client/config"
	"github.com/dmitrijs2005/vipclub/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()
	logger := logging.NewForEnv(logging.EnvLocal, os.Stderr)

	app, err := cli.NewApp(cfg, os.Stdin, os.Stdout, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
