package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PrudhviKosuri/Rival-Scan/internal/cli"
	"github.com/PrudhviKosuri/Rival-Scan/internal/config"
	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
	"github.com/PrudhviKosuri/Rival-Scan/internal/server"
)

// Build-time version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	versionInfo := cli.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
	rootCmd := cli.NewRootCommand(runServer, versionInfo)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cli.GetConfigFilePath())
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if port := cli.GetPortFlag(); port != 0 {
		cfg.Server.Port = port
	}
	if host := cli.GetHostFlag(); host != "" {
		cfg.Server.Host = host
	}

	ctx := context.Background()
	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize server")
	}
	if err := srv.Run(ctx); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Server exited with error")
	}
}
