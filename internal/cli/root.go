package cli

import (
	"github.com/spf13/cobra"

	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
)

var (
	cfgFile  string
	verbose  bool
	portFlag int
	hostFlag string
)

// NewRootCommand builds the root command for the RivalScan server binary.
// Running without a subcommand starts the server.
func NewRootCommand(runServerFunc func(cmd *cobra.Command, args []string), versionInfo VersionInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rivalscan",
		Short: "RivalScan business entity analysis orchestrator",
		Long: `RivalScan orchestrates specialized analysis agents to build competitive
intelligence reports on business entities: company profiles, financials,
pricing moves, product launches, and market sentiment.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitLogger(verbose)
			if verbose {
				logger.Logger.Debug().Msg("Verbose logging enabled")
			}
			return nil
		},
		Run: runServerFunc,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file (e.g., config/rivalscan.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Listen port (overrides config if set)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Listen host (overrides config if set)")

	rootCmd.AddCommand(NewVersionCommand(versionInfo))
	rootCmd.AddCommand(NewConfigCommand())

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Run the RivalScan orchestration server",
		Run:   runServerFunc,
	}
	rootCmd.AddCommand(serverCmd)

	return rootCmd
}

// GetConfigFilePath returns the --config flag value.
func GetConfigFilePath() string { return cfgFile }

// GetPortFlag returns the --port flag value, zero when unset.
func GetPortFlag() int { return portFlag }

// GetHostFlag returns the --host flag value, empty when unset.
func GetHostFlag() string { return hostFlag }
