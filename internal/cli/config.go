package cli

import (
	"github.com/spf13/cobra"

	"github.com/PrudhviKosuri/Rival-Scan/internal/config"
)

// NewConfigCommand builds the config subcommand, which prints the fully
// resolved configuration (file, environment, defaults) as YAML with
// credentials masked.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out, err := cfg.Dump()
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}
}
