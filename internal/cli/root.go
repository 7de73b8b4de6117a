// Package cli implements the scribe command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/majedsharif/corti-scribe/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	log *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scribe",
		Short: "scribe: browser-to-Corti clinical transcription gateway",
		Long: "scribe relays browser microphone audio to the Corti streaming API and relays\n" +
			"live transcripts and extracted clinical facts back, with on-demand document\n" +
			"generation from the accumulated facts.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level, "pretty")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "scribe.yaml", "config file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStreamCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
