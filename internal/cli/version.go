package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majedsharif/corti-scribe/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scribe %s (%s)\n", version.Version, version.Commit)
		},
	}
}
