package cmd

import (
	"fmt"
	"text/tabwriter"

	"blobnet/internal/version"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		return NewOutputWriter().Write(info, func(w *tabwriter.Writer) {
			fmt.Fprintf(w, "blobnet version %s\n", info.String())
			fmt.Fprintln(w, info.Full())
		})
	},
}
