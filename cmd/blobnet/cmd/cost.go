package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"blobnet/internal/service"

	"github.com/spf13/cobra"
)

var costSize int64

// costCmd estimates what a stream costs
var costCmd = &cobra.Command{
	Use:   "cost <uri>",
	Short: "Estimate the cost of a stream",
	Long: `Estimate the data cost and key fee of a stream, in LBC. Pass --size to
skip fetching the stream descriptor.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var size *int64
		if cmd.Flags().Changed("size") {
			size = &costSize
		}
		return withNode(func(ctx context.Context, n *service.Node) error {
			res, err := n.EstimateCost(ctx, args[0], size)
			if err != nil {
				return err
			}
			return NewOutputWriter().Write(res, func(w *tabwriter.Writer) {
				if !res.Found {
					fmt.Fprintf(w, "%s could not be resolved\n", args[0])
					return
				}
				e := res.Estimate
				fmt.Fprintf(w, "Data cost:\t%s\n", e.DataCost)
				fmt.Fprintf(w, "Key fee:\t%s\n", e.FeeCost)
				fmt.Fprintf(w, "Total:\t%s\n", e.Total)
				if e.DataCostUnknown {
					fmt.Fprintln(w, "Stream size unknown; data cost not included.")
				}
			})
		})
	},
}

func init() {
	costCmd.Flags().Int64Var(&costSize, "size", 0, "stream size in bytes, if known")
}
