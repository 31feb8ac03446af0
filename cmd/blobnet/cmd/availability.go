package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"blobnet/internal/domain"
	"blobnet/internal/service"

	"github.com/spf13/cobra"
)

var (
	availSearchTimeout time.Duration
	availBlobTimeout   time.Duration
)

// availabilityCmd diagnoses whether a stream can be downloaded
var availabilityCmd = &cobra.Command{
	Use:     "availability <uri>",
	Aliases: []string{"avail"},
	Short:   "Check whether a stream can be downloaded",
	Long: `Resolve the locator, decode its claim, fetch the stream descriptor and
probe the peers holding the descriptor and the first content blob.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(ctx context.Context, n *service.Node) error {
			res := n.CheckAvailability(ctx, args[0], availSearchTimeout, availBlobTimeout)
			return NewOutputWriter().Write(res, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Available:\t%s\n", yesNo(res.IsAvailable))
				fmt.Fprintf(w, "Resolved:\t%s\n", yesNo(res.DidResolve))
				fmt.Fprintf(w, "Decoded:\t%s\n", yesNo(res.DidDecode))
				fmt.Fprintf(w, "Stream:\t%s\n", yesNo(res.IsStream))
				if res.NumPiecesInStream != nil {
					fmt.Fprintf(w, "Blobs:\t%d\n", *res.NumPiecesInStream)
				}
				writeReport(w, "SD blob", res.DescriptorHash, res.DescriptorAvailability)
				writeReport(w, "Head blob", res.HeadPieceHash, res.HeadPieceAvailability)
				fmt.Fprintf(w, "UPnP:\t%s (redirect set: %s)\n", yesNo(res.UseUPnP), yesNo(res.UPnPRedirectIsSet))
				if res.Error != "" {
					fmt.Fprintf(w, "Error:\t%s\n", res.Error)
				}
			})
		})
	},
}

func writeReport(w *tabwriter.Writer, label, hash string, r *domain.AvailabilityReport) {
	if hash == "" {
		return
	}
	fmt.Fprintf(w, "%s:\t%s\n", label, hash)
	if r == nil {
		return
	}
	fmt.Fprintf(w, "  reachable:\t%s\n", strings.Join(r.ReachablePeers, ", "))
	fmt.Fprintf(w, "  unreachable:\t%s\n", strings.Join(r.UnreachablePeers, ", "))
	if r.Error != "" {
		fmt.Fprintf(w, "  error:\t%s\n", r.Error)
	}
}

func init() {
	availabilityCmd.Flags().DurationVar(&availSearchTimeout, "search-timeout", 0, "peer search timeout (default from config)")
	availabilityCmd.Flags().DurationVar(&availBlobTimeout, "blob-timeout", 0, "per-peer blob timeout (default from config)")
}
