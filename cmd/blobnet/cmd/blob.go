package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"blobnet/internal/service"

	"github.com/spf13/cobra"
)

var (
	blobTimeout     time.Duration
	blobEncoding    string
	blobRateManager string
)

// blobCmd groups blob commands
var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Fetch and delete individual blobs",
}

var blobGetCmd = &cobra.Command{
	Use:   "get <blob-hash>",
	Short: "Fetch a blob into local storage",
	Long: `Fetch a blob from local storage or the network. With --encoding json
the blob is decoded and printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(ctx context.Context, n *service.Node) error {
			res, err := n.BlobGet(ctx, args[0], service.BlobGetOptions{
				Timeout:     blobTimeout,
				Encoding:    blobEncoding,
				RateManager: blobRateManager,
			})
			if err != nil {
				return err
			}
			if res.Decoded != nil {
				return NewOutputWriter().Write(res.Decoded, nil)
			}
			return NewOutputWriter().Write(res, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, res.Message)
			})
		})
	},
}

var blobDeleteCmd = &cobra.Command{
	Use:   "delete <blob-hash>",
	Short: "Delete a blob from local storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(ctx context.Context, n *service.Node) error {
			msg, err := n.BlobDelete(ctx, args[0])
			if err != nil {
				return err
			}
			return NewOutputWriter().Write(msg, nil)
		})
	},
}

func init() {
	blobGetCmd.Flags().DurationVar(&blobTimeout, "timeout", 0, "fetch timeout (default 30s)")
	blobGetCmd.Flags().StringVar(&blobEncoding, "encoding", "", "decode the blob (json)")
	blobGetCmd.Flags().StringVar(&blobRateManager, "payment-rate-manager", "", "payment policy (only-free)")

	blobCmd.AddCommand(blobGetCmd, blobDeleteCmd)
}
