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
	getTimeout  time.Duration
	getFileName string
)

// getCmd downloads a stream
var getCmd = &cobra.Command{
	Use:   "get <uri>",
	Short: "Download a stream",
	Long: `Resolve a locator such as lbry://name or lbry://name#claimid and
download its stream into the download directory. A stream already on disk is
returned without downloading it again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(ctx context.Context, n *service.Node) error {
			a, err := n.Acquire(ctx, args[0], service.AcquireOptions{
				Timeout:  getTimeout,
				FileName: getFileName,
			})
			if err != nil {
				return err
			}
			return NewOutputWriter().Write(a, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "File:\t%s\n", a.DownloadPath)
				fmt.Fprintf(w, "Type:\t%s\n", a.MimeType)
				fmt.Fprintf(w, "Size:\t%s\n", formatBytes(a.TotalBytes))
				fmt.Fprintf(w, "Claim:\t%s#%s\n", a.ClaimName, a.ClaimID)
				fmt.Fprintf(w, "SD hash:\t%s\n", a.DescriptorHash)
				fmt.Fprintf(w, "Paid:\t%s LBC\n", a.PointsPaid)
				fmt.Fprintf(w, "Completed:\t%s\n", yesNo(a.Completed))
			})
		})
	},
}

func init() {
	getCmd.Flags().DurationVar(&getTimeout, "timeout", 0, "time allowed for the download to start (default from config)")
	getCmd.Flags().StringVar(&getFileName, "file-name", "", "save under this file name instead of the suggested one")
}
