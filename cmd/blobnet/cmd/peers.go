package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"blobnet/internal/service"

	"github.com/spf13/cobra"
)

var (
	peersSearchTimeout time.Duration
	peersProbeTimeout  time.Duration
	peersPingAddr      string
)

// peersCmd groups peer commands
var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "Find, probe and ping peers",
}

var peersListCmd = &cobra.Command{
	Use:   "list <blob-hash>",
	Short: "List peers announcing a blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(ctx context.Context, n *service.Node) error {
			peers, err := n.PeerList(ctx, args[0], peersSearchTimeout)
			if err != nil {
				return err
			}
			return NewOutputWriter().Write(peers, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "NODE ID\tHOST\tPORT")
				for _, p := range peers {
					fmt.Fprintf(w, "%s\t%s\t%d\n", p.NodeID, p.Host, p.Port)
				}
			})
		})
	},
}

var peersProbeCmd = &cobra.Command{
	Use:   "probe <blob-hash>",
	Short: "Probe which peers can serve a blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(ctx context.Context, n *service.Node) error {
			r, err := n.ProbePeers(ctx, args[0], peersSearchTimeout, peersProbeTimeout)
			if err != nil {
				return err
			}
			return NewOutputWriter().Write(r, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "Available:\t%s\n", yesNo(r.IsAvailable))
				fmt.Fprintf(w, "Reachable:\t%s\n", strings.Join(r.ReachablePeers, ", "))
				fmt.Fprintf(w, "Unreachable:\t%s\n", strings.Join(r.UnreachablePeers, ", "))
				if r.Error != "" {
					fmt.Fprintf(w, "Error:\t%s\n", r.Error)
				}
			})
		})
	},
}

var peersPingCmd = &cobra.Command{
	Use:   "ping <node-id>",
	Short: "Ping a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNode(func(ctx context.Context, n *service.Node) error {
			res, err := n.PingPeer(ctx, args[0], peersPingAddr)
			if err != nil {
				return err
			}
			return NewOutputWriter().Write(res, nil)
		})
	},
}

func init() {
	peersCmd.PersistentFlags().DurationVar(&peersSearchTimeout, "search-timeout", 0, "peer search timeout (default from config)")
	peersProbeCmd.Flags().DurationVar(&peersProbeTimeout, "probe-timeout", 0, "per-peer probe timeout (default from config)")
	peersPingCmd.Flags().StringVar(&peersPingAddr, "address", "", "multiaddr to dial instead of searching the DHT")

	peersCmd.AddCommand(peersListCmd, peersProbeCmd, peersPingCmd)
}
