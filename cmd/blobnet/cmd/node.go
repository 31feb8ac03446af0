package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"blobnet/internal/config"
	"blobnet/internal/service"
)

var ephemeralPorts bool

// ephemeralListenAddresses replaces fixed ports with random ones.
var ephemeralListenAddresses = []string{
	"/ip4/0.0.0.0/tcp/0",
	"/ip4/0.0.0.0/udp/0/quic-v1",
}

// withNode starts an in-process node for the duration of fn. SIGINT and
// SIGTERM cancel fn's context and downloads in flight.
func withNode(fn func(ctx context.Context, n *service.Node) error) error {
	nodeCfg := *cfg
	if ephemeralPorts {
		nodeCfg.P2P.ListenAddresses = ephemeralListenAddresses
	}
	// The CLI never serves metrics or keeps a PID file.
	nodeCfg.Metrics = config.MetricsConfig{}
	nodeCfg.Server.PIDFile = ""

	ctx, stop := signal.NotifyContext(cmdCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := service.Start(ctx, &nodeCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	defer func() {
		if cerr := n.Close(); cerr != nil {
			log.Warn("failed to close node", "error", cerr)
		}
	}()

	return fn(ctx, n)
}
