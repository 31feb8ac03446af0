package p2p

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"blobnet/internal/config"
	"blobnet/internal/domain"
	"blobnet/internal/metrics"
	"blobnet/internal/storage/blob"
)

// Node is a running libp2p participant: it serves held blobs, finds
// peers through the DHT and fetches blobs from them.
type Node struct {
	Host      *Host
	DHT       *DHT
	Lookup    *PeerLookup
	Fetcher   *Fetcher
	Scores    *Scoreboard
	announcer *Announcer
	server    *BlobServer
	mdns      *MDNSDiscovery
}

// NodeOptions collects what a node needs besides its configuration.
type NodeOptions struct {
	KeyPath           string
	Store             blob.Store
	Metrics           *metrics.Metrics
	PeerSearchTimeout time.Duration
}

// StartNode creates the host, joins the DHT and starts serving blobs.
func StartNode(ctx context.Context, cfg config.P2PConfig, opts NodeOptions) (*Node, error) {
	logger := getLogger("node")

	h, err := NewHost(ctx, cfg, opts.KeyPath)
	if err != nil {
		return nil, err
	}

	boot, err := NewBootstrapper(h, cfg.Bootstrap)
	if err != nil {
		h.Close()
		return nil, err
	}
	boot.Connect(ctx)

	kad, err := NewDHT(ctx, h, cfg.DHT, boot.Peers())
	if err != nil {
		h.Close()
		return nil, err
	}
	if err := kad.Bootstrap(ctx); err != nil {
		logger.Warn("DHT bootstrap failed", "error", err)
	}

	n := &Node{
		Host:   h,
		DHT:    kad,
		Scores: NewScoreboard(),
		server: NewBlobServer(h, opts.Store),
	}

	if cfg.MDNS {
		n.mdns = NewMDNSDiscovery(h)
		if err := n.mdns.Start(); err != nil {
			logger.Warn("mDNS discovery unavailable", "error", err)
			n.mdns = nil
		}
	}

	client := NewBlobClient(h)
	n.Lookup = NewPeerLookup(h, client, kad)
	n.announcer = NewAnnouncer(kad, opts.Store, cfg.DHT.ReannounceInterval)
	n.announcer.Start(context.WithoutCancel(ctx))
	n.Fetcher = NewFetcher(opts.Store, n.Lookup, n.Scores, n.announcer, opts.Metrics, FetcherConfig{
		PeerSearchTimeout: opts.PeerSearchTimeout,
		Rate:              cfg.FetchRate,
		Burst:             cfg.FetchBurst,
	})

	logger.Info("node started", "peer_id", h.PeerID(), "dht_mode", kad.Mode(), "mdns", n.mdns != nil)
	return n, nil
}

// ConnectedPeers returns the IDs of currently connected peers.
func (n *Node) ConnectedPeers() []peer.ID {
	return n.Host.Network().Peers()
}

// PingPeer pings a peer by its ID, dialing addrs if given.
func (n *Node) PingPeer(ctx context.Context, nodeID string, addrs ...string) error {
	id, err := peer.Decode(nodeID)
	if err != nil {
		return fmt.Errorf("%w: node id %q: %v", domain.ErrInvalidInput, nodeID, err)
	}
	c, err := n.Lookup.Contact(id, addrs...)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return c.Ping(ctx)
}

// Close stops every component and the host.
func (n *Node) Close() error {
	n.announcer.Stop()
	n.server.Close()

	var errs []error
	if n.mdns != nil {
		errs = append(errs, n.mdns.Stop())
	}
	errs = append(errs, n.DHT.Close(), n.Host.Close())
	return errors.Join(errs...)
}
