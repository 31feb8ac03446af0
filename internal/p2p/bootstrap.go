package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"blobnet/internal/config"
)

const defaultBootstrapTimeout = 10 * time.Second

// Bootstrapper dials the configured bootstrap peers.
type Bootstrapper struct {
	host  host.Host
	cfg   config.BootstrapConfig
	peers []peer.AddrInfo
}

// NewBootstrapper parses cfg.Peers. Each entry must carry a /p2p/ component.
func NewBootstrapper(h host.Host, cfg config.BootstrapConfig) (*Bootstrapper, error) {
	peers, err := parseBootstrapPeers(cfg.Peers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap peers: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultBootstrapTimeout
	}
	return &Bootstrapper{host: h, cfg: cfg, peers: peers}, nil
}

// Peers returns the parsed bootstrap peers.
func (b *Bootstrapper) Peers() []peer.AddrInfo {
	return b.peers
}

// Connect dials every bootstrap peer concurrently and returns how many
// connected. Failures are logged; a node with no reachable bootstrap
// peer still starts.
func (b *Bootstrapper) Connect(ctx context.Context) int {
	if len(b.peers) == 0 {
		return 0
	}
	logger := getLogger("bootstrap")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		connected int
	)
	for _, info := range b.peers {
		wg.Add(1)
		go func(info peer.AddrInfo) {
			defer wg.Done()

			dialCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
			defer cancel()

			if err := b.host.Connect(dialCtx, info); err != nil {
				logger.Warn("bootstrap peer unreachable", "peer", info.ID, "error", err)
				return
			}
			mu.Lock()
			connected++
			mu.Unlock()
		}(info)
	}
	wg.Wait()

	logger.Info("bootstrap finished", "connected", connected, "configured", len(b.peers))
	return connected
}

// ConnectedPeers returns how many bootstrap peers are currently connected.
func (b *Bootstrapper) ConnectedPeers() int {
	count := 0
	for _, p := range b.peers {
		if b.host.Network().Connectedness(p.ID) == network.Connected {
			count++
		}
	}
	return count
}

// parseBootstrapPeers parses multiaddr strings into peer.AddrInfo,
// merging addresses of the same peer.
func parseBootstrapPeers(addrs []string) ([]peer.AddrInfo, error) {
	var peers []peer.AddrInfo
	index := make(map[peer.ID]int)

	for _, addr := range addrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid multiaddr %q: %w", addr, err)
		}

		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			return nil, fmt.Errorf("bootstrap address %q has no peer id: %w", addr, err)
		}

		if i, ok := index[info.ID]; ok {
			peers[i].Addrs = append(peers[i].Addrs, info.Addrs...)
			continue
		}
		index[info.ID] = len(peers)
		peers = append(peers, *info)
	}

	return peers, nil
}
