package p2p

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"blobnet/internal/config"
)

// Host wraps a libp2p host with blobnet-specific functionality.
type Host struct {
	host.Host
	cfg config.P2PConfig
}

// NewHost creates a libp2p host whose identity is stored at keyPath.
func NewHost(ctx context.Context, cfg config.P2PConfig, keyPath string) (*Host, error) {
	identity, err := LoadOrGenerateIdentity(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	listenAddrs, err := parseMultiaddrs(cfg.ListenAddresses)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listen addresses: %w", err)
	}

	connMgr, err := connmgr.NewConnManager(
		cfg.ConnManager.LowWatermark,
		cfg.ConnManager.HighWatermark,
		connmgr.WithGracePeriod(cfg.ConnManager.GracePeriod),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}

	opts := []libp2p.Option{
		libp2p.Identity(identity.PrivKey),
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.Security(noise.ID, noise.New),
		libp2p.ConnectionManager(connMgr),
		libp2p.EnableHolePunching(),
	}
	if cfg.UseUPnP {
		opts = append(opts, libp2p.NATPortMap())
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	getLogger("host").Info("host started", "peer_id", h.ID(), "addrs", h.Addrs(), "upnp", cfg.UseUPnP)
	return &Host{Host: h, cfg: cfg}, nil
}

// PeerID returns the peer ID of this host.
func (h *Host) PeerID() peer.ID {
	return h.Host.ID()
}

// ListenAddrs returns the addresses this host is listening on.
func (h *Host) ListenAddrs() []multiaddr.Multiaddr {
	return h.Host.Addrs()
}

// FullAddrs returns the full multiaddrs (including peer ID) for this host.
func (h *Host) FullAddrs() []multiaddr.Multiaddr {
	hostAddr, _ := multiaddr.NewMultiaddr(fmt.Sprintf("/p2p/%s", h.PeerID()))

	var addrs []multiaddr.Multiaddr
	for _, addr := range h.ListenAddrs() {
		addrs = append(addrs, addr.Encapsulate(hostAddr))
	}
	return addrs
}

// UseUPnP reports whether port mapping was requested.
func (h *Host) UseUPnP() bool {
	return h.cfg.UseUPnP
}

// UPnPRedirectIsSet reports whether port mapping is on and the host
// advertises at least one public address.
func (h *Host) UPnPRedirectIsSet() bool {
	if !h.cfg.UseUPnP {
		return false
	}
	for _, addr := range h.ListenAddrs() {
		if manet.IsPublicAddr(addr) {
			return true
		}
	}
	return false
}

// Close shuts down the host.
func (h *Host) Close() error {
	return h.Host.Close()
}

// parseMultiaddrs parses a slice of multiaddr strings.
func parseMultiaddrs(addrs []string) ([]multiaddr.Multiaddr, error) {
	result := make([]multiaddr.Multiaddr, 0, len(addrs))
	for _, addr := range addrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid multiaddr %q: %w", addr, err)
		}
		result = append(result, ma)
	}
	return result, nil
}

// WaitForReady waits until the host has at least one listen address.
func (h *Host) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for host to be ready: %w", ctx.Err())
		case <-ticker.C:
			if len(h.ListenAddrs()) > 0 {
				return nil
			}
		}
	}
}
