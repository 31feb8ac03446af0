package p2p

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"blobnet/internal/config"
	"blobnet/internal/domain"
)

// DHTMode represents the DHT operation mode.
type DHTMode string

const (
	// DHTModeAuto lets libp2p decide based on network reachability.
	DHTModeAuto DHTMode = "auto"
	// DHTModeServer runs as a full DHT participant (requires public IP).
	DHTModeServer DHTMode = "server"
	// DHTModeClient only queries the DHT, doesn't store records.
	DHTModeClient DHTMode = "client"
)

// maxProviders caps a provider search so it can finish before its deadline.
const maxProviders = 20

// DHT wraps the Kademlia DHT used to find blob holders.
type DHT struct {
	*dht.IpfsDHT
	host host.Host
	cfg  config.DHTConfig
}

// NewDHT creates a new Kademlia DHT instance.
func NewDHT(ctx context.Context, h host.Host, cfg config.DHTConfig, bootstrapPeers []peer.AddrInfo) (*DHT, error) {
	mode := DHTMode(strings.ToLower(cfg.Mode))
	if mode == "" {
		mode = DHTModeAuto
	}

	opts := []dht.Option{
		dht.ProtocolPrefix("/blobnet"),
	}

	switch mode {
	case DHTModeServer:
		opts = append(opts, dht.Mode(dht.ModeServer))
	case DHTModeClient:
		opts = append(opts, dht.Mode(dht.ModeClient))
	case DHTModeAuto:
		opts = append(opts, dht.Mode(dht.ModeAutoServer))
	default:
		return nil, fmt.Errorf("invalid DHT mode: %s (must be auto, server, or client)", cfg.Mode)
	}

	if len(bootstrapPeers) > 0 {
		opts = append(opts, dht.BootstrapPeers(bootstrapPeers...))
	}

	kadDHT, err := dht.New(ctx, h, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create DHT: %w", err)
	}

	return &DHT{
		IpfsDHT: kadDHT,
		host:    h,
		cfg:     cfg,
	}, nil
}

// Providers returns peers announcing id. Expiry of timeout ends the
// search without an error and returns what was found so far.
func (d *DHT) Providers(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]peer.AddrInfo, error) {
	key, err := PieceCID(id)
	if err != nil {
		return nil, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var found []peer.AddrInfo
	for info := range d.IpfsDHT.FindProvidersAsync(ctx, key, maxProviders) {
		if info.ID == d.host.ID() {
			continue
		}
		found = append(found, info)
	}

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			getLogger("dht").Debug("provider search expired", "blob", id, "timeout", timeout, "found", len(found))
			return found, nil
		}
		return nil, err
	}
	return found, nil
}

// Announce records this node as a provider of id.
func (d *DHT) Announce(ctx context.Context, id domain.PieceID) error {
	key, err := PieceCID(id)
	if err != nil {
		return err
	}
	return d.IpfsDHT.Provide(ctx, key, true)
}

// Bootstrap refreshes the routing table.
func (d *DHT) Bootstrap(ctx context.Context) error {
	return d.IpfsDHT.Bootstrap(ctx)
}

// RoutingTableSize returns the number of peers in the routing table.
func (d *DHT) RoutingTableSize() int {
	return d.IpfsDHT.RoutingTable().Size()
}

// Mode returns the configured DHT mode.
func (d *DHT) Mode() string {
	return d.cfg.Mode
}

// Close shuts down the DHT.
func (d *DHT) Close() error {
	return d.IpfsDHT.Close()
}
