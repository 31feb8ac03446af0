package p2p

import (
	"context"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
)

// MDNSServiceName is the mDNS service tag blobnet nodes advertise.
const MDNSServiceName = "blobnet.local"

const mdnsConnectTimeout = 10 * time.Second

// MDNSDiscovery connects to blobnet nodes found on the local network so
// they join the DHT routing table.
type MDNSDiscovery struct {
	host    host.Host
	service mdns.Service
	ctx     context.Context
	cancel  context.CancelFunc

	mu         sync.RWMutex
	discovered map[peer.ID]peer.AddrInfo
}

// NewMDNSDiscovery creates an mDNS discovery service. Call Start to begin.
func NewMDNSDiscovery(h host.Host) *MDNSDiscovery {
	ctx, cancel := context.WithCancel(context.Background())
	return &MDNSDiscovery{
		host:       h,
		ctx:        ctx,
		cancel:     cancel,
		discovered: make(map[peer.ID]peer.AddrInfo),
	}
}

// Start begins advertising and listening. It returns immediately.
func (m *MDNSDiscovery) Start() error {
	service := mdns.NewMdnsService(m.host, MDNSServiceName, m)
	if err := service.Start(); err != nil {
		return err
	}
	m.service = service
	return nil
}

// Stop stops the mDNS service.
func (m *MDNSDiscovery) Stop() error {
	m.cancel()
	if m.service != nil {
		return m.service.Close()
	}
	return nil
}

// HandlePeerFound implements mdns.Notifee.
func (m *MDNSDiscovery) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.host.ID() {
		return
	}

	m.mu.Lock()
	_, known := m.discovered[pi.ID]
	m.discovered[pi.ID] = pi
	m.mu.Unlock()
	if known {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(m.ctx, mdnsConnectTimeout)
		defer cancel()
		if err := m.host.Connect(ctx, pi); err != nil {
			getLogger("mdns").Debug("failed to connect to local peer", "peer", pi.ID, "error", err)
			return
		}
		getLogger("mdns").Info("connected to local peer", "peer", pi.ID)
	}()
}

// DiscoveredPeers returns all peers found via mDNS.
func (m *MDNSDiscovery) DiscoveredPeers() []peer.AddrInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	peers := make([]peer.AddrInfo, 0, len(m.discovered))
	for _, pi := range m.discovered {
		peers = append(peers, pi)
	}
	return peers
}
