package p2p

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"blobnet/internal/domain"
)

// providerSource finds the peers announcing a piece.
type providerSource interface {
	Providers(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]peer.AddrInfo, error)
}

// PeerLookup turns DHT provider records into contacts. It implements
// domain.PeerLookup.
type PeerLookup struct {
	host      host.Host
	client    *BlobClient
	providers providerSource
}

var _ domain.PeerLookup = (*PeerLookup)(nil)

// NewPeerLookup creates a lookup over providers.
func NewPeerLookup(h host.Host, client *BlobClient, providers providerSource) *PeerLookup {
	return &PeerLookup{host: h, client: client, providers: providers}
}

// FindPeers returns contacts for every provider of id.
func (l *PeerLookup) FindPeers(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]domain.PeerContact, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	infos, err := l.providers.Providers(ctx, id, timeout)
	if err != nil {
		return nil, err
	}

	contacts := make([]domain.PeerContact, 0, len(infos))
	for _, info := range infos {
		contacts = append(contacts, NewContact(l.host, l.client, info))
	}
	return contacts, nil
}

// Contact returns a contact for a known peer ID, used to ping peers
// that did not come from a lookup.
func (l *PeerLookup) Contact(id peer.ID, addrs ...string) (*Contact, error) {
	info := peer.AddrInfo{ID: id}
	if len(addrs) > 0 {
		parsed, err := parseMultiaddrs(addrs)
		if err != nil {
			return nil, err
		}
		info.Addrs = parsed
	}
	return NewContact(l.host, l.client, info), nil
}
