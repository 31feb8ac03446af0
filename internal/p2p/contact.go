package p2p

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/p2p/protocol/ping"
	manet "github.com/multiformats/go-multiaddr/net"

	"blobnet/internal/domain"
	"blobnet/internal/storage/blob"
)

// Contact is a remote peer reached over libp2p. It implements
// domain.PeerContact.
type Contact struct {
	info   peer.AddrInfo
	host   host.Host
	client *BlobClient
}

var _ domain.PeerContact = (*Contact)(nil)

// NewContact remembers info's addresses and returns a contact for it.
func NewContact(h host.Host, client *BlobClient, info peer.AddrInfo) *Contact {
	if len(info.Addrs) > 0 {
		h.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)
	}
	return &Contact{info: info, host: h, client: client}
}

// NodeID returns the peer ID.
func (c *Contact) NodeID() string {
	return c.info.ID.String()
}

// PeerID returns the libp2p peer ID.
func (c *Contact) PeerID() peer.ID {
	return c.info.ID
}

// Address returns the first dialable "host:port", or the peer ID when
// no IP address is known.
func (c *Contact) Address() string {
	addrs := c.info.Addrs
	if len(addrs) == 0 {
		addrs = c.host.Peerstore().Addrs(c.info.ID)
	}
	for _, a := range addrs {
		if na, err := manet.ToNetAddr(a); err == nil {
			return na.String()
		}
	}
	return c.info.ID.String()
}

// Ping sends one libp2p ping. A missing reply before ctx expires is a
// timeout.
func (c *Contact) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	select {
	case res, ok := <-ping.Ping(pingCtx, c.host, c.info.ID):
		if !ok {
			return fmt.Errorf("%w: ping %s: no reply", domain.ErrTimeout, c.info.ID)
		}
		if res.Error != nil {
			if errors.Is(res.Error, context.DeadlineExceeded) {
				return fmt.Errorf("%w: ping %s", domain.ErrTimeout, c.info.ID)
			}
			return fmt.Errorf("%w: ping %s: %v", domain.ErrTransport, c.info.ID, res.Error)
		}
		getLogger("contact").Debug("ping", "peer", c.info.ID, "rtt", res.RTT)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: ping %s", domain.ErrTimeout, c.info.ID)
	}
}

// FetchPiece requests id from this peer and verifies its hash.
func (c *Contact) FetchPiece(ctx context.Context, id domain.PieceID, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := c.client.RequestBlob(ctx, c.info.ID, id)
	if err != nil {
		return nil, err
	}
	if got := blob.HashBytes(data); got != id {
		return nil, fmt.Errorf("%w: peer %s sent %s for %s", domain.ErrTransport, c.info.ID, got, id)
	}
	return data, nil
}
