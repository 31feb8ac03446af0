package domain

import (
	"context"
	"net"
	"strconv"
	"time"
)

// PeerContact is a remote node believed to hold a piece.
type PeerContact interface {
	// NodeID is the peer's network identity.
	NodeID() string

	// Address returns "host:port".
	Address() string

	// Ping checks that the peer answers.
	Ping(ctx context.Context) error

	// FetchPiece retrieves one piece directly from this peer.
	FetchPiece(ctx context.Context, id PieceID, timeout time.Duration) ([]byte, error)
}

// PeerInfo is the serializable view of a contact.
type PeerInfo struct {
	NodeID string `json:"node_id"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// NewPeerInfo splits a contact's address into host and port.
func NewPeerInfo(p PeerContact) PeerInfo {
	info := PeerInfo{NodeID: p.NodeID(), Host: p.Address()}
	if host, port, err := net.SplitHostPort(p.Address()); err == nil {
		info.Host = host
		info.Port, _ = strconv.Atoi(port)
	}
	return info
}
