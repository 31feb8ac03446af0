// Package p2p provides the libp2p networking layer: host, DHT peer
// lookup, and the blob exchange protocol.
package p2p

import (
	"blobnet/internal/logger"
)

// log is the package-level logger for P2P operations.
var log = logger.Default()

// SetLogger sets the logger for all P2P operations.
// This should be called before creating any P2P components.
func SetLogger(l *logger.Logger) {
	if l != nil {
		log = l.With("component", "p2p")
	}
}

// getLogger returns a logger with the given subcomponent.
func getLogger(subcomponent string) *logger.Logger {
	return log.With("subcomponent", subcomponent)
}
