// Package availability diagnoses whether blobs and streams can be
// downloaded right now by probing the peers that announce them.
package availability

import (
	"blobnet/internal/logger"
)

var log = logger.Default()

// SetLogger sets the logger for availability checks.
func SetLogger(l *logger.Logger) {
	if l != nil {
		log = l.With("component", "availability")
	}
}

func getLogger(subcomponent string) *logger.Logger {
	return log.With("subcomponent", subcomponent)
}
