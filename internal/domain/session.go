package domain

// SessionState is the lifecycle state of a download session.
type SessionState string

const (
	SessionInitializing     SessionState = "initializing"
	SessionFetchingMetadata SessionState = "fetching_metadata"
	SessionRunning          SessionState = "running"
	SessionStopped          SessionState = "stopped"
	SessionTimedOut         SessionState = "timed_out"
)

// IsValid checks if the session state is valid.
func (s SessionState) IsValid() bool {
	switch s {
	case SessionInitializing, SessionFetchingMetadata, SessionRunning,
		SessionStopped, SessionTimedOut:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the session can make no further progress.
func (s SessionState) IsTerminal() bool {
	return s == SessionStopped || s == SessionTimedOut
}

// String returns the string representation.
func (s SessionState) String() string {
	return string(s)
}
