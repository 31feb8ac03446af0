package domain

import "testing"

func TestSessionState_IsValid(t *testing.T) {
	tests := []struct {
		state SessionState
		valid bool
	}{
		{SessionInitializing, true},
		{SessionFetchingMetadata, true},
		{SessionRunning, true},
		{SessionStopped, true},
		{SessionTimedOut, true},
		{SessionState("finished"), false},
		{SessionState(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("SessionState(%q).IsValid() = %v, want %v", tt.state, got, tt.valid)
			}
		})
	}
}

func TestSessionState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    SessionState
		terminal bool
	}{
		{SessionInitializing, false},
		{SessionFetchingMetadata, false},
		{SessionRunning, false},
		{SessionStopped, true},
		{SessionTimedOut, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("SessionState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
			}
		})
	}
}
