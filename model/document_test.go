package model

import "testing"

func TestDocumentStatusTerminal(t *testing.T) {
	tests := []struct {
		status   DocumentStatus
		terminal bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal(): expected %v, got %v", tt.status, tt.terminal, got)
		}
	}
}
