package bridge

import (
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "valid command",
			payload: `{"id":"cmd-1","channel":"wavelength","value":632.8}`,
		},
		{
			name:    "missing channel",
			payload: `{"id":"cmd-2","value":1}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			payload: `{"id":`,
			wantErr: true,
		},
		{
			name:    "no id generates one",
			payload: `{"channel":"grating","value":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseCommand() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand() error = %v", err)
			}
			if cmd.ID == "" {
				t.Error("ParseCommand() left ID empty")
			}
			if cmd.Timestamp.IsZero() {
				t.Error("ParseCommand() left Timestamp zero")
			}
		})
	}
}

func TestParseCommand_PreservesClientFields(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"id":"cmd-x","channel":"slit_width","address":2,"value":150,"source":"cli"}`))
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	if cmd.ID != "cmd-x" || cmd.Address != 2 || cmd.Value != 150 || cmd.Source != "cli" {
		t.Errorf("ParseCommand() = %+v, client fields not preserved", cmd)
	}
}

func TestNewAckError(t *testing.T) {
	cmd := CommandMessage{ID: "cmd-1", Timestamp: time.Now(), Channel: "wavelength", Value: 99}

	ack := NewAckError(cmd, "spg-red", 0, AckFailed, ErrCodeCommandFailed, "status 20268")
	if ack.CommandID != "cmd-1" {
		t.Errorf("CommandID = %q, want cmd-1", ack.CommandID)
	}
	if ack.Status != AckFailed {
		t.Errorf("Status = %q, want failed", ack.Status)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeCommandFailed || ack.Error.Message != "status 20268" {
		t.Errorf("Error = %+v, want populated detail", ack.Error)
	}

	ok := NewAck(cmd, "spg-red", 0, AckAccepted)
	if ok.Error != nil {
		t.Errorf("successful ack carries error: %+v", ok.Error)
	}
}
