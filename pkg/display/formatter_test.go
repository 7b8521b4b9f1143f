package display

import (
	"errors"
	"testing"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/protocol"
)

func TestFormatIncoming(t *testing.T) {
	f := NewFrameFormatter()

	tests := []struct {
		name       string
		frame      protocol.Frame
		wantBytes  string
		wantParsed string
	}{
		{
			name:       "no payload",
			frame:      protocol.Frame{Cmd: protocol.CmdGetDigits},
			wantBytes:  "AA 03 0000 ..",
			wantParsed: "GetDig[0]",
		},
		{
			name:       "short payload",
			frame:      protocol.Frame{Cmd: protocol.CmdSetDigits, Payload: []byte{0, 0x3F}},
			wantBytes:  "AA 04 0200 003F ..",
			wantParsed: "SetDig[2]",
		},
		{
			name:       "long payload",
			frame:      protocol.Frame{Cmd: protocol.CmdPing, Payload: []byte{1, 2, 3, 4, 5}},
			wantBytes:  "AA 08 0500 01020304....",
			wantParsed: "Ping[5]",
		},
		{
			name:       "unknown command",
			frame:      protocol.Frame{Cmd: 0x7E},
			wantBytes:  "AA 7E 0000 ..",
			wantParsed: "Cmd7E[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bytesStr, parsedStr := f.FormatIncoming(&tt.frame)
			if bytesStr != tt.wantBytes {
				t.Errorf("bytes: expected %q, got %q", tt.wantBytes, bytesStr)
			}
			if parsedStr != tt.wantParsed {
				t.Errorf("parsed: expected %q, got %q", tt.wantParsed, parsedStr)
			}
		})
	}
}

func TestFormatOutgoing(t *testing.T) {
	f := NewFrameFormatter()

	bytesStr, parsedStr := f.FormatOutgoing(&protocol.Response{
		Status:  protocol.StatusInvalidData,
		Payload: nil,
	})
	if bytesStr != "AA 03 0000 .." {
		t.Errorf("bytes: got %q", bytesStr)
	}
	if parsedStr != "InvData[0]" {
		t.Errorf("parsed: got %q", parsedStr)
	}

	_, parsedStr = f.FormatOutgoing(&protocol.Response{Status: 0x42})
	if parsedStr != "Sts42[0]" {
		t.Errorf("unknown status: got %q", parsedStr)
	}
}

func TestFormatError(t *testing.T) {
	f := NewFrameFormatter()

	if got := f.FormatError(errors.New("CRC mismatch on frame")); got != "CRC mismatch" {
		t.Errorf("Expected 12 character message, got %q", got)
	}
	if got := f.FormatError(errors.New("short")); got != "short" {
		t.Errorf("Expected short message unchanged, got %q", got)
	}
}

func TestFormatStatus(t *testing.T) {
	f := NewFrameFormatter()

	if got := f.FormatStatus(0x09, 6, true); got != "@09 6d CA" {
		t.Errorf("Expected %q, got %q", "@09 6d CA", got)
	}
	if got := f.FormatStatus(0x2A, 4, false); got != "@2A 4d CC" {
		t.Errorf("Expected %q, got %q", "@2A 4d CC", got)
	}
}

func TestEveryCommandHasName(t *testing.T) {
	f := NewFrameFormatter()

	cmds := []uint8{
		protocol.CmdGetDeviceConfig,
		protocol.CmdSetDeviceConfig,
		protocol.CmdGetDigits,
		protocol.CmdSetDigits,
		protocol.CmdClearDigits,
		protocol.CmdGetStorageStats,
		protocol.CmdPing,
		protocol.CmdFactoryReset,
		protocol.CmdGetVersion,
		protocol.CmdGetBusStats,
	}
	for _, cmd := range cmds {
		name := f.getCommandName(cmd)
		if len(name) > 9 || name[:3] == "Cmd" {
			t.Errorf("Command 0x%02x: unexpected name %q", cmd, name)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello .."},
		{"hello", 2, "he"},
		{"", 4, ""},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d): expected %q, got %q", tt.in, tt.maxLen, tt.want, got)
		}
	}
}
