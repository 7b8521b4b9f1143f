package display

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/protocol"
)

// cols is the number of characters that fit on one panel row.
const cols = 21

// maxPayloadBytes is how many payload bytes a row has room for.
const maxPayloadBytes = 4

// FrameFormatter formats protocol frames for display on the SSD1306.
// It creates compact string representations suitable for one panel row.
type FrameFormatter struct{}

// NewFrameFormatter creates a new frame formatter.
func NewFrameFormatter() *FrameFormatter {
	return &FrameFormatter{}
}

// FormatIncoming formats an incoming request frame for display.
// Returns bytes string and parsed string.
func (f *FrameFormatter) FormatIncoming(frame *protocol.Frame) (bytesStr, parsedStr string) {
	bytesStr = f.formatBytes(frame.Cmd, frame.Payload)
	parsedStr = fmt.Sprintf("%s[%d]", f.getCommandName(frame.Cmd), len(frame.Payload))
	return bytesStr, parsedStr
}

// FormatOutgoing formats an outgoing response frame for display.
// Returns bytes string and parsed string.
func (f *FrameFormatter) FormatOutgoing(resp *protocol.Response) (bytesStr, parsedStr string) {
	bytesStr = f.formatBytes(resp.Status, resp.Payload)
	parsedStr = fmt.Sprintf("%s[%d]", f.getStatusName(resp.Status), len(resp.Payload))
	return bytesStr, parsedStr
}

// FormatError formats an error for display.
func (f *FrameFormatter) FormatError(err error) string {
	msg := err.Error()
	if len(msg) > 12 {
		msg = msg[:12]
	}
	return msg
}

// FormatStatus summarizes the running board configuration.
func (f *FrameFormatter) FormatStatus(address uint8, digits int, commonAnode bool) string {
	wiring := "CC"
	if commonAnode {
		wiring = "CA"
	}
	return fmt.Sprintf("@%02X %dd %s", address, digits, wiring)
}

// formatBytes formats the raw bytes of a frame as hex.
// Format: AA HEAD LEN_LO LEN_HI [PAYLOAD] ..
// HEAD is the command of a request or the status of a response. The CRC
// is shown as dots.
func (f *FrameFormatter) formatBytes(head uint8, payload []byte) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%02X ", protocol.SyncByte))
	b.WriteString(fmt.Sprintf("%02X ", head))

	// Length (2 bytes, little-endian)
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, uint16(len(payload)))
	b.WriteString(fmt.Sprintf("%02X%02X ", lenBytes[0], lenBytes[1]))

	for i := 0; i < len(payload) && i < maxPayloadBytes; i++ {
		b.WriteString(fmt.Sprintf("%02X", payload[i]))
	}
	if len(payload) > maxPayloadBytes {
		b.WriteString("..")
	} else if len(payload) > 0 {
		b.WriteString(" ")
	}

	b.WriteString("..")

	return b.String()
}

// getCommandName returns a short name for a command code.
func (f *FrameFormatter) getCommandName(cmd uint8) string {
	switch cmd {
	case protocol.CmdGetDeviceConfig:
		return "GetDevCfg"
	case protocol.CmdSetDeviceConfig:
		return "SetDevCfg"
	case protocol.CmdGetDigits:
		return "GetDig"
	case protocol.CmdSetDigits:
		return "SetDig"
	case protocol.CmdClearDigits:
		return "ClrDig"
	case protocol.CmdGetStorageStats:
		return "GetStor"
	case protocol.CmdPing:
		return "Ping"
	case protocol.CmdFactoryReset:
		return "FctRst"
	case protocol.CmdGetVersion:
		return "GetVer"
	case protocol.CmdGetBusStats:
		return "GetBus"
	default:
		return fmt.Sprintf("Cmd%02X", cmd)
	}
}

// getStatusName returns a short name for a status code.
func (f *FrameFormatter) getStatusName(status uint8) string {
	switch status {
	case protocol.StatusOK:
		return "OK"
	case protocol.StatusError:
		return "Err"
	case protocol.StatusInvalidCmd:
		return "InvCmd"
	case protocol.StatusInvalidData:
		return "InvData"
	case protocol.StatusNotFound:
		return "NotFnd"
	case protocol.StatusNoSpace:
		return "NoSpace"
	case protocol.StatusVersionMismatch:
		return "VerMis"
	case protocol.StatusCRCError:
		return "CRC"
	default:
		return fmt.Sprintf("Sts%02X", status)
	}
}

// truncate limits a string to maxLen characters, adding ".." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 2 {
		return s[:maxLen]
	}
	return s[:maxLen-2] + ".."
}
