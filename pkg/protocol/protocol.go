// Package protocol implements the binary maintenance protocol spoken over USB CDC.
// It lets a PC read and change the stored board configuration and inspect or
// drive the digit buffer without a bus controller attached.
//
// Frame format:
//
//	[SYNC:1][CMD:1][LEN:2][PAYLOAD:LEN][CRC:2]
//	- SYNC: 0xAA (frame start marker)
//	- CMD: Command byte
//	- LEN: Payload length (uint16, little-endian)
//	- PAYLOAD: Variable length data
//	- CRC: CRC16-CCITT of [CMD][LEN][PAYLOAD]
//
// Response format is identical.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/bus"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/segment"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/storage"
)

const (
	SyncByte = 0xAA

	// Command codes (PC → Device)
	CmdGetDeviceConfig = 0x01
	CmdSetDeviceConfig = 0x02
	CmdGetDigits       = 0x03
	CmdSetDigits       = 0x04
	CmdClearDigits     = 0x05
	CmdGetStorageStats = 0x07
	CmdPing            = 0x08
	CmdFactoryReset    = 0x09
	CmdGetVersion      = 0x10
	CmdGetBusStats     = 0x11

	// Response status codes (Device → PC)
	StatusOK              = 0x00
	StatusError           = 0x01
	StatusInvalidCmd      = 0x02
	StatusInvalidData     = 0x03
	StatusNotFound        = 0x04
	StatusNoSpace         = 0x05
	StatusVersionMismatch = 0x06
	StatusCRCError        = 0x07
)

var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrCRCMismatch  = errors.New("CRC mismatch")
)

// MaxPayload bounds the payload length accepted by ReadFrame.
const MaxPayload = 512

// Firmware version reported by GetVersion.
const (
	FirmwareMajor = 0
	FirmwareMinor = 1
)

// SweepCounter reports completed display sweeps.
type SweepCounter interface {
	Sweeps() uint32
}

// Handler processes protocol commands.
type Handler struct {
	storage *storage.Manager
	digits  *segment.Buffer
	bus     *bus.Handler
	sweeps  SweepCounter
}

// NewHandler creates a new protocol handler. sm may be nil when flash is
// unavailable; the config and storage commands then answer StatusError.
// sweeps may be nil.
func NewHandler(sm *storage.Manager, digits *segment.Buffer, bh *bus.Handler, sweeps SweepCounter) *Handler {
	return &Handler{
		storage: sm,
		digits:  digits,
		bus:     bh,
		sweeps:  sweeps,
	}
}

// Frame represents a protocol frame.
type Frame struct {
	Cmd     uint8
	Payload []byte
}

// Response represents a protocol response.
type Response struct {
	Status  uint8
	Payload []byte
}

// ReadFrame reads and validates a frame from the reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	var sync [1]byte
	if _, err := io.ReadFull(r, sync[:]); err != nil {
		return nil, err
	}
	if sync[0] != SyncByte {
		return nil, ErrInvalidFrame
	}

	// CMD, LEN, then PAYLOAD and CRC in one read
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint16(header[1:])
	if length > MaxPayload {
		return nil, ErrInvalidFrame
	}

	body := make([]byte, int(length)+2)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	payload := body[:length]
	received := binary.LittleEndian.Uint16(body[length:])
	if received != calcCRC(append(header, payload...)) {
		return nil, ErrCRCMismatch
	}

	if length == 0 {
		payload = nil
	}
	return &Frame{
		Cmd:     header[0],
		Payload: payload,
	}, nil
}

// WriteResponse writes a response frame to the writer. The status takes
// the place of the command byte.
func WriteResponse(w io.Writer, resp *Response) error {
	return writeFrame(w, resp.Status, resp.Payload)
}

// WriteFrame writes a request frame (host side and tests).
func WriteFrame(w io.Writer, frame *Frame) error {
	return writeFrame(w, frame.Cmd, frame.Payload)
}

func writeFrame(w io.Writer, head uint8, payload []byte) error {
	buf := make([]byte, 4, 4+len(payload)+2)
	buf[0] = SyncByte
	buf[1] = head
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(payload)))
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint16(buf, calcCRC(buf[1:]))

	_, err := w.Write(buf)
	return err
}

// Handle processes a command frame and returns a response.
func (h *Handler) Handle(frame *Frame) *Response {
	if h.storage == nil && needsStorage(frame.Cmd) {
		return &Response{Status: StatusError}
	}

	switch frame.Cmd {
	case CmdPing:
		return h.handlePing(frame.Payload)
	case CmdGetDeviceConfig:
		return h.handleGetDeviceConfig()
	case CmdSetDeviceConfig:
		return h.handleSetDeviceConfig(frame.Payload)
	case CmdGetDigits:
		return h.handleGetDigits()
	case CmdSetDigits:
		return h.handleSetDigits(frame.Payload)
	case CmdClearDigits:
		return h.handleClearDigits()
	case CmdGetStorageStats:
		return h.handleGetStorageStats()
	case CmdFactoryReset:
		return h.handleFactoryReset()
	case CmdGetVersion:
		return h.handleGetVersion()
	case CmdGetBusStats:
		return h.handleGetBusStats()
	default:
		return &Response{Status: StatusInvalidCmd}
	}
}

// needsStorage reports whether cmd reads or writes flash.
func needsStorage(cmd uint8) bool {
	switch cmd {
	case CmdGetDeviceConfig, CmdSetDeviceConfig, CmdGetStorageStats, CmdFactoryReset:
		return true
	}
	return false
}

// handlePing responds with the same payload (echo).
func (h *Handler) handlePing(payload []byte) *Response {
	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetDeviceConfig returns the stored device configuration, or the
// build-time defaults when nothing is stored.
func (h *Handler) handleGetDeviceConfig() *Response {
	cfg := config.Defaults()
	if err := h.storage.LoadDevice(&cfg); err != nil {
		if !errors.Is(err, storage.ErrConfigNotFound) {
			return &Response{Status: StatusError}
		}
	}

	data, err := cfg.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// handleSetDeviceConfig validates and stores the device configuration.
// It takes effect on the next boot.
// Payload: [DeviceConfig:12 bytes]
func (h *Handler) handleSetDeviceConfig(payload []byte) *Response {
	if len(payload) != config.Size {
		return &Response{Status: StatusInvalidData}
	}

	var cfg config.DeviceConfig
	if err := cfg.UnmarshalBinary(payload); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	if cfg.Version != config.CurrentVersion {
		return &Response{Status: StatusVersionMismatch}
	}

	if err := config.Validate(&cfg, h.digits.Len()); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	if err := h.storage.SaveDevice(&cfg); err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{Status: StatusOK}
}

// handleGetDigits returns the current digit buffer.
// Response: [Count:1][Pattern0:1][Pattern1:1]...
func (h *Handler) handleGetDigits() *Response {
	patterns := h.digits.Snapshot(make([]segment.Pattern, 0, h.digits.Len()))

	payload := make([]byte, 1, 1+len(patterns))
	payload[0] = uint8(len(patterns))
	for _, p := range patterns {
		payload = append(payload, uint8(p))
	}

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleSetDigits applies (index, pattern) pairs exactly as a bus write would.
// Payload: [Index:1][Pattern:1]...
// Response: [Applied:1]
func (h *Handler) handleSetDigits(payload []byte) *Response {
	applied, _ := bus.Decode(h.digits, payload)

	return &Response{
		Status:  StatusOK,
		Payload: []byte{uint8(applied)},
	}
}

// handleClearDigits returns every digit to the idle pattern.
func (h *Handler) handleClearDigits() *Response {
	h.digits.Fill(segment.Idle)
	return &Response{Status: StatusOK}
}

// handleGetStorageStats returns storage statistics.
// Response: [Total:4][Used:4][Free:4][HasConfig:1]
func (h *Handler) handleGetStorageStats() *Response {
	stats, err := h.storage.GetStats()
	if err != nil {
		return &Response{Status: StatusError}
	}

	payload := make([]byte, 13)
	binary.LittleEndian.PutUint32(payload[0:], uint32(stats.TotalSpace))
	binary.LittleEndian.PutUint32(payload[4:], uint32(stats.UsedSpace))
	binary.LittleEndian.PutUint32(payload[8:], uint32(stats.FreeSpace))
	if stats.HasConfig {
		payload[12] = 1
	}

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleFactoryReset wipes the stored configuration.
func (h *Handler) handleFactoryReset() *Response {
	if err := h.storage.ForceWipe(); err != nil {
		return &Response{Status: StatusError}
	}
	return &Response{Status: StatusOK}
}

// handleGetVersion returns firmware and config version info.
// Response: [FirmwareVersionMajor:1][FirmwareVersionMinor:1][ConfigVersion:2]
func (h *Handler) handleGetVersion() *Response {
	payload := make([]byte, 4)
	payload[0] = FirmwareMajor
	payload[1] = FirmwareMinor
	binary.LittleEndian.PutUint16(payload[2:], config.CurrentVersion)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetBusStats returns the bus counters and completed sweeps.
// Response: [Messages:4][Applied:4][Dropped:4][Requests:4][Sweeps:4]
func (h *Handler) handleGetBusStats() *Response {
	stats := h.bus.Stats()

	var sweeps uint32
	if h.sweeps != nil {
		sweeps = h.sweeps.Sweeps()
	}

	payload := make([]byte, 20)
	binary.LittleEndian.PutUint32(payload[0:], stats.Messages)
	binary.LittleEndian.PutUint32(payload[4:], stats.Applied)
	binary.LittleEndian.PutUint32(payload[8:], stats.Dropped)
	binary.LittleEndian.PutUint32(payload[12:], stats.Requests)
	binary.LittleEndian.PutUint32(payload[16:], sweeps)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// calcCRC calculates CRC16-CCITT.
// Polynomial: 0x1021, Initial: 0xFFFF
func calcCRC(data []byte) uint16 {
	var crc uint16 = 0xFFFF

	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}
