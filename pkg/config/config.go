// Package config defines the build-time defaults and the persisted device
// configuration of the multiplexer board.
// DeviceConfig is a fixed-size struct with zero-allocation binary encoding.
package config

import (
	"encoding/binary"
	"errors"
	"time"
)

// CurrentVersion is the config format version.
// Bump this when making breaking changes to the config format.
// When firmware boots and finds a different version in flash, the config is wiped.
const CurrentVersion uint16 = 1

// Build-time board constants.
const (
	// DigitCount is the number of digits on the board. Fixed for the life
	// of the firmware.
	DigitCount = 6

	// DefaultAddress must be unique per board sharing a bus.
	DefaultAddress uint8 = 0x09

	// BusFrequency is the maximum clock this board accepts, in Hz.
	BusFrequency uint32 = 400000

	DefaultRefreshMs   uint8  = 2
	DefaultDwellUs     uint16 = 2
	DefaultCommonAnode        = true
)

// Flags
const (
	FlagCommonAnode uint32 = 1 << 0
)

// DeviceConfig holds the settings read at boot.
// Total size: 12 bytes
// Layout:
//
//	[0-1]:   Version (uint16)
//	[2-5]:   Flags (uint32)
//	[6]:     Address (uint8)
//	[7]:     RefreshMs (uint8)
//	[8-9]:   DwellUs (uint16)
//	[10-11]: Reserved for future use
type DeviceConfig struct {
	Version   uint16 // Config format version
	Flags     uint32 // FlagCommonAnode, ...
	Address   uint8  // 7-bit bus address
	RefreshMs uint8  // Minimum time between sweeps
	DwellUs   uint16 // Time each digit stays selected
	Reserved  uint16 // Reserved for future use
}

// Size is the encoded length of a DeviceConfig.
const Size = 12

// Errors
var (
	ErrInvalidSize = errors.New("invalid config size")
)

// Defaults returns the build-time configuration.
func Defaults() DeviceConfig {
	cfg := DeviceConfig{
		Version:   CurrentVersion,
		Address:   DefaultAddress,
		RefreshMs: DefaultRefreshMs,
		DwellUs:   DefaultDwellUs,
	}
	cfg.SetCommonAnode(DefaultCommonAnode)
	return cfg
}

// CommonAnode reports whether "on" is driven low.
func (d *DeviceConfig) CommonAnode() bool {
	return d.Flags&FlagCommonAnode != 0
}

// SetCommonAnode sets the wiring polarity flag.
func (d *DeviceConfig) SetCommonAnode(on bool) {
	if on {
		d.Flags |= FlagCommonAnode
	} else {
		d.Flags &^= FlagCommonAnode
	}
}

// Refresh returns the refresh gate threshold.
func (d *DeviceConfig) Refresh() time.Duration {
	return time.Duration(d.RefreshMs) * time.Millisecond
}

// Dwell returns the per-digit hold time.
func (d *DeviceConfig) Dwell() time.Duration {
	return time.Duration(d.DwellUs) * time.Microsecond
}

// MarshalBinary implements encoding.BinaryMarshaler for DeviceConfig.
func (d *DeviceConfig) MarshalBinary() ([]byte, error) {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint16(buf[0:], d.Version)
	binary.LittleEndian.PutUint32(buf[2:], d.Flags)
	buf[6] = d.Address
	buf[7] = d.RefreshMs
	binary.LittleEndian.PutUint16(buf[8:], d.DwellUs)
	binary.LittleEndian.PutUint16(buf[10:], d.Reserved)
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for DeviceConfig.
func (d *DeviceConfig) UnmarshalBinary(data []byte) error {
	if len(data) < Size {
		return ErrInvalidSize
	}

	d.Version = binary.LittleEndian.Uint16(data[0:])
	d.Flags = binary.LittleEndian.Uint32(data[2:])
	d.Address = data[6]
	d.RefreshMs = data[7]
	d.DwellUs = binary.LittleEndian.Uint16(data[8:])
	d.Reserved = binary.LittleEndian.Uint16(data[10:])
	return nil
}
