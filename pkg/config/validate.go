package config

import (
	"fmt"
	"time"
)

// 7-bit addresses outside this range are reserved by I2C.
const (
	minAddress uint8 = 0x08
	maxAddress uint8 = 0x77

	maxDwellUs uint16 = 1000
)

// Validate checks cfg for a board with the given number of digits.
// It does not mutate cfg.
func Validate(cfg *DeviceConfig, digits int) error {
	if cfg.Address < minAddress || cfg.Address > maxAddress {
		return fmt.Errorf(
			"address 0x%02x outside 0x%02x-0x%02x",
			cfg.Address,
			minAddress,
			maxAddress,
		)
	}

	if cfg.RefreshMs == 0 {
		return fmt.Errorf("refresh period must be at least 1ms")
	}

	if cfg.DwellUs == 0 || cfg.DwellUs > maxDwellUs {
		return fmt.Errorf(
			"dwell %dus outside 1-%dus",
			cfg.DwellUs,
			maxDwellUs,
		)
	}

	// A sweep holds every digit once; it has to fit inside the refresh period.
	sweep := time.Duration(digits) * cfg.Dwell()
	if sweep >= cfg.Refresh() {
		return fmt.Errorf(
			"sweep of %d digits takes %v, refresh period is %v",
			digits,
			sweep,
			cfg.Refresh(),
		)
	}

	return nil
}
