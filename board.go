//go:build rp2040

package main

import (
	"machine"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/bus"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/scan"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/segment"
)

// Pin map
//
//	GP0/GP1    UART0 log output
//	GP2/GP3    I2C1 debug panel (SDA/SCL)
//	GP4/GP5    I2C0 display bus target (SDA/SCL)
//	GP6-GP11   digit commons 0-5
//	GP12-GP19  segments A, B, C, D, E, F, G, DP
var (
	commonPins = [config.DigitCount]machine.Pin{
		machine.GP6, machine.GP7, machine.GP8,
		machine.GP9, machine.GP10, machine.GP11,
	}
	segmentPins = [segment.Count]machine.Pin{
		machine.GP12, machine.GP13, machine.GP14, machine.GP15,
		machine.GP16, machine.GP17, machine.GP18, machine.GP19,
	}
)

const (
	busSDA = machine.GP4
	busSCL = machine.GP5
)

// scanConfig configures the display pins as outputs and builds the engine
// wiring from the device config.
func scanConfig(cfg *config.DeviceConfig) scan.Config {
	sc := scan.Config{
		CommonAnode: cfg.CommonAnode(),
		Dwell:       cfg.Dwell(),
		Period:      cfg.Refresh(),
	}

	for _, p := range commonPins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		sc.Commons = append(sc.Commons, p)
	}
	for i, p := range segmentPins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		sc.Segments[i] = p
	}

	return sc
}

// i2cTarget adapts machine.I2C in target mode to bus.Target.
type i2cTarget struct {
	i2c *machine.I2C
}

func newI2CTarget(i2c *machine.I2C, address uint8) (*i2cTarget, error) {
	err := i2c.Configure(machine.I2CConfig{
		Frequency: config.BusFrequency,
		SDA:       busSDA,
		SCL:       busSCL,
		Mode:      machine.I2CModeTarget,
	})
	if err != nil {
		return nil, err
	}

	if err := i2c.Listen(uint16(address)); err != nil {
		return nil, err
	}

	return &i2cTarget{i2c: i2c}, nil
}

func (t *i2cTarget) WaitForEvent(buf []byte) (bus.Event, int, error) {
	evt, n, err := t.i2c.WaitForEvent(buf)
	if err != nil {
		return bus.EventNone, 0, err
	}

	switch evt {
	case machine.I2CReceive:
		return bus.EventReceive, n, nil
	case machine.I2CRequest:
		return bus.EventRequest, 0, nil
	case machine.I2CFinish:
		return bus.EventFinish, 0, nil
	}
	return bus.EventNone, 0, nil
}

func (t *i2cTarget) Reply(buf []byte) error {
	return t.i2c.Reply(buf)
}
