package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/bus"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/scan"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/scan/gpioout"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/segment"
)

// resolvePins looks up every name in the periph.io GPIO registry.
func resolvePins(names []string) ([]gpio.PinOut, error) {
	pins := make([]gpio.PinOut, 0, len(names))
	for _, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpio pin %s not found", name)
		}
		pins = append(pins, p)
	}
	return pins, nil
}

// scanConfig drives every pin to its off level and builds the engine wiring.
func scanConfig(cfg *config.DeviceConfig, commons, segments []gpio.PinOut) (scan.Config, error) {
	if len(segments) != segment.Count {
		return scan.Config{}, fmt.Errorf("need %d segment pins, got %d", segment.Count, len(segments))
	}

	off := gpio.Level(cfg.CommonAnode())
	for _, p := range append(append([]gpio.PinOut(nil), commons...), segments...) {
		if err := p.Out(off); err != nil {
			return scan.Config{}, fmt.Errorf("%s: %w", p, err)
		}
	}

	sc := scan.Config{
		Commons:     gpioout.WrapAll(commons...),
		CommonAnode: cfg.CommonAnode(),
		Dwell:       cfg.Dwell(),
		Period:      cfg.Refresh(),
	}
	for i, p := range segments {
		sc.Segments[i] = gpioout.Wrap(p)
	}
	return sc, nil
}

// parseMessage decodes one line of whitespace separated hex bytes.
func parseMessage(line string) ([]byte, error) {
	fields := strings.Fields(line)
	if len(fields) > bus.MaxMessage {
		return nil, fmt.Errorf("message longer than %d bytes", bus.MaxMessage)
	}

	msg := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimPrefix(f, "0x"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("byte %q: %w", f, err)
		}
		msg = append(msg, byte(v))
	}
	return msg, nil
}

// feed hands every line of s to h as one bus write. Lines that do not parse
// are skipped, as a garbled bus transaction would be.
func feed(s *bufio.Scanner, h *bus.Handler) error {
	for s.Scan() {
		msg, err := parseMessage(s.Text())
		if err != nil || len(msg) == 0 {
			continue
		}
		h.Receive(msg)
	}
	return s.Err()
}
