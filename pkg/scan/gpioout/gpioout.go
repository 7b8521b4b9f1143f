// Package gpioout lets the scan engine drive periph.io output pins, for
// display banks wired to a Linux board's GPIO header instead of a
// microcontroller.
package gpioout

import (
	"periph.io/x/conn/v3/gpio"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/scan"
)

type outPin struct {
	p gpio.PinOut
}

// Set drives the pin. Errors are dropped: the scan engine has no runtime
// error path, a failing pin shows up as a wrong display.
func (o outPin) Set(high bool) {
	_ = o.p.Out(gpio.Level(high))
}

// Wrap adapts p to scan.Pin.
func Wrap(p gpio.PinOut) scan.Pin {
	return outPin{p: p}
}

// WrapAll adapts every pin in ps, keeping order.
func WrapAll(ps ...gpio.PinOut) []scan.Pin {
	out := make([]scan.Pin, len(ps))
	for i, p := range ps {
		out[i] = Wrap(p)
	}
	return out
}

var _ scan.Pin = outPin{}
