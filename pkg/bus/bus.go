// Package bus decodes display writes arriving on the two-wire bus.
//
// Write payload:
//
//	[INDEX:1][PATTERN:1][INDEX:1][PATTERN:1]...
//	- INDEX: digit position, 0 .. DigitCount-1
//	- PATTERN: segment bits, bit0 = A ... bit6 = G, bit7 = DP
//
// Pairs with an out-of-range index and a trailing odd byte are dropped.
// Nothing is reported back to the bus controller.
package bus

import (
	"sync/atomic"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/segment"
)

// Placeholder is the byte returned to read requests. Reserved.
const Placeholder byte = 42

// MaxMessage is the receive buffer size for one bus transaction.
const MaxMessage = 64

// Handler applies bus messages to a digit buffer.
type Handler struct {
	digits *segment.Buffer

	messages atomic.Uint32
	applied  atomic.Uint32
	dropped  atomic.Uint32
	requests atomic.Uint32
}

// Stats are diagnostic counters since boot.
type Stats struct {
	Messages uint32 // write transactions received
	Applied  uint32 // pairs written to the buffer
	Dropped  uint32 // out-of-range pairs plus discarded odd bytes
	Requests uint32 // read transactions answered
}

// New creates a handler writing into digits.
func New(digits *segment.Buffer) *Handler {
	return &Handler{
		digits: digits,
	}
}

// Receive consumes msg as (index, pattern) pairs and returns how many pairs
// were written. It runs in the bus event path: no blocking, no allocation.
func (h *Handler) Receive(msg []byte) int {
	h.messages.Add(1)

	applied, dropped := Decode(h.digits, msg)
	h.applied.Add(uint32(applied))
	h.dropped.Add(uint32(dropped))
	return applied
}

// Decode writes the (index, pattern) pairs of msg into digits. It returns
// the number of pairs written and the number of pairs or odd bytes dropped.
func Decode(digits *segment.Buffer, msg []byte) (applied, dropped int) {
	for len(msg) > 1 {
		if digits.Write(int(msg[0]), segment.Pattern(msg[1])) {
			applied++
		} else {
			dropped++
		}
		msg = msg[2:]
	}
	if len(msg) == 1 {
		dropped++
	}
	return applied, dropped
}

// Request answers a bus read.
func (h *Handler) Request() byte {
	h.requests.Add(1)
	return Placeholder
}

// Stats returns the current counters.
func (h *Handler) Stats() Stats {
	return Stats{
		Messages: h.messages.Load(),
		Applied:  h.applied.Load(),
		Dropped:  h.dropped.Load(),
		Requests: h.requests.Load(),
	}
}
