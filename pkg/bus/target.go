package bus

import (
	"context"
	"runtime"
)

// Event is a bus transaction reported by a target-mode peripheral.
type Event uint8

const (
	EventNone Event = iota
	EventReceive
	EventRequest
	EventFinish
)

// Target is a bus peripheral listening as a client device.
// TinyGo's machine.I2C in target mode fits this after event translation.
type Target interface {
	// WaitForEvent blocks until the controller addresses this device.
	// For EventReceive, buf[:n] holds the written bytes.
	WaitForEvent(buf []byte) (Event, int, error)

	// Reply sends buf in answer to an EventRequest.
	Reply(buf []byte) error
}

// Serve dispatches target events until ctx is cancelled.
// Transport errors drop the transaction in progress and are not reported.
func (h *Handler) Serve(ctx context.Context, t Target) error {
	var buf [MaxMessage]byte
	var reply [1]byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		evt, n, err := t.WaitForEvent(buf[:])
		if err != nil {
			// A failing peripheral must not starve the scan loop.
			runtime.Gosched()
			continue
		}

		switch evt {
		case EventReceive:
			if n > len(buf) {
				n = len(buf)
			}
			h.Receive(buf[:n])
		case EventRequest:
			reply[0] = h.Request()
			_ = t.Reply(reply[:])
		}
	}
}
