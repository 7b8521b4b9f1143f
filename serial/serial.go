// Package serial runs the maintenance protocol over the USB CDC port.
package serial

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/display"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/protocol"
)

// Port is the byte stream the link runs on. machine.Serial satisfies it.
type Port interface {
	ReadByte() (byte, error)
	Buffered() int
	Write(data []byte) (int, error)
}

// Link reads request frames from a Port and writes back responses.
type Link struct {
	port    Port
	handler *protocol.Handler
	disp    *display.Manager
	format  *display.FrameFormatter
	log     *slog.Logger
}

// NewLink creates a link. disp and log may be nil.
func NewLink(port Port, h *protocol.Handler, disp *display.Manager, log *slog.Logger) *Link {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Link{
		port:    port,
		handler: h,
		disp:    disp,
		format:  display.NewFrameFormatter(),
		log:     log,
	}
}

// HandleOne reads one frame from r, dispatches it and writes the response.
// A frame with a bad CRC is answered with StatusCRCError. A byte that is not
// a sync byte is skipped so the next call can resync.
func (l *Link) HandleOne(r io.Reader) error {
	frame, err := protocol.ReadFrame(r)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrCRCMismatch):
			l.log.Warn("maintenance frame rejected", "err", err)
			l.showError(err)
			return l.respond(&protocol.Response{Status: protocol.StatusCRCError})
		case errors.Is(err, protocol.ErrInvalidFrame):
			l.log.Debug("skipping byte outside frame")
			return nil
		default:
			return err
		}
	}

	if l.disp != nil {
		l.disp.ShowIncomingFrame(l.format.FormatIncoming(frame))
	}

	resp := l.handler.Handle(frame)
	if resp.Status != protocol.StatusOK {
		l.log.Info("maintenance command failed", "cmd", frame.Cmd, "status", resp.Status)
	}

	return l.respond(resp)
}

// Serve handles frames until ctx is cancelled.
func (l *Link) Serve(ctx context.Context) error {
	r := &pollReader{ctx: ctx, port: l.port}
	for {
		if err := l.HandleOne(r); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Warn("maintenance link error", "err", err)
		}
	}
}

func (l *Link) respond(resp *protocol.Response) error {
	if l.disp != nil {
		l.disp.ShowOutgoingResponse(l.format.FormatOutgoing(resp))
	}
	return protocol.WriteResponse(l.port, resp)
}

func (l *Link) showError(err error) {
	if l.disp != nil {
		l.disp.ShowError(l.format.FormatError(err))
	}
}

// pollReader adapts a non-blocking Port to io.Reader. While the port is
// empty it yields to other goroutines.
type pollReader struct {
	ctx  context.Context
	port Port
}

func (p *pollReader) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	for p.port.Buffered() == 0 {
		if err := p.ctx.Err(); err != nil {
			return 0, err
		}
		runtime.Gosched()
	}

	n := 0
	for n < len(b) && p.port.Buffered() > 0 {
		c, err := p.port.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		b[n] = c
		n++
	}
	return n, nil
}
