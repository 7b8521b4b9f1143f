// Package scan multiplexes the digit buffer onto the display pins.
//
// Segment lines are wired in parallel across all digits and each digit has
// its own common line. A sweep selects one digit at a time and drives the
// shared segment lines with that digit's pattern, so DigitCount+8 pins serve
// DigitCount*8 segments. Persistence of vision blends the sweeps into a
// steady display as long as they repeat every couple of milliseconds.
//
// Every digit selection is preceded by deselecting all commons, so two
// digits are never lit together (ghosting).
package scan

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/segment"
)

var (
	ErrPinCount = errors.New("scan: common pin count does not match digit count")
	ErrNilPin   = errors.New("scan: pin not set")
	ErrTiming   = errors.New("scan: dwell and period must be positive")
)

// Pin is a digital output. machine.Pin satisfies it.
type Pin interface {
	Set(high bool)
}

// Config describes the wiring and timing of a display bank.
type Config struct {
	Commons  []Pin              // one per digit, index order
	Segments [segment.Count]Pin // A, B, C, D, E, F, G, DP

	// CommonAnode inverts the electrical level of every common and segment
	// line: "on" is driven low.
	CommonAnode bool

	Dwell  time.Duration // how long each digit stays selected
	Period time.Duration // minimum time between sweep starts

	// Delay holds a digit for Dwell. Defaults to a busy wait.
	Delay func(time.Duration)
}

// Engine drives one display bank.
type Engine struct {
	digits   *segment.Buffer
	commons  []Pin
	segments [segment.Count]Pin
	anode    bool
	dwell    time.Duration
	period   time.Duration
	delay    func(time.Duration)

	last   time.Time
	sweeps atomic.Uint32
}

// New creates an engine reading from buf.
func New(buf *segment.Buffer, cfg Config) (*Engine, error) {
	if len(cfg.Commons) != buf.Len() {
		return nil, ErrPinCount
	}
	for _, p := range cfg.Commons {
		if p == nil {
			return nil, ErrNilPin
		}
	}
	for _, p := range cfg.Segments {
		if p == nil {
			return nil, ErrNilPin
		}
	}
	if cfg.Dwell <= 0 || cfg.Period <= 0 {
		return nil, ErrTiming
	}

	delay := cfg.Delay
	if delay == nil {
		delay = busyWait
	}

	return &Engine{
		digits:   buf,
		commons:  cfg.Commons,
		segments: cfg.Segments,
		anode:    cfg.CommonAnode,
		dwell:    cfg.Dwell,
		period:   cfg.Period,
		delay:    delay,
	}, nil
}

// Level returns the electrical level that puts a line in the logical on
// state given by on.
func (e *Engine) Level(on bool) bool {
	if e.anode {
		return !on
	}
	return on
}

// Blank deselects every digit and turns every segment off.
func (e *Engine) Blank() {
	e.deselectAll()
	for _, p := range e.segments {
		p.Set(e.Level(false))
	}
}

// Sweep lights every digit once, in index order. The last digit stays
// selected until the next sweep starts.
func (e *Engine) Sweep() {
	for i := range e.commons {
		e.deselectAll()
		e.commons[i].Set(e.Level(true))

		p := e.digits.Read(i)
		for s, pin := range e.segments {
			pin.Set(e.Level(p.Lit(segment.Segment(s))))
		}

		e.delay(e.dwell)
	}
	e.sweeps.Add(1)
}

// Tick sweeps if more than Period has passed since the previous sweep
// started, and reports whether it did. It never sleeps.
func (e *Engine) Tick(now time.Time) bool {
	if !e.last.IsZero() && now.Sub(e.last) <= e.period {
		return false
	}
	e.last = now
	e.Sweep()
	return true
}

// Sweeps returns the number of completed sweeps.
func (e *Engine) Sweeps() uint32 {
	return e.sweeps.Load()
}

func (e *Engine) deselectAll() {
	off := e.Level(false)
	for _, p := range e.commons {
		p.Set(off)
	}
}

// busyWait spins for d without yielding to the scheduler.
func busyWait(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}
