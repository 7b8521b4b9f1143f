package scan

import (
	"testing"
	"time"

	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/bus"
	"github.com/tuffrabit/tinygo-megaplexer-rp2040/pkg/segment"
)

// bench is a simulated display bank. It checks the select invariant after
// every pin change and records what each digit shows during its dwell.
type bench struct {
	commons  []*fakePin
	segments [segment.Count]*fakePin
	anode    bool

	maxSelected int
	rendered    []frame
	onDwell     func(digit int)
}

type frame struct {
	digit   int
	pattern segment.Pattern
}

type fakePin struct {
	b    *bench
	high bool
}

func (p *fakePin) Set(high bool) {
	p.high = high
	if n := p.b.selected(); n > p.b.maxSelected {
		p.b.maxSelected = n
	}
}

func newBench(digits int, anode bool) *bench {
	b := &bench{anode: anode}
	for i := 0; i < digits; i++ {
		b.commons = append(b.commons, &fakePin{b: b})
	}
	for i := range b.segments {
		b.segments[i] = &fakePin{b: b}
	}
	return b
}

// on decodes an electrical level back into a logical state.
func (b *bench) on(high bool) bool {
	return high != b.anode
}

func (b *bench) selected() int {
	n := 0
	for _, p := range b.commons {
		if b.on(p.high) {
			n++
		}
	}
	return n
}

func (b *bench) active() int {
	for i, p := range b.commons {
		if b.on(p.high) {
			return i
		}
	}
	return -1
}

func (b *bench) pattern() segment.Pattern {
	var p segment.Pattern
	for i, pin := range b.segments {
		if b.on(pin.high) {
			p |= 1 << i
		}
	}
	return p
}

func (b *bench) delay(time.Duration) {
	d := b.active()
	b.rendered = append(b.rendered, frame{digit: d, pattern: b.pattern()})
	if b.onDwell != nil {
		b.onDwell(d)
	}
}

func (b *bench) config() Config {
	cfg := Config{
		CommonAnode: b.anode,
		Dwell:       2 * time.Microsecond,
		Period:      2 * time.Millisecond,
		Delay:       b.delay,
	}
	for _, p := range b.commons {
		cfg.Commons = append(cfg.Commons, p)
	}
	for i, p := range b.segments {
		cfg.Segments[i] = p
	}
	return cfg
}

func newTestEngine(t *testing.T, digits int, anode bool) (*Engine, *bench, *segment.Buffer) {
	buf := segment.New(digits)
	b := newBench(digits, anode)
	e, err := New(buf, b.config())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e, b, buf
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"too few commons", func(c *Config) { c.Commons = c.Commons[:5] }, ErrPinCount},
		{"nil common", func(c *Config) { c.Commons[2] = nil }, ErrNilPin},
		{"nil segment", func(c *Config) { c.Segments[segment.DP] = nil }, ErrNilPin},
		{"zero dwell", func(c *Config) { c.Dwell = 0 }, ErrTiming},
		{"negative period", func(c *Config) { c.Period = -time.Millisecond }, ErrTiming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newBench(6, true).config()
			tt.mutate(&cfg)

			_, err := New(segment.New(6), cfg)
			if err != tt.wantErr {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultDelayIsBusyWait(t *testing.T) {
	cfg := newBench(1, false).config()
	cfg.Delay = nil

	e, err := New(segment.New(1), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if e.delay == nil {
		t.Fatal("Expected a default delay")
	}

	start := time.Now()
	e.delay(50 * time.Microsecond)
	if time.Since(start) < 50*time.Microsecond {
		t.Error("Busy wait returned early")
	}
}

func TestSweepNeverDoubleSelects(t *testing.T) {
	for _, anode := range []bool{false, true} {
		e, b, buf := newTestEngine(t, 6, anode)
		e.Blank()

		for sweep := 0; sweep < 20; sweep++ {
			buf.Write(sweep%6, segment.Pattern(sweep*37))
			b.maxSelected = 0
			e.Sweep()
			e.Sweep()
			if b.maxSelected > 1 {
				t.Fatalf("anode=%v: %d commons selected at once", anode, b.maxSelected)
			}
		}
	}
}

func TestSweepOrderAndContent(t *testing.T) {
	e, b, buf := newTestEngine(t, 6, true)
	for i := 0; i < 6; i++ {
		buf.Write(i, segment.Pattern(1<<i))
	}

	e.Sweep()

	if len(b.rendered) != 6 {
		t.Fatalf("Expected 6 frames, got %d", len(b.rendered))
	}
	for i, f := range b.rendered {
		if f.digit != i {
			t.Errorf("Frame %d: expected digit %d selected, got %d", i, i, f.digit)
		}
		if f.pattern != segment.Pattern(1<<i) {
			t.Errorf("Frame %d: expected 0x%02x, got 0x%02x", i, 1<<i, f.pattern)
		}
	}

	if e.Sweeps() != 1 {
		t.Errorf("Expected 1 sweep counted, got %d", e.Sweeps())
	}
}

func TestLastDigitStaysSelected(t *testing.T) {
	e, b, _ := newTestEngine(t, 6, false)

	e.Sweep()

	if got := b.active(); got != 5 {
		t.Errorf("Expected digit 5 to remain selected, got %d", got)
	}
	if b.selected() != 1 {
		t.Errorf("Expected exactly one digit selected, got %d", b.selected())
	}
}

func TestWriteVisibleWithinOneSweep(t *testing.T) {
	e, b, buf := newTestEngine(t, 6, false)

	// Land writes while digit 1 is on display: digit 0 was already drawn
	// this sweep, digit 3 was not.
	wrote := false
	b.onDwell = func(digit int) {
		if digit == 1 && !wrote {
			buf.Write(0, 0x5B)
			buf.Write(3, 0x4F)
			wrote = true
		}
	}

	e.Sweep()
	first := b.rendered
	if first[0].pattern != segment.Idle {
		t.Errorf("Digit 0 was drawn before the write, expected idle, got 0x%02x", first[0].pattern)
	}
	if first[3].pattern != 0x4F {
		t.Errorf("Digit 3 drawn after the write, expected 0x4f, got 0x%02x", first[3].pattern)
	}

	b.rendered = nil
	e.Sweep()
	if b.rendered[0].pattern != 0x5B {
		t.Errorf("Digit 0 must show the write on the next sweep, got 0x%02x", b.rendered[0].pattern)
	}
}

func TestPolaritySymmetry(t *testing.T) {
	cathode, cb, cbuf := newTestEngine(t, 6, false)
	anode, ab, abuf := newTestEngine(t, 6, true)

	for i, p := range []segment.Pattern{0x3F, 0x06, 0x5B, 0x80, 0x00, 0xFF} {
		cbuf.Write(i, p)
		abuf.Write(i, p)
	}

	cathode.Sweep()
	anode.Sweep()

	for i := range cb.rendered {
		if cb.rendered[i] != ab.rendered[i] {
			t.Errorf("Frame %d: cathode %+v, anode %+v", i, cb.rendered[i], ab.rendered[i])
		}
	}

	// Raw levels are exact inverses
	for i := range cb.segments {
		if cb.segments[i].high == ab.segments[i].high {
			t.Errorf("Segment %d: levels should be inverted between polarities", i)
		}
	}
	for i := range cb.commons {
		if cb.commons[i].high == ab.commons[i].high {
			t.Errorf("Common %d: levels should be inverted between polarities", i)
		}
	}
}

func TestCommonAnodeLevels(t *testing.T) {
	e, b, buf := newTestEngine(t, 1, true)
	buf.Write(0, 0x01)

	e.Sweep()

	if b.commons[0].high {
		t.Error("Selected common should be driven low on a common-anode board")
	}
	if b.segments[segment.A].high {
		t.Error("Lit segment should be driven low on a common-anode board")
	}
	if !b.segments[segment.B].high {
		t.Error("Dark segment should be driven high on a common-anode board")
	}
}

func TestBlank(t *testing.T) {
	e, b, _ := newTestEngine(t, 6, true)

	e.Sweep()
	e.Blank()

	if b.selected() != 0 {
		t.Errorf("Expected no digit selected, got %d", b.selected())
	}
	if b.pattern() != 0 {
		t.Errorf("Expected all segments off, got 0x%02x", b.pattern())
	}
}

func TestTickGate(t *testing.T) {
	e, _, _ := newTestEngine(t, 6, false)
	start := time.Now()

	if !e.Tick(start) {
		t.Fatal("First tick should sweep")
	}
	if e.Tick(start.Add(time.Millisecond)) {
		t.Error("Tick inside the period should not sweep")
	}
	if e.Tick(start.Add(2 * time.Millisecond)) {
		t.Error("Tick exactly at the period should not sweep")
	}
	if !e.Tick(start.Add(2*time.Millisecond + time.Nanosecond)) {
		t.Error("Tick past the period should sweep")
	}
	if e.Sweeps() != 2 {
		t.Errorf("Expected 2 sweeps, got %d", e.Sweeps())
	}
}

func TestEndToEnd(t *testing.T) {
	e, b, buf := newTestEngine(t, 6, true)
	h := bus.New(buf)

	for i := 0; i < 6; i++ {
		if buf.Read(i) != segment.Idle {
			t.Fatalf("Digit %d not idle at startup", i)
		}
	}

	h.Receive([]byte{0, 0x3F, 1, 0x06})
	e.Sweep()

	zero := b.rendered[0].pattern
	for _, s := range []segment.Segment{segment.A, segment.B, segment.C, segment.D, segment.E, segment.F} {
		if !zero.Lit(s) {
			t.Errorf("Digit 0: segment %d should be on", s)
		}
	}
	if zero.Lit(segment.G) || zero.Lit(segment.DP) {
		t.Error("Digit 0: G and DP should be off")
	}

	if one := b.rendered[1].pattern; one != 0x06 {
		t.Errorf("Digit 1: expected only B and C, got 0x%02x", one)
	}

	for i := 2; i < 6; i++ {
		if b.rendered[i].pattern != segment.Idle {
			t.Errorf("Digit %d: expected idle pattern, got 0x%02x", i, b.rendered[i].pattern)
		}
	}

	// Out-of-range pair leaves everything as it was
	b.rendered = nil
	h.Receive([]byte{9, 0xFF})
	e.Sweep()
	if b.rendered[0].pattern != 0x3F || b.rendered[1].pattern != 0x06 || b.rendered[5].pattern != segment.Idle {
		t.Error("Out-of-range write changed the display")
	}
}

func BenchmarkSweep(b *testing.B) {
	buf := segment.New(6)
	bb := newBench(6, true)
	cfg := bb.config()
	cfg.Delay = func(time.Duration) {}
	e, err := New(buf, cfg)
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Sweep()
	}
}
