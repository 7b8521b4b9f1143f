// Package segment holds the digit buffer shared by the bus handler and the
// scan engine. Each digit is one 8-bit segment pattern:
//
//	bit:     7  6  5  4  3  2  1  0
//	segment: DP G  F  E  D  C  B  A
//
// A set bit means the segment is lit, independent of how the board is wired.
//
// Cells are independently atomic. The bus handler writes one digit at a time
// while the scan engine reads every digit each sweep; a reader may observe a
// pattern up to one sweep old, which corrects itself on the next sweep.
package segment

import "sync/atomic"

// Pattern is the segment bitmap of one digit.
type Pattern uint8

// Segment is a bit position within a Pattern.
type Segment uint8

const (
	A Segment = iota
	B
	C
	D
	E
	F
	G
	DP
)

// Count is the number of segment lines per digit, decimal point included.
const Count = 8

// Idle is the power-on content of every digit (segment G only).
const Idle Pattern = 0x40

// Lit reports whether segment s is on in p.
func (p Pattern) Lit(s Segment) bool {
	return p&(1<<s) != 0
}

// Buffer is a fixed-length sequence of digit patterns.
type Buffer struct {
	cells []atomic.Uint32
}

// New creates a buffer of digits cells, all set to Idle.
// The length never changes afterwards.
func New(digits int) *Buffer {
	if digits < 0 {
		digits = 0
	}
	b := &Buffer{cells: make([]atomic.Uint32, digits)}
	b.Fill(Idle)
	return b
}

// Len returns the number of digits.
func (b *Buffer) Len() int {
	return len(b.cells)
}

// Write replaces the pattern of digit index. Out-of-range indices are
// ignored and reported by returning false.
func (b *Buffer) Write(index int, p Pattern) bool {
	if index < 0 || index >= len(b.cells) {
		return false
	}
	b.cells[index].Store(uint32(p))
	return true
}

// Read returns the pattern of digit index. index must be in [0, Len()).
func (b *Buffer) Read(index int) Pattern {
	return Pattern(b.cells[index].Load())
}

// Fill sets every digit to p.
func (b *Buffer) Fill(p Pattern) {
	for i := range b.cells {
		b.cells[i].Store(uint32(p))
	}
}

// Snapshot appends the current pattern of every digit to dst.
// Each digit is read atomically; the set as a whole is not.
func (b *Buffer) Snapshot(dst []Pattern) []Pattern {
	for i := range b.cells {
		dst = append(dst, Pattern(b.cells[i].Load()))
	}
	return dst
}
