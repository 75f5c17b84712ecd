// Package timer implements the DIV/TIMA hardware timer, including the
// falling-edge counter input and the delayed TIMA reload on overflow.
package timer

import "github.com/FabianRolfMatthiasNoll/gbcore/internal/irq"

// Register addresses handled by this unit.
const (
	AddrDIV  = 0xFF04
	AddrTIMA = 0xFF05
	AddrTMA  = 0xFF06
	AddrTAC  = 0xFF07
)

// reloadDelay is the number of cycles TIMA reads back 0 after an overflow
// before it is reloaded from TMA and the interrupt is requested.
const reloadDelay = 4

// Timer advances a free-running 16-bit divider and derives TIMA increments
// from a falling edge of (enable AND selected divider bit). That edge
// detector is what makes DIV writes able to tick TIMA spuriously: resetting
// the divider can itself be a falling edge.
type Timer struct {
	div  uint16 // internal divider; DIV is the high byte
	tima byte
	tma  byte
	tac  byte // low 3 bits: enable | rate selector

	// overflow bookkeeping: while reloadPending, TIMA holds 0 and counter
	// edges are ignored until the reload fires (or a TIMA write cancels it).
	reloadPending   bool
	reloadCountdown int

	irq *irq.Controller
}

func New(ic *irq.Controller) *Timer { return &Timer{irq: ic} }

// input is the level feeding the TIMA edge detector.
func (t *Timer) input() bool {
	if t.tac&0x04 == 0 {
		return false
	}
	var bit uint
	switch t.tac & 0x03 {
	case 0:
		bit = 9
	case 1:
		bit = 3
	case 2:
		bit = 5
	default:
		bit = 7
	}
	return t.div&(1<<bit) != 0
}

func (t *Timer) increment() {
	t.tima++
	if t.tima == 0 {
		t.reloadPending = true
		t.reloadCountdown = reloadDelay
	}
}

// Tick advances the divider by the given number of cycles, stepping the
// edge detector and the pending-reload countdown one cycle at a time.
func (t *Timer) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if t.reloadPending {
			t.reloadCountdown--
			if t.reloadCountdown <= 0 {
				t.reloadPending = false
				t.tima = t.tma
				if t.irq != nil {
					t.irq.Request(irq.Timer)
				}
			}
		}
		prev := t.input()
		t.div++
		if prev && !t.input() && !t.reloadPending {
			t.increment()
		}
	}
}

// Read returns the value of one of the timer registers.
func (t *Timer) Read(addr uint16) byte {
	switch addr {
	case AddrDIV:
		return byte(t.div >> 8)
	case AddrTIMA:
		return t.tima
	case AddrTMA:
		return t.tma
	case AddrTAC:
		return 0xF8 | (t.tac & 0x07)
	}
	return 0xFF
}

// Write stores to one of the timer registers. DIV writes reset the whole
// internal divider; TAC writes can change the selected bit. Both go through
// the edge detector so the documented spurious TIMA increments happen.
func (t *Timer) Write(addr uint16, v byte) {
	switch addr {
	case AddrDIV:
		prev := t.input()
		t.div = 0
		if prev && !t.input() && !t.reloadPending {
			t.increment()
		}
	case AddrTIMA:
		t.tima = v
		// A write during the overflow window cancels the reload.
		t.reloadPending = false
	case AddrTMA:
		t.tma = v
	case AddrTAC:
		prev := t.input()
		t.tac = v & 0x07
		if prev && !t.input() && !t.reloadPending {
			t.increment()
		}
	}
}
