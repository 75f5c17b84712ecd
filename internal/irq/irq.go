// Package irq implements the interrupt controller: the IE/IF bit pairs
// and the fixed priority order used when the CPU services an interrupt.
package irq

// Interrupt identifies one of the five interrupt sources. The value is
// the bit position in IE/IF and also determines service priority
// (lower bit wins).
type Interrupt int

const (
	VBlank Interrupt = iota
	Stat
	Timer
	Serial
	Joypad

	numInterrupts
)

// Vector returns the fixed service vector for the interrupt.
func (i Interrupt) Vector() uint16 { return 0x0040 + uint16(i)*8 }

func (i Interrupt) String() string {
	switch i {
	case VBlank:
		return "VBlank"
	case Stat:
		return "STAT"
	case Timer:
		return "Timer"
	case Serial:
		return "Serial"
	case Joypad:
		return "Joypad"
	}
	return "?"
}

// Controller holds the interrupt-enable and interrupt-request bitfields.
// Devices set request bits via Request; only the CPU clears them, through
// Acknowledge, during its service sequence. The IME flag lives in the CPU,
// not here: it gates servicing, not requesting.
type Controller struct {
	enable  byte // IE, 0xFFFF
	request byte // IF, 0xFF0F (low 5 bits)
}

func New() *Controller { return &Controller{} }

// Request sets the IF bit for the given interrupt.
func (c *Controller) Request(i Interrupt) {
	if i >= 0 && i < numInterrupts {
		c.request |= 1 << uint(i)
	}
}

// Pending returns the highest-priority interrupt that is both enabled and
// requested. The second result is false when nothing is pending.
func (c *Controller) Pending() (Interrupt, bool) {
	pend := c.enable & c.request & 0x1F
	if pend == 0 {
		return 0, false
	}
	for i := Interrupt(0); i < numInterrupts; i++ {
		if pend&(1<<uint(i)) != 0 {
			return i, true
		}
	}
	return 0, false
}

// AnyRequested reports whether IE&IF is non-zero regardless of IME.
// HALT wakes on this condition even with interrupts globally disabled.
func (c *Controller) AnyRequested() bool { return c.enable&c.request&0x1F != 0 }

// Acknowledge clears the IF bit for the interrupt being serviced.
func (c *Controller) Acknowledge(i Interrupt) {
	if i >= 0 && i < numInterrupts {
		c.request &^= 1 << uint(i)
	}
}

// ReadIE returns IE as last written.
func (c *Controller) ReadIE() byte { return c.enable }

// WriteIE stores IE. All 8 bits are kept, matching hardware; only the low
// 5 participate in servicing.
func (c *Controller) WriteIE(v byte) { c.enable = v }

// ReadIF returns IF with the unused high bits set, as on hardware.
func (c *Controller) ReadIF() byte { return 0xE0 | (c.request & 0x1F) }

// WriteIF replaces the request bits. The CPU may clear pending requests
// this way; devices must use Request.
func (c *Controller) WriteIF(v byte) { c.request = v & 0x1F }
