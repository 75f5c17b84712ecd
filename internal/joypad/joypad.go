// Package joypad implements the JOYP register: group selection via bits
// 4/5 and active-low pressed-state readback in bits 0-3.
package joypad

import "github.com/FabianRolfMatthiasNoll/gbcore/internal/irq"

// Addr is the joypad register address.
const Addr = 0xFF00

// Button bits of the externally supplied pressed-state mask.
// Directions live in the low nibble, action buttons in the high nibble.
const (
	Right byte = 1 << 0
	Left  byte = 1 << 1
	Up    byte = 1 << 2
	Down  byte = 1 << 3

	A         byte = 1 << 4
	B         byte = 1 << 5
	SelectBtn byte = 1 << 6
	Start     byte = 1 << 7
)

// Joypad reflects currently pressed buttons into the selected group,
// inverted (0 = pressed), and raises the joypad interrupt when a button
// becomes pressed while its group is selected.
type Joypad struct {
	sel     byte // bits 4 (directions, active low) and 5 (buttons, active low)
	pressed byte // external state mask, 1 = pressed

	irq *irq.Controller
}

func New(ic *irq.Controller) *Joypad {
	// Power-on: neither group selected.
	return &Joypad{sel: 0x30, irq: ic}
}

// SetState replaces the pressed-button mask, supplied by the front end.
func (j *Joypad) SetState(mask byte) {
	newly := mask &^ j.pressed
	j.pressed = mask
	if j.irq == nil || newly == 0 {
		return
	}
	if j.sel&0x10 == 0 && newly&0x0F != 0 {
		j.irq.Request(irq.Joypad)
	}
	if j.sel&0x20 == 0 && newly&0xF0 != 0 {
		j.irq.Request(irq.Joypad)
	}
}

// Read returns JOYP: select bits as written, low nibble from the selected
// group with pressed buttons reading 0. With no group selected the nibble
// is all ones.
func (j *Joypad) Read() byte {
	nibble := byte(0x0F)
	if j.sel&0x10 == 0 { // directions
		nibble &= ^j.pressed & 0x0F
	}
	if j.sel&0x20 == 0 { // action buttons
		nibble &= ^(j.pressed >> 4) & 0x0F
	}
	return 0xC0 | j.sel | nibble
}

// Write stores the group-select bits; the pressed-state bits are read-only.
func (j *Joypad) Write(v byte) { j.sel = v & 0x30 }
