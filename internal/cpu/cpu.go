// Package cpu implements the SM83 core: the full base and CB-prefixed
// opcode set, the IME/EI delay rules, HALT and the interrupt service
// sequence. Step executes exactly one instruction (or one service
// sequence) and reports how many machine cycles it took; the caller is
// responsible for advancing the rest of the system by that amount.
package cpu

import (
	"github.com/pkg/errors"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/bus"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/irq"
)

const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

// CPU is the SM83 register file plus execution state.
type CPU struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME    bool
	halted bool
	// EI takes effect after the instruction that follows it.
	eiPending bool

	bus *bus.Bus
}

func New(b *bus.Bus) *CPU {
	return &CPU{bus: b, SP: 0xFFFE}
}

// SetPC sets the program counter, for tests and boot stubs.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Bus exposes the attached bus.
func (c *CPU) Bus() *bus.Bus { return c.bus }

// Halted reports whether the core is sleeping in HALT.
func (c *CPU) Halted() bool { return c.halted }

// ResetNoBoot loads the registers with the DMG post-boot-ROM state, for
// running cartridges without a boot ROM image.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.IME = false
	c.halted = false
	c.eiPending = false
}

// --- memory and register plumbing ---

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write(addr, v) }

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | hi<<8
}

func (c *CPU) read16(addr uint16) uint16 {
	return uint16(c.read8(addr)) | uint16(c.read8(addr+1))<<8
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

// reg8 reads the operand encoded as 0..7 in opcodes; index 6 is (HL).
func (c *CPU) reg8(idx byte) byte {
	switch idx {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.getHL())
	default:
		return c.A
	}
}

func (c *CPU) setReg8(idx, v byte) {
	switch idx {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.getHL(), v)
	default:
		c.A = v
	}
}

func (c *CPU) setZNHC(z, n, h, cy bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if cy {
		f |= flagC
	}
	c.F = f
}

// cond evaluates a branch condition encoded as 0..3: NZ, Z, NC, C.
func (c *CPU) cond(cc byte) bool {
	switch cc {
	case 0:
		return c.F&flagZ == 0
	case 1:
		return c.F&flagZ != 0
	case 2:
		return c.F&flagC == 0
	default:
		return c.F&flagC != 0
	}
}

// --- ALU ---

func (c *CPU) add8(v byte, carryIn bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(c.A) + uint16(v) + uint16(ci)
	h := (c.A&0x0F)+(v&0x0F)+ci > 0x0F
	c.A = byte(r)
	c.setZNHC(c.A == 0, false, h, r > 0xFF)
}

// sub8 computes A-v-carry; when store is false only the flags change (CP).
func (c *CPU) sub8(v byte, carryIn, store bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(c.A) - int16(v) - int16(ci)
	h := c.A&0x0F < v&0x0F+ci
	res := byte(r)
	if store {
		c.A = res
	}
	c.setZNHC(res == 0, true, h, r < 0)
}

// alu dispatches the eight accumulator operations by the opcode's y field.
func (c *CPU) alu(y, v byte) {
	switch y {
	case 0: // ADD
		c.add8(v, false)
	case 1: // ADC
		c.add8(v, c.F&flagC != 0)
	case 2: // SUB
		c.sub8(v, false, true)
	case 3: // SBC
		c.sub8(v, c.F&flagC != 0, true)
	case 4: // AND
		c.A &= v
		c.setZNHC(c.A == 0, false, true, false)
	case 5: // XOR
		c.A ^= v
		c.setZNHC(c.A == 0, false, false, false)
	case 6: // OR
		c.A |= v
		c.setZNHC(c.A == 0, false, false, false)
	case 7: // CP
		c.sub8(v, false, false)
	}
}

func (c *CPU) inc8(idx byte) {
	old := c.reg8(idx)
	v := old + 1
	c.setReg8(idx, v)
	c.setZNHC(v == 0, false, old&0x0F == 0x0F, c.F&flagC != 0)
}

func (c *CPU) dec8(idx byte) {
	old := c.reg8(idx)
	v := old - 1
	c.setReg8(idx, v)
	c.setZNHC(v == 0, true, old&0x0F == 0, c.F&flagC != 0)
}

func (c *CPU) addHL(v uint16) {
	hl := c.getHL()
	r := uint32(hl) + uint32(v)
	h := hl&0x0FFF+v&0x0FFF > 0x0FFF
	c.setHL(uint16(r))
	c.setZNHC(c.F&flagZ != 0, false, h, r > 0xFFFF)
}

// addSPr8 computes SP+r8 with the H/C flags taken from the unsigned
// low-byte addition, which is what the hardware does even for negative
// offsets.
func (c *CPU) addSPr8() uint16 {
	off := int8(c.fetch8())
	lo := byte(c.SP)
	h := lo&0x0F+byte(off)&0x0F > 0x0F
	cy := uint16(lo)+uint16(byte(off)) > 0xFF
	c.setZNHC(false, false, h, cy)
	return uint16(int32(c.SP) + int32(off))
}

// daa adjusts A to packed BCD after an addition or subtraction.
func (c *CPU) daa() {
	a := c.A
	cf := c.F&flagC != 0
	if c.F&flagN == 0 {
		if cf || a > 0x99 {
			a += 0x60
			cf = true
		}
		if c.F&flagH != 0 || a&0x0F > 0x09 {
			a += 0x06
		}
	} else {
		if cf {
			a -= 0x60
		}
		if c.F&flagH != 0 {
			a -= 0x06
		}
	}
	c.A = a
	c.setZNHC(a == 0, c.F&flagN != 0, false, cf)
}

// --- interrupts ---

// service runs the interrupt dispatch sequence: clear IME and the IF
// bit, push PC and jump to the vector.
func (c *CPU) service(i irq.Interrupt) int {
	c.halted = false
	c.IME = false
	c.bus.IRQ().Acknowledge(i)
	c.push16(c.PC)
	c.PC = i.Vector()
	return 20
}

// Step runs one instruction or interrupt service sequence and returns
// the machine cycles consumed. A halted core with nothing pending burns
// a cycle quantum. Decoding an illegal opcode is a fatal error.
func (c *CPU) Step() (int, error) {
	if c.halted {
		// HALT ends as soon as an enabled interrupt is requested, even
		// with IME off; in that case execution just continues and the
		// request bit stays set.
		if !c.bus.IRQ().AnyRequested() {
			return 4, nil
		}
		c.halted = false
	}

	if c.IME {
		if i, ok := c.bus.IRQ().Pending(); ok {
			return c.service(i), nil
		}
	}

	delayedEI := c.eiPending
	op := c.fetch8()
	cycles, err := c.execute(op)
	if delayedEI && c.eiPending {
		c.IME = true
		c.eiPending = false
	}
	return cycles, err
}

func (c *CPU) execute(op byte) (int, error) {
	// Regular patterns first: the quarter of the map that is LD r,r',
	// the ALU block, and the INC/DEC/LD r,d8/RST columns.
	switch {
	case op == 0x76: // HALT sits in the middle of the LD block
		c.halted = true
		return 4, nil
	case op >= 0x40 && op < 0x80: // LD r,r'
		d := (op >> 3) & 7
		s := op & 7
		c.setReg8(d, c.reg8(s))
		if d == 6 || s == 6 {
			return 8, nil
		}
		return 4, nil
	case op >= 0x80 && op < 0xC0: // ALU A,r
		s := op & 7
		c.alu((op>>3)&7, c.reg8(s))
		if s == 6 {
			return 8, nil
		}
		return 4, nil
	case op&0xC7 == 0x04: // INC r
		idx := (op >> 3) & 7
		c.inc8(idx)
		if idx == 6 {
			return 12, nil
		}
		return 4, nil
	case op&0xC7 == 0x05: // DEC r
		idx := (op >> 3) & 7
		c.dec8(idx)
		if idx == 6 {
			return 12, nil
		}
		return 4, nil
	case op&0xC7 == 0x06: // LD r,d8
		idx := (op >> 3) & 7
		c.setReg8(idx, c.fetch8())
		if idx == 6 {
			return 12, nil
		}
		return 8, nil
	case op&0xC7 == 0xC7: // RST
		c.push16(c.PC)
		c.PC = uint16(op & 0x38)
		return 16, nil
	}

	switch op {
	case 0x00: // NOP
		return 4, nil
	case 0x10: // STOP; treated as a 2-byte NOP, we have no speed switch
		c.fetch8()
		return 4, nil

	// 16-bit loads
	case 0x01:
		c.setBC(c.fetch16())
		return 12, nil
	case 0x11:
		c.setDE(c.fetch16())
		return 12, nil
	case 0x21:
		c.setHL(c.fetch16())
		return 12, nil
	case 0x31:
		c.SP = c.fetch16()
		return 12, nil
	case 0x08: // LD (a16),SP
		c.write16(c.fetch16(), c.SP)
		return 20, nil
	case 0xF9: // LD SP,HL
		c.SP = c.getHL()
		return 8, nil
	case 0xF8: // LD HL,SP+r8
		c.setHL(c.addSPr8())
		return 12, nil
	case 0xE8: // ADD SP,r8
		c.SP = c.addSPr8()
		return 16, nil

	// A <-> memory
	case 0x02:
		c.write8(c.getBC(), c.A)
		return 8, nil
	case 0x12:
		c.write8(c.getDE(), c.A)
		return 8, nil
	case 0x0A:
		c.A = c.read8(c.getBC())
		return 8, nil
	case 0x1A:
		c.A = c.read8(c.getDE())
		return 8, nil
	case 0x22: // LD (HL+),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl + 1)
		return 8, nil
	case 0x2A: // LD A,(HL+)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl + 1)
		return 8, nil
	case 0x32: // LD (HL-),A
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl - 1)
		return 8, nil
	case 0x3A: // LD A,(HL-)
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl - 1)
		return 8, nil
	case 0xE0: // LDH (a8),A
		c.write8(0xFF00+uint16(c.fetch8()), c.A)
		return 12, nil
	case 0xF0: // LDH A,(a8)
		c.A = c.read8(0xFF00 + uint16(c.fetch8()))
		return 12, nil
	case 0xE2: // LD (C),A
		c.write8(0xFF00+uint16(c.C), c.A)
		return 8, nil
	case 0xF2: // LD A,(C)
		c.A = c.read8(0xFF00 + uint16(c.C))
		return 8, nil
	case 0xEA: // LD (a16),A
		c.write8(c.fetch16(), c.A)
		return 16, nil
	case 0xFA: // LD A,(a16)
		c.A = c.read8(c.fetch16())
		return 16, nil

	// ALU immediate: same y encoding as the register block
	case 0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE:
		c.alu((op>>3)&7, c.fetch8())
		return 8, nil

	// accumulator rotates; Z is always cleared, unlike the CB forms
	case 0x07: // RLCA
		cy := c.A >> 7
		c.A = c.A<<1 | cy
		c.setZNHC(false, false, false, cy == 1)
		return 4, nil
	case 0x0F: // RRCA
		cy := c.A & 1
		c.A = c.A>>1 | cy<<7
		c.setZNHC(false, false, false, cy == 1)
		return 4, nil
	case 0x17: // RLA
		cy := c.A >> 7
		cin := byte(0)
		if c.F&flagC != 0 {
			cin = 1
		}
		c.A = c.A<<1 | cin
		c.setZNHC(false, false, false, cy == 1)
		return 4, nil
	case 0x1F: // RRA
		cy := c.A & 1
		cin := byte(0)
		if c.F&flagC != 0 {
			cin = 1
		}
		c.A = c.A>>1 | cin<<7
		c.setZNHC(false, false, false, cy == 1)
		return 4, nil

	case 0x27: // DAA
		c.daa()
		return 4, nil
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = c.F&(flagZ|flagC) | flagN | flagH
		return 4, nil
	case 0x37: // SCF
		c.F = c.F&flagZ | flagC
		return 4, nil
	case 0x3F: // CCF
		c.F = (c.F & (flagZ | flagC)) ^ flagC
		return 4, nil

	// 16-bit arithmetic
	case 0x03:
		c.setBC(c.getBC() + 1)
		return 8, nil
	case 0x13:
		c.setDE(c.getDE() + 1)
		return 8, nil
	case 0x23:
		c.setHL(c.getHL() + 1)
		return 8, nil
	case 0x33:
		c.SP++
		return 8, nil
	case 0x0B:
		c.setBC(c.getBC() - 1)
		return 8, nil
	case 0x1B:
		c.setDE(c.getDE() - 1)
		return 8, nil
	case 0x2B:
		c.setHL(c.getHL() - 1)
		return 8, nil
	case 0x3B:
		c.SP--
		return 8, nil
	case 0x09:
		c.addHL(c.getBC())
		return 8, nil
	case 0x19:
		c.addHL(c.getDE())
		return 8, nil
	case 0x29:
		c.addHL(c.getHL())
		return 8, nil
	case 0x39:
		c.addHL(c.SP)
		return 8, nil

	// jumps
	case 0xC3: // JP a16
		c.PC = c.fetch16()
		return 16, nil
	case 0xE9: // JP HL
		c.PC = c.getHL()
		return 4, nil
	case 0x18: // JR r8
		off := int8(c.fetch8())
		c.PC = uint16(int32(c.PC) + int32(off))
		return 12, nil
	case 0x20, 0x28, 0x30, 0x38: // JR cc,r8
		off := int8(c.fetch8())
		if c.cond((op >> 3) & 3) {
			c.PC = uint16(int32(c.PC) + int32(off))
			return 12, nil
		}
		return 8, nil
	case 0xC2, 0xCA, 0xD2, 0xDA: // JP cc,a16
		addr := c.fetch16()
		if c.cond((op >> 3) & 3) {
			c.PC = addr
			return 16, nil
		}
		return 12, nil

	// calls and returns
	case 0xCD: // CALL a16
		addr := c.fetch16()
		c.push16(c.PC)
		c.PC = addr
		return 24, nil
	case 0xC4, 0xCC, 0xD4, 0xDC: // CALL cc,a16
		addr := c.fetch16()
		if c.cond((op >> 3) & 3) {
			c.push16(c.PC)
			c.PC = addr
			return 24, nil
		}
		return 12, nil
	case 0xC9: // RET
		c.PC = c.pop16()
		return 16, nil
	case 0xD9: // RETI
		c.PC = c.pop16()
		c.IME = true
		return 16, nil
	case 0xC0, 0xC8, 0xD0, 0xD8: // RET cc
		if c.cond((op >> 3) & 3) {
			c.PC = c.pop16()
			return 20, nil
		}
		return 8, nil

	// stack
	case 0xC5:
		c.push16(c.getBC())
		return 16, nil
	case 0xD5:
		c.push16(c.getDE())
		return 16, nil
	case 0xE5:
		c.push16(c.getHL())
		return 16, nil
	case 0xF5:
		c.push16(c.getAF())
		return 16, nil
	case 0xC1:
		c.setBC(c.pop16())
		return 12, nil
	case 0xD1:
		c.setDE(c.pop16())
		return 12, nil
	case 0xE1:
		c.setHL(c.pop16())
		return 12, nil
	case 0xF1: // POP AF; the low flag nibble always reads zero
		c.setAF(c.pop16())
		return 12, nil

	// interrupt master enable
	case 0xF3: // DI
		c.IME = false
		c.eiPending = false
		return 4, nil
	case 0xFB: // EI
		c.eiPending = true
		return 4, nil

	case 0xCB:
		return c.executeCB(c.fetch8()), nil

	case 0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD:
		return 0, errors.Errorf("cpu: illegal opcode 0x%02X at 0x%04X", op, c.PC-1)
	}

	return 0, errors.Errorf("cpu: unhandled opcode 0x%02X at 0x%04X", op, c.PC-1)
}

// executeCB runs a CB-prefixed instruction: rotates, shifts, SWAP and
// the BIT/RES/SET groups.
func (c *CPU) executeCB(cb byte) int {
	idx := cb & 7
	y := (cb >> 3) & 7

	cycles := 8
	if idx == 6 {
		cycles = 16
		if cb>>6 == 1 { // BIT (HL) only reads
			cycles = 12
		}
	}

	switch cb >> 6 {
	case 0:
		v := c.reg8(idx)
		var cy byte
		switch y {
		case 0: // RLC
			cy = v >> 7
			v = v<<1 | cy
		case 1: // RRC
			cy = v & 1
			v = v>>1 | cy<<7
		case 2: // RL
			cy = v >> 7
			cin := byte(0)
			if c.F&flagC != 0 {
				cin = 1
			}
			v = v<<1 | cin
		case 3: // RR
			cy = v & 1
			cin := byte(0)
			if c.F&flagC != 0 {
				cin = 1
			}
			v = v>>1 | cin<<7
		case 4: // SLA
			cy = v >> 7
			v <<= 1
		case 5: // SRA
			cy = v & 1
			v = v>>1 | v&0x80
		case 6: // SWAP
			cy = 0
			v = v<<4 | v>>4
		case 7: // SRL
			cy = v & 1
			v >>= 1
		}
		c.setReg8(idx, v)
		c.setZNHC(v == 0, false, false, cy == 1)
	case 1: // BIT y,r
		z := c.reg8(idx)&(1<<y) == 0
		c.F = c.F&flagC | flagH
		if z {
			c.F |= flagZ
		}
	case 2: // RES y,r
		c.setReg8(idx, c.reg8(idx)&^(1<<y))
	case 3: // SET y,r
		c.setReg8(idx, c.reg8(idx)|1<<y)
	}
	return cycles
}
