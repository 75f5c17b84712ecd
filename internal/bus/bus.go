// Package bus implements the 16-bit address space: region routing to the
// cartridge, VRAM/OAM, work RAM, the I/O register block and high RAM,
// plus the boot ROM overlay and OAM DMA. Every address reads and writes
// without error; unmapped reads return 0xFF and unmapped writes are
// dropped.
package bus

import (
	"io"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/irq"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/serial"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/timer"
)

// dmaCycles is the length of an OAM DMA transfer: one byte per cycle.
const dmaCycles = 0xA0

// Bus owns all register storage and hands the devices narrow slices of
// the address space; the CPU sees only Read/Write, the driver only Tick.
type Bus struct {
	cart cart.Cartridge

	wram [0x2000]byte // 0xC000-0xDFFF, echoed at 0xE000-0xFDFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	irq    *irq.Controller
	ppu    *ppu.PPU
	timer  *timer.Timer
	joypad *joypad.Joypad
	serial *serial.Port

	boot        []byte
	bootEnabled bool

	// OAM DMA state. While active, CPU access to OAM is blocked.
	dmaReg    byte
	dmaActive bool
	dmaSrc    uint16
	dmaIdx    int
}

// New wires a bus around the given cartridge with fresh devices.
func New(c cart.Cartridge) *Bus {
	ic := irq.New()
	return &Bus{
		cart:   c,
		irq:    ic,
		ppu:    ppu.New(ic),
		timer:  timer.New(ic),
		joypad: joypad.New(ic),
		serial: serial.New(ic),
	}
}

// IRQ exposes the interrupt controller; the CPU is its only consumer
// beyond the request bits the devices set.
func (b *Bus) IRQ() *irq.Controller { return b.irq }

// PPU exposes the pixel unit for frame readout.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart returns the cartridge, e.g. for battery RAM persistence.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// SetSerialWriter attaches a sink for serial transfers.
func (b *Bus) SetSerialWriter(w io.Writer) { b.serial.SetWriter(w) }

// SetJoypadState replaces the pressed-button mask (joypad.* bits).
func (b *Bus) SetJoypadState(mask byte) { b.joypad.SetState(mask) }

// SetBootROM installs a 256-byte boot ROM overlaying 0x0000-0x00FF until
// the program writes FF50.
func (b *Bus) SetBootROM(data []byte) {
	if len(data) >= 0x100 {
		b.boot = data[:0x100]
		b.bootEnabled = true
	} else {
		b.boot = nil
		b.bootEnabled = false
	}
}

// BootEnabled reports whether the boot overlay is still mapped.
func (b *Bus) BootEnabled() bool { return b.bootEnabled }

// Read resolves a CPU read anywhere in the 16-bit space.
func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x0100 && b.bootEnabled:
		return b.boot[addr]
	case addr < 0x8000:
		return b.cart.Read(addr)
	case addr < 0xA000:
		return b.ppu.Read(addr)
	case addr < 0xC000:
		return b.cart.Read(addr)
	case addr < 0xE000:
		return b.wram[addr-0xC000]
	case addr < 0xFE00: // echo RAM
		return b.wram[addr-0xE000]
	case addr < 0xFEA0:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.Read(addr)
	case addr < 0xFF00: // unusable
		return 0xFF
	case addr == 0xFFFF:
		return b.irq.ReadIE()
	case addr >= 0xFF80:
		return b.hram[addr-0xFF80]
	default:
		return b.readIO(addr)
	}
}

// Write resolves a CPU write anywhere in the 16-bit space. Writes into
// the ROM region become bank-controller commands; they never touch ROM
// bytes.
func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr < 0xA000:
		b.ppu.Write(addr, value)
	case addr < 0xC000:
		b.cart.Write(addr, value)
	case addr < 0xE000:
		b.wram[addr-0xC000] = value
	case addr < 0xFE00:
		b.wram[addr-0xE000] = value
	case addr < 0xFEA0:
		if b.dmaActive {
			return
		}
		b.ppu.Write(addr, value)
	case addr < 0xFF00:
		// unusable region: dropped
	case addr == 0xFFFF:
		b.irq.WriteIE(value)
	case addr >= 0xFF80:
		b.hram[addr-0xFF80] = value
	default:
		b.writeIO(addr, value)
	}
}

func (b *Bus) readIO(addr uint16) byte {
	switch {
	case addr == joypad.Addr:
		return b.joypad.Read()
	case addr == serial.AddrSB || addr == serial.AddrSC:
		return b.serial.Read(addr)
	case addr >= timer.AddrDIV && addr <= timer.AddrTAC:
		return b.timer.Read(addr)
	case addr == 0xFF0F:
		return b.irq.ReadIF()
	case addr == 0xFF46:
		return b.dmaReg
	case addr >= 0xFF40 && addr <= 0xFF4B:
		return b.ppu.Read(addr)
	default:
		return 0xFF
	}
}

func (b *Bus) writeIO(addr uint16, value byte) {
	switch {
	case addr == joypad.Addr:
		b.joypad.Write(value)
	case addr == serial.AddrSB || addr == serial.AddrSC:
		b.serial.Write(addr, value)
	case addr >= timer.AddrDIV && addr <= timer.AddrTAC:
		b.timer.Write(addr, value)
	case addr == 0xFF0F:
		b.irq.WriteIF(value)
	case addr == 0xFF46:
		b.dmaReg = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIdx = 0
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.ppu.Write(addr, value)
	case addr == 0xFF50:
		if value&0x01 != 0 {
			b.bootEnabled = false
		}
	}
}

// dmaRead fetches a source byte for OAM DMA, bypassing the CPU-side OAM
// block (DMA itself is the reason OAM is blocked).
func (b *Bus) dmaRead(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return b.cart.Read(addr)
	case addr < 0xA000:
		return b.ppu.RawVRAM(addr)
	case addr < 0xC000:
		return b.cart.Read(addr)
	case addr < 0xE000:
		return b.wram[addr-0xC000]
	case addr < 0xFE00:
		return b.wram[addr-0xE000]
	default:
		return 0xFF
	}
}

// Tick advances the devices by the given number of CPU cycles: timer
// first, then PPU, then the in-flight DMA transfer.
func (b *Bus) Tick(cycles int) {
	b.timer.Tick(cycles)
	b.ppu.Tick(cycles)
	if b.dmaActive {
		for i := 0; i < cycles && b.dmaActive; i++ {
			v := b.dmaRead(b.dmaSrc + uint16(b.dmaIdx))
			b.ppu.WriteOAMRaw(0xFE00+uint16(b.dmaIdx), v)
			b.dmaIdx++
			if b.dmaIdx >= dmaCycles {
				b.dmaActive = false
			}
		}
	}
}
