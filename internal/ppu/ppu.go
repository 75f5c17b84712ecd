// Package ppu implements the pixel-processing unit: the per-scanline mode
// state machine, the LCD register block, and the scanline renderer that
// fills a 160x144 shade raster once per frame.
package ppu

import "github.com/FabianRolfMatthiasNoll/gbcore/internal/irq"

// Screen dimensions and timing constants.
const (
	ScreenW = 160
	ScreenH = 144

	dotsOAMScan   = 80  // mode 2
	dotsTransfer  = 172 // mode 3; fixed budget, see below
	dotsPerLine   = 456
	linesPerFrame = 154

	// DotsPerFrame is one full frame worth of cycles.
	DotsPerFrame = dotsPerLine * linesPerFrame
)

// Mode 3 on hardware stretches with sprite and window overlap; a fixed
// 172-dot budget is a simplification, so mid-line effects that depend on
// the exact mode 3 length are approximate.

// PPU modes as exposed in STAT bits 0-1.
const (
	ModeHBlank   byte = 0
	ModeVBlank   byte = 1
	ModeOAM      byte = 2
	ModeTransfer byte = 3
)

// PPU owns VRAM, OAM and the LCD register block. Tick advances it in
// lockstep with elapsed CPU cycles; interrupt requests go through the
// shared controller.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence bit 2, enables bits 3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within the current line

	// Internal window line counter; advances only on lines the window
	// actually rendered.
	winLine byte

	// statLine is the OR of all enabled STAT conditions. A request fires
	// only on its rising edge, so a condition that stays true does not
	// re-fire.
	statLine bool

	// frame holds post-palette shades (0 white .. 3 black), one byte per
	// pixel, completed line by line at each HBlank entry.
	frame  [ScreenW * ScreenH]byte
	frames uint64

	irq *irq.Controller
}

func New(ic *irq.Controller) *PPU { return &PPU{irq: ic} }

// Read returns bytes for VRAM, OAM and the PPU register block. VRAM is
// inaccessible to the CPU during mode 3, OAM during modes 2 and 3.
func (p *PPU) Read(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.enabled() && p.mode() == ModeTransfer {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); p.enabled() && (m == ModeOAM || m == ModeTransfer) {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		// Bit 7 reads as 1 on DMG.
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// Write handles VRAM, OAM and PPU register writes. The mode and
// coincidence bits of STAT are read-only; an LY write restarts the frame.
func (p *PPU) Write(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.enabled() && p.mode() == ModeTransfer {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); p.enabled() && (m == ModeOAM || m == ModeTransfer) {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if prev&0x80 != 0 && value&0x80 == 0 {
			// LCD off: LY and mode reset, no interrupts.
			p.ly = 0
			p.dot = 0
			p.setModeBits(ModeHBlank)
			p.updateCoincidence()
			p.refreshSTATLine()
		} else if prev&0x80 == 0 && value&0x80 != 0 {
			p.ly = 0
			p.dot = 0
			p.winLine = 0
			p.setModeBits(ModeOAM)
			p.updateCoincidence()
			p.refreshSTATLine()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
		p.refreshSTATLine()
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.winLine = 0
		p.updateCoincidence()
		if p.enabled() {
			p.setModeBits(ModeOAM)
		}
		p.refreshSTATLine()
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF45:
		p.lyc = value
		p.updateCoincidence()
		p.refreshSTATLine()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

func (p *PPU) enabled() bool { return p.lcdc&0x80 != 0 }
func (p *PPU) mode() byte    { return p.stat & 0x03 }

// Tick advances the PPU by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if !p.enabled() {
			continue
		}
		p.dot++

		var mode byte
		if p.ly >= ScreenH {
			mode = ModeVBlank
		} else {
			switch {
			case p.dot < dotsOAMScan:
				mode = ModeOAM
			case p.dot < dotsOAMScan+dotsTransfer:
				mode = ModeTransfer
			default:
				mode = ModeHBlank
			}
		}
		p.applyMode(mode)

		if p.dot >= dotsPerLine {
			p.dot = 0
			p.ly++
			if p.ly == ScreenH {
				if p.irq != nil {
					p.irq.Request(irq.VBlank)
				}
				p.frames++
			} else if p.ly >= linesPerFrame {
				p.ly = 0
				p.winLine = 0
			}
			p.updateCoincidence()
			if p.ly >= ScreenH {
				p.applyMode(ModeVBlank)
			} else {
				p.applyMode(ModeOAM)
			}
			p.refreshSTATLine()
		}
	}
}

// applyMode commits a mode transition, rendering the scanline on entry to
// HBlank and re-evaluating the STAT interrupt line.
func (p *PPU) applyMode(mode byte) {
	if p.mode() == mode {
		return
	}
	p.setModeBits(mode)
	if mode == ModeHBlank && p.ly < ScreenH {
		p.renderScanline(int(p.ly))
	}
	p.refreshSTATLine()
}

func (p *PPU) setModeBits(mode byte) { p.stat = (p.stat &^ 0x03) | (mode & 0x03) }

func (p *PPU) updateCoincidence() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
}

// refreshSTATLine recomputes the shared STAT interrupt line and requests
// the interrupt on a rising edge only.
func (p *PPU) refreshSTATLine() {
	line := false
	if p.enabled() {
		m := p.mode()
		line = (p.stat&(1<<3) != 0 && m == ModeHBlank) ||
			(p.stat&(1<<4) != 0 && m == ModeVBlank) ||
			(p.stat&(1<<5) != 0 && m == ModeOAM) ||
			(p.stat&(1<<6) != 0 && p.stat&(1<<2) != 0)
	}
	if line && !p.statLine && p.irq != nil {
		p.irq.Request(irq.Stat)
	}
	p.statLine = line
}

// LY returns the current scanline index.
func (p *PPU) LY() byte { return p.ly }

// Mode returns the current mode bits.
func (p *PPU) Mode() byte { return p.mode() }

// Frames returns the number of completed frames since power-on.
func (p *PPU) Frames() uint64 { return p.frames }

// ShadeFrame returns a copy of the completed raster with BGP/OBP already
// applied: one shade byte per pixel, 0 lightest .. 3 darkest. The caller
// owns the returned slice.
func (p *PPU) ShadeFrame() []byte {
	out := make([]byte, len(p.frame))
	copy(out, p.frame[:])
	return out
}

// RawVRAM bypasses access restrictions; renderer and test use only.
func (p *PPU) RawVRAM(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

// RawOAM bypasses access restrictions; DMA and renderer use only.
func (p *PPU) RawOAM(addr uint16) byte {
	if addr >= 0xFE00 && addr <= 0xFE9F {
		return p.oam[addr-0xFE00]
	}
	return 0xFF
}

// WriteOAMRaw stores a byte into OAM regardless of mode; used by OAM DMA,
// which is not subject to CPU access blocking.
func (p *PPU) WriteOAMRaw(addr uint16, v byte) {
	if addr >= 0xFE00 && addr <= 0xFE9F {
		p.oam[addr-0xFE00] = v
	}
}
