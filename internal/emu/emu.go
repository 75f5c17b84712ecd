// Package emu assembles the cartridge, bus and CPU into a runnable
// machine and exposes frame-granular execution to front ends.
package emu

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/bus"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/gbcore/internal/ppu"
)

// CyclesPerFrame is one LCD refresh at 4.19 MHz: 154 lines of 456 dots.
const CyclesPerFrame = ppu.DotsPerFrame

const clockHz = 4194304

// frameDuration is the wall-clock length of one frame, about 16.74 ms.
const frameDuration = time.Second * CyclesPerFrame / clockHz

// Buttons is the front-end facing input state.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

// Machine owns one emulated system.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romPath string
	bootROM []byte

	fb        []byte // RGBA scratch buffer, 160x144x4
	lastFrame time.Time
}

func New(cfg Config) *Machine {
	return &Machine{
		cfg: cfg,
		fb:  make([]byte, ppu.ScreenW*ppu.ScreenH*4),
	}
}

// LoadCartridge wires a new bus and CPU around the ROM image. With a
// 256-byte boot ROM execution starts at 0x0000 under the overlay;
// without one the CPU and IO registers get their post-boot values and
// execution starts at 0x0100.
func (m *Machine) LoadCartridge(rom, boot []byte) error {
	c, err := cart.New(rom)
	if err != nil {
		return err
	}

	b := bus.New(c)
	cp := cpu.New(b)

	if len(boot) >= 0x100 {
		b.SetBootROM(boot)
		m.bootROM = append([]byte(nil), boot[:0x100]...)
	} else {
		m.bootROM = nil
		cp.ResetNoBoot()
		applyPostBootIO(b)
	}

	m.bus = b
	m.cpu = cp
	return nil
}

// LoadROMFromFile loads a cartridge image from disk, keeping the
// configured boot ROM.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "emu: read ROM")
	}
	if err := m.LoadCartridge(data, m.bootROM); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path of the currently loaded ROM file, if any.
func (m *Machine) ROMPath() string { return m.romPath }

// SetBootROM stores a DMG boot ROM for subsequent loads and resets.
func (m *Machine) SetBootROM(data []byte) {
	if len(data) >= 0x100 {
		m.bootROM = append([]byte(nil), data[:0x100]...)
	} else {
		m.bootROM = nil
	}
}

// HasBootROM reports whether a boot ROM is configured.
func (m *Machine) HasBootROM() bool { return len(m.bootROM) >= 0x100 }

// Reset restarts the loaded cartridge: through the boot ROM when one is
// configured, otherwise straight into post-boot state.
func (m *Machine) Reset() {
	if m.cpu == nil || m.bus == nil {
		return
	}
	if len(m.bootROM) >= 0x100 {
		m.bus.SetBootROM(m.bootROM)
		m.cpu.SP = 0xFFFE
		m.cpu.PC = 0x0000
		m.cpu.IME = false
		return
	}
	m.cpu.ResetNoBoot()
	applyPostBootIO(m.bus)
}

// applyPostBootIO writes the IO register values the DMG boot ROM leaves
// behind, so cartridges starting at 0x0100 see a running LCD.
func applyPostBootIO(b *bus.Bus) {
	b.Write(0xFF00, 0xCF) // JOYP: no group selected
	b.Write(0xFF05, 0x00) // TIMA
	b.Write(0xFF06, 0x00) // TMA
	b.Write(0xFF07, 0x00) // TAC
	b.Write(0xFF40, 0x91) // LCDC: LCD+BG on, tile data 8000
	b.Write(0xFF42, 0x00) // SCY
	b.Write(0xFF43, 0x00) // SCX
	b.Write(0xFF45, 0x00) // LYC
	b.Write(0xFF47, 0xFC) // BGP
	b.Write(0xFF48, 0xFF) // OBP0
	b.Write(0xFF49, 0xFF) // OBP1
	b.Write(0xFF4A, 0x00) // WY
	b.Write(0xFF4B, 0x00) // WX
	b.Write(0xFFFF, 0x00) // IE
}

// Step runs a single CPU instruction and advances the devices by its
// cycle count. It returns the cycles consumed.
func (m *Machine) Step() (int, error) {
	cycles, err := m.cpu.Step()
	if err != nil {
		return 0, err
	}
	m.bus.Tick(cycles)
	return cycles, nil
}

// StepFrame executes one frame worth of machine cycles. With LimitFPS
// set it also paces frames to the hardware refresh rate.
func (m *Machine) StepFrame() error {
	if m.cpu == nil {
		return errors.New("emu: no cartridge loaded")
	}
	for acc := 0; acc < CyclesPerFrame; {
		cycles, err := m.Step()
		if err != nil {
			return err
		}
		acc += cycles
	}
	if m.cfg.LimitFPS {
		if !m.lastFrame.IsZero() {
			if d := frameDuration - time.Since(m.lastFrame); d > 0 {
				time.Sleep(d)
			}
		}
		m.lastFrame = time.Now()
	}
	return nil
}

// RunCycles executes at least n machine cycles and returns the exact
// amount consumed.
func (m *Machine) RunCycles(n int) (int, error) {
	acc := 0
	for acc < n {
		cycles, err := m.Step()
		if err != nil {
			return acc, err
		}
		acc += cycles
	}
	return acc, nil
}

// dmgShades maps post-palette shade indices to RGB gray levels.
var dmgShades = [4]byte{0xFF, 0xC0, 0x60, 0x00}

// Framebuffer converts the PPU's shade raster to RGBA, 160x144.
func (m *Machine) Framebuffer() []byte {
	frame := m.bus.PPU().ShadeFrame()
	for i, shade := range frame {
		g := dmgShades[shade&0x03]
		m.fb[i*4+0] = g
		m.fb[i*4+1] = g
		m.fb[i*4+2] = g
		m.fb[i*4+3] = 0xFF
	}
	return m.fb
}

// Frames returns the number of completed frames since power-on.
func (m *Machine) Frames() uint64 { return m.bus.PPU().Frames() }

// Bus exposes the bus for tools and tests.
func (m *Machine) Bus() *bus.Bus { return m.bus }

// CPU exposes the processor for tools and tests.
func (m *Machine) CPU() *cpu.CPU { return m.cpu }

// SetSerialWriter routes serial port output, e.g. to capture test ROM
// reports.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetButtons converts front-end input state into the joypad mask.
func (m *Machine) SetButtons(b Buttons) {
	if m.bus == nil {
		return
	}
	var mask byte
	if b.Right {
		mask |= joypad.Right
	}
	if b.Left {
		mask |= joypad.Left
	}
	if b.Up {
		mask |= joypad.Up
	}
	if b.Down {
		mask |= joypad.Down
	}
	if b.A {
		mask |= joypad.A
	}
	if b.B {
		mask |= joypad.B
	}
	if b.Select {
		mask |= joypad.SelectBtn
	}
	if b.Start {
		mask |= joypad.Start
	}
	m.bus.SetJoypadState(mask)
}

// SaveBattery returns the cartridge RAM when the cartridge is battery
// backed and has content to persist.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.bus == nil {
		return nil, false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	data := bb.SaveRAM()
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// LoadBattery restores previously saved cartridge RAM.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil || len(data) == 0 {
		return false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}
