// Package cart models the cartridge: header parsing and the memory bank
// controllers that map ROM and external RAM into the CPU address space.
package cart

import "github.com/pkg/errors"

// Cartridge is what the bus sees. Read covers ROM (0x0000-0x7FFF) and
// external RAM (0xA000-0xBFFF); Write covers the bank controller command
// registers in the ROM range and external RAM stores.
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
	Header() *Header
}

// BatteryBacked is implemented by cartridges whose external RAM should
// be persisted across runs. SaveRAM returns a copy of the RAM contents.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// New parses the ROM header and picks the matching bank controller.
// Unsupported mapper types are an error, not a silent fallback.
func New(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, errors.Wrap(err, "cart: invalid ROM")
	}
	switch h.CartType {
	case 0x00, 0x08, 0x09:
		return newROMOnly(rom, h), nil
	case 0x01, 0x02, 0x03:
		return newMBC1(rom, h), nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		// MBC3 with or without RTC; the RTC registers read back 0xFF.
		return newMBC3(rom, h), nil
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return newMBC5(rom, h), nil
	default:
		return nil, errors.Errorf("cart: unsupported mapper type 0x%02X (%s)", h.CartType, h.CartTypeStr)
	}
}

// HasBattery reports whether the header declares battery-backed RAM.
func (h *Header) HasBattery() bool {
	switch h.CartType {
	case 0x03, 0x06, 0x09, 0x0D, 0x0F, 0x10, 0x13, 0x1B, 0x1E:
		return true
	}
	return false
}
