package cart

// romOnly maps a plain 32 KiB ROM with no banking. Variants 0x08/0x09
// carry a small unbanked RAM.
type romOnly struct {
	rom []byte
	ram []byte
	hdr *Header
}

func newROMOnly(rom []byte, h *Header) *romOnly {
	c := &romOnly{rom: rom, hdr: h}
	if h.RAMSizeBytes > 0 {
		c.ram = make([]byte, h.RAMSizeBytes)
	}
	return c
}

func (c *romOnly) Header() *Header { return c.hdr }

func (c *romOnly) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if int(addr) < len(c.rom) {
			return c.rom[addr]
		}
		return 0xFF
	case addr >= 0xA000 && addr < 0xC000:
		off := int(addr - 0xA000)
		if off < len(c.ram) {
			return c.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (c *romOnly) Write(addr uint16, value byte) {
	if addr >= 0xA000 && addr < 0xC000 {
		off := int(addr - 0xA000)
		if off < len(c.ram) {
			c.ram[off] = value
		}
	}
	// ROM range writes have no controller to talk to.
}

func (c *romOnly) SaveRAM() []byte {
	if len(c.ram) == 0 {
		return nil
	}
	return append([]byte(nil), c.ram...)
}

func (c *romOnly) LoadRAM(data []byte) {
	copy(c.ram, data)
}
