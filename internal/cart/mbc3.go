package cart

// mbc3 implements MBC3 ROM/RAM banking. The real-time clock is not
// emulated: selecting an RTC register makes the RAM window read 0xFF,
// and latch writes are ignored.
type mbc3 struct {
	rom []byte
	ram []byte
	hdr *Header

	romBank    byte // 7 bits, 0 remapped to 1
	ramBank    byte // 0-3 RAM, 0x08-0x0C would be RTC
	ramEnabled bool
}

func newMBC3(rom []byte, h *Header) *mbc3 {
	m := &mbc3{rom: rom, hdr: h, romBank: 1}
	if h.RAMSizeBytes > 0 {
		m.ram = make([]byte, h.RAMSizeBytes)
	}
	return m
}

func (m *mbc3) Header() *Header { return m.hdr }

func (m *mbc3) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		off := int(m.romBank)*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr < 0xC000:
		if !m.ramEnabled || m.ramBank > 0x03 || len(m.ram) == 0 {
			return 0xFF
		}
		off := int(m.ramBank)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		m.romBank = value & 0x7F
		if m.romBank == 0 {
			m.romBank = 1
		}
	case addr < 0x6000:
		m.ramBank = value
	case addr < 0x8000:
		// RTC latch; nothing to latch here.
	case addr >= 0xA000 && addr < 0xC000:
		if !m.ramEnabled || m.ramBank > 0x03 || len(m.ram) == 0 {
			return
		}
		off := int(m.ramBank)*0x2000 + int(addr-0xA000)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mbc3) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	return append([]byte(nil), m.ram...)
}

func (m *mbc3) LoadRAM(data []byte) {
	copy(m.ram, data)
}
