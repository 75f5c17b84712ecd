package cart

// mbc1 implements MBC1 banking: up to 2 MiB ROM and 32 KiB RAM. The
// secondary 2-bit register doubles as RAM bank select or ROM bank high
// bits depending on the mode flag.
type mbc1 struct {
	rom []byte
	ram []byte
	hdr *Header

	bankLow5   byte // writes of 0 are remapped to 1
	bankHigh2  byte // RAM bank in mode 1, ROM bank bits 5-6 otherwise
	mode       byte // 0: ROM banking, 1: RAM banking
	ramEnabled bool
}

func newMBC1(rom []byte, h *Header) *mbc1 {
	m := &mbc1{rom: rom, hdr: h, bankLow5: 1}
	if h.RAMSizeBytes > 0 {
		m.ram = make([]byte, h.RAMSizeBytes)
	}
	return m
}

func (m *mbc1) Header() *Header { return m.hdr }

func (m *mbc1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		// In mode 1 the high bits also shift the fixed region, which is
		// how large carts reach banks 0x20/0x40/0x60.
		bank := 0
		if m.mode == 1 {
			bank = int(m.bankHigh2) << 5
		}
		return m.readROM(bank*0x4000 + int(addr))
	case addr < 0x8000:
		bank := int(m.bankLow5) | int(m.bankHigh2)<<5
		return m.readROM(bank*0x4000 + int(addr-0x4000))
	case addr >= 0xA000 && addr < 0xC000:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		off := m.ramOffset(addr)
		if off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		m.bankLow5 = value & 0x1F
		if m.bankLow5 == 0 {
			m.bankLow5 = 1
		}
	case addr < 0x6000:
		m.bankHigh2 = value & 0x03
	case addr < 0x8000:
		m.mode = value & 0x01
	case addr >= 0xA000 && addr < 0xC000:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		off := m.ramOffset(addr)
		if off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *mbc1) readROM(off int) byte {
	if off < len(m.rom) {
		return m.rom[off]
	}
	return 0xFF
}

func (m *mbc1) ramOffset(addr uint16) int {
	bank := 0
	if m.mode == 1 {
		bank = int(m.bankHigh2)
	}
	return bank*0x2000 + int(addr-0xA000)
}

func (m *mbc1) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	return append([]byte(nil), m.ram...)
}

func (m *mbc1) LoadRAM(data []byte) {
	copy(m.ram, data)
}
