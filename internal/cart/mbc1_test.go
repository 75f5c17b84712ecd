package cart

import "testing"

func newTestMBC1(t *testing.T, romSizeCode, ramSizeCode byte, size int) *mbc1 {
	t.Helper()
	rom := buildROM("MBC1", 0x03, romSizeCode, ramSizeCode, size)
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c.(*mbc1)
}

func TestMBC1_ROMBanking(t *testing.T) {
	m := newTestMBC1(t, 0x02, 0x00, 128*1024)
	for bank := 0; bank < 8; bank++ {
		m.rom[bank*0x4000] = byte(bank)
	}

	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default switchable bank read got %02X want 01", got)
	}

	m.Write(0x2000, 0x03)
	if got := m.Read(0x4000); got != 0x03 {
		t.Fatalf("bank3 read got %02X want 03", got)
	}

	// Writing 0 selects bank 1.
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank 0 write not remapped to 1: got %02X", got)
	}
}

func TestMBC1_HighBitsExtendROMBank(t *testing.T) {
	m := newTestMBC1(t, 0x05, 0x00, 1024*1024) // 64 banks
	m.rom[0x21*0x4000] = 0xAB

	m.Write(0x2000, 0x01) // low 5 bits
	m.Write(0x4000, 0x01) // high 2 bits -> bank 0x21
	if got := m.Read(0x4000); got != 0xAB {
		t.Fatalf("bank 0x21 read got %02X want AB", got)
	}
}

func TestMBC1_Mode1RemapsFixedRegion(t *testing.T) {
	m := newTestMBC1(t, 0x05, 0x00, 1024*1024)
	m.rom[0x20*0x4000] = 0xCD

	m.Write(0x4000, 0x01) // high bits = 1
	if got := m.Read(0x0000); got == 0xCD {
		t.Fatalf("fixed region remapped while still in mode 0")
	}
	m.Write(0x6000, 0x01) // mode 1: high bits apply to 0x0000-0x3FFF too
	if got := m.Read(0x0000); got != 0xCD {
		t.Fatalf("mode 1 fixed region got %02X want CD (bank 0x20)", got)
	}
}

func TestMBC1_RAMBanking_Mode1(t *testing.T) {
	m := newTestMBC1(t, 0x02, 0x03, 128*1024) // 32 KiB RAM

	// RAM disabled: reads are 0xFF, writes dropped.
	m.Write(0xA000, 0x55)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}

	m.Write(0x0000, 0x0A) // enable
	m.Write(0x6000, 0x01) // mode 1
	m.Write(0x4000, 0x02) // RAM bank 2

	m.Write(0xA000, 0x77)
	if got := m.Read(0xA000); got != 0x77 {
		t.Fatalf("RAM bank 2 round trip got %02X", got)
	}

	// A different bank sees different storage.
	m.Write(0x4000, 0x00)
	if got := m.Read(0xA000); got == 0x77 {
		t.Fatalf("RAM bank 0 aliases bank 2")
	}
}

func TestMBC1_BatteryRAMPersistence(t *testing.T) {
	m := newTestMBC1(t, 0x01, 0x02, 64*1024)
	m.Write(0x0000, 0x0A)
	m.Write(0xA123, 0x42)

	data := m.SaveRAM()
	if len(data) != 8*1024 {
		t.Fatalf("SaveRAM length got %d want 8192", len(data))
	}

	n := newTestMBC1(t, 0x01, 0x02, 64*1024)
	n.LoadRAM(data)
	n.Write(0x0000, 0x0A)
	if got := n.Read(0xA123); got != 0x42 {
		t.Fatalf("restored RAM got %02X want 42", got)
	}
}
