package cart

import "testing"

func TestNew_PicksMapperFromHeader(t *testing.T) {
	cases := []struct {
		cartType byte
		want     string
	}{
		{0x00, "ROM only"},
		{0x01, "MBC1"},
		{0x11, "MBC3"},
		{0x19, "MBC5"},
	}
	for _, tc := range cases {
		rom := buildROM("PICK", tc.cartType, 0x01, 0x00, 64*1024)
		c, err := New(rom)
		if err != nil {
			t.Fatalf("type %02X: %v", tc.cartType, err)
		}
		if got := c.Header().CartTypeStr; got != tc.want {
			t.Fatalf("type %02X mapped to %q want %q", tc.cartType, got, tc.want)
		}
	}
}

func TestNew_UnsupportedMapper(t *testing.T) {
	rom := buildROM("HUC", 0xFE, 0x00, 0x00, 32*1024) // HuC3
	if _, err := New(rom); err == nil {
		t.Fatalf("expected error for unsupported mapper, got nil")
	}
}

func TestNew_TooSmall(t *testing.T) {
	if _, err := New(make([]byte, 0x100)); err == nil {
		t.Fatalf("expected error for headerless ROM, got nil")
	}
}

func TestROMOnly_IgnoresROMWrites(t *testing.T) {
	rom := buildROM("PLAIN", 0x00, 0x00, 0x00, 32*1024)
	rom[0x4000] = 0x5A
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Write(0x2000, 0x02) // no controller; must not disturb ROM reads
	if got := c.Read(0x4000); got != 0x5A {
		t.Fatalf("ROM read got %02X want 5A", got)
	}
	if got := c.Read(0xA000); got != 0xFF {
		t.Fatalf("absent RAM read got %02X want FF", got)
	}
}

func TestHeader_HasBattery(t *testing.T) {
	withBat := buildROM("BAT", 0x03, 0x01, 0x02, 64*1024)
	c, err := New(withBat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.Header().HasBattery() {
		t.Fatalf("MBC1+RAM+BATTERY not detected as battery backed")
	}
	if _, ok := c.(BatteryBacked); !ok {
		t.Fatalf("MBC1 does not implement BatteryBacked")
	}

	noBat := buildROM("NOBAT", 0x01, 0x01, 0x00, 64*1024)
	c, err = New(noBat)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Header().HasBattery() {
		t.Fatalf("plain MBC1 reported as battery backed")
	}
}
