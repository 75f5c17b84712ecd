package ppu

import "testing"

// mapVRAM is a sparse VRAM fixture for the scanline helpers.
type mapVRAM map[uint16]byte

func (m mapVRAM) Read(addr uint16) byte { return m[addr] }

// solidTile writes a tile whose every pixel has color index ci.
func solidTile(m mapVRAM, base uint16, ci byte) {
	var lo, hi byte
	if ci&1 != 0 {
		lo = 0xFF
	}
	if ci&2 != 0 {
		hi = 0xFF
	}
	for row := uint16(0); row < 8; row++ {
		m[base+row*2] = lo
		m[base+row*2+1] = hi
	}
}

func TestRenderBGScanline_FirstTile(t *testing.T) {
	m := mapVRAM{}
	solidTile(m, 0x8010, 1) // tile 1
	m[0x9800] = 1           // first map entry

	out := RenderBGScanline(m, 0x9800, true, 0, 0, 0)
	for x := 0; x < 8; x++ {
		if out[x] != 1 {
			t.Fatalf("pixel %d got %d want 1", x, out[x])
		}
	}
	for x := 8; x < ScreenW; x++ {
		if out[x] != 0 {
			t.Fatalf("pixel %d got %d want 0", x, out[x])
		}
	}
}

func TestRenderBGScanline_SCXFineScroll(t *testing.T) {
	m := mapVRAM{}
	solidTile(m, 0x8010, 1)
	m[0x9800] = 1

	out := RenderBGScanline(m, 0x9800, true, 3, 0, 0)
	// First 5 pixels remain from tile 0 column 3..7, i.e. tile 1 pixels.
	for x := 0; x < 5; x++ {
		if out[x] != 1 {
			t.Fatalf("pixel %d got %d want 1 (scrolled tile)", x, out[x])
		}
	}
	if out[5] != 0 {
		t.Fatalf("pixel 5 got %d want 0", out[5])
	}
}

func TestRenderBGScanline_SCYSelectsTileRow(t *testing.T) {
	m := mapVRAM{}
	// Tile 2: only row 1 is solid color 2.
	m[0x8020+2] = 0x00
	m[0x8020+3] = 0xFF
	m[0x9800] = 2

	out := RenderBGScanline(m, 0x9800, true, 0, 1, 0) // scy=1, ly=0 -> row 1
	if out[0] != 2 {
		t.Fatalf("pixel 0 got %d want 2", out[0])
	}
}

func TestRenderBGScanline_SignedAddressing(t *testing.T) {
	m := mapVRAM{}
	// Tile index 0xFF with signed addressing lives at 0x9000 - 16 = 0x8FF0.
	solidTile(m, 0x8FF0, 3)
	m[0x9800] = 0xFF

	out := RenderBGScanline(m, 0x9800, false, 0, 0, 0)
	if out[0] != 3 {
		t.Fatalf("signed-addressing pixel got %d want 3", out[0])
	}
}

func TestRenderBGScanline_HorizontalMapWrap(t *testing.T) {
	m := mapVRAM{}
	solidTile(m, 0x8010, 1)
	m[0x9800] = 1 // leftmost tile of the map row

	// scx=248: rendering starts at map column 31 and wraps to column 0.
	out := RenderBGScanline(m, 0x9800, true, 248, 0, 0)
	for x := 0; x < 8; x++ {
		if out[x] != 0 {
			t.Fatalf("pre-wrap pixel %d got %d want 0", x, out[x])
		}
	}
	for x := 8; x < 16; x++ {
		if out[x] != 1 {
			t.Fatalf("wrapped pixel %d got %d want 1", x, out[x])
		}
	}
}

func TestRenderWindowScanline(t *testing.T) {
	m := mapVRAM{}
	solidTile(m, 0x8010, 1)
	m[0x9C00] = 1

	out := RenderWindowScanline(m, 0x9C00, true, 0)
	for x := 0; x < 8; x++ {
		if out[x] != 1 {
			t.Fatalf("window pixel %d got %d want 1", x, out[x])
		}
	}
	if out[8] != 0 {
		t.Fatalf("window pixel 8 got %d want 0", out[8])
	}
}

func TestComposeSpriteLine_PriorityAndTransparency(t *testing.T) {
	m := mapVRAM{}
	solidTile(m, 0x8010, 1) // tile 1: color 1
	solidTile(m, 0x8020, 3) // tile 2: color 3

	var bg [ScreenW]byte
	sprites := []Sprite{
		{X: 0, Y: 0, Tile: 2, Attr: 0, OAMIndex: 3},
		{X: 4, Y: 0, Tile: 1, Attr: 0, OAMIndex: 1},
	}
	line, _ := ComposeSpriteLine(m, sprites, 0, bg, false)
	// Sprites are scanned in list (OAM) order: the first entry wins overlap.
	for x := 0; x < 8; x++ {
		if line[x] != 3 {
			t.Fatalf("pixel %d got %d want 3 (first in OAM order wins)", x, line[x])
		}
	}
	for x := 8; x < 12; x++ {
		if line[x] != 1 {
			t.Fatalf("pixel %d got %d want 1", x, line[x])
		}
	}
}

func TestComposeSpriteLine_LowestOAMIndexFirstInList(t *testing.T) {
	m := mapVRAM{}
	solidTile(m, 0x8010, 1)
	solidTile(m, 0x8020, 3)

	var bg [ScreenW]byte
	// collectSprites produces OAM order; overlapping entries resolve to
	// the earlier (lower-index) one.
	sprites := []Sprite{
		{X: 0, Y: 0, Tile: 1, Attr: 0, OAMIndex: 0},
		{X: 0, Y: 0, Tile: 2, Attr: 0, OAMIndex: 5},
	}
	line, _ := ComposeSpriteLine(m, sprites, 0, bg, false)
	if line[0] != 1 {
		t.Fatalf("overlap got %d want 1 (lowest OAM index)", line[0])
	}
}

func TestComposeSpriteLine_BehindBackground(t *testing.T) {
	m := mapVRAM{}
	solidTile(m, 0x8020, 3)

	var bg [ScreenW]byte
	bg[0] = 1 // non-zero BG hides behind-background sprites
	sprites := []Sprite{{X: 0, Y: 0, Tile: 2, Attr: 1 << 7, OAMIndex: 0}}
	line, _ := ComposeSpriteLine(m, sprites, 0, bg, false)
	if line[0] != 0 {
		t.Fatalf("behind-bg sprite drawn over non-zero BG")
	}
	if line[1] != 3 {
		t.Fatalf("behind-bg sprite missing over BG color 0: got %d", line[1])
	}
}

func TestComposeSpriteLine_Flips(t *testing.T) {
	m := mapVRAM{}
	// Tile 4, row 0: leftmost pixel color 1, rest 0.
	m[0x8040] = 0x80
	// Row 7: leftmost pixel color 2.
	m[0x8040+15] = 0x80

	var bg [ScreenW]byte
	// X-flip moves the pixel to column 7.
	sprites := []Sprite{{X: 0, Y: 0, Tile: 4, Attr: 1 << 5, OAMIndex: 0}}
	line, _ := ComposeSpriteLine(m, sprites, 0, bg, false)
	if line[0] != 0 || line[7] != 1 {
		t.Fatalf("x-flip wrong: line[0]=%d line[7]=%d", line[0], line[7])
	}
	// Y-flip on scanline 0 samples row 7.
	sprites = []Sprite{{X: 0, Y: 0, Tile: 4, Attr: 1 << 6, OAMIndex: 0}}
	line, _ = ComposeSpriteLine(m, sprites, 0, bg, false)
	if line[0] != 2 {
		t.Fatalf("y-flip wrong: line[0]=%d", line[0])
	}
}

func TestCollectSprites_TenPerLineInOAMOrder(t *testing.T) {
	p, _ := newPPU()
	// Twelve sprites all covering scanline 0 (OAM Y=16 -> screen Y=0).
	for i := 0; i < 12; i++ {
		p.oam[i*4] = 16
		p.oam[i*4+1] = byte(8 + i*8)
		p.oam[i*4+2] = byte(i)
	}
	got := collectSprites(&p.oam, 0, false)
	if len(got) != 10 {
		t.Fatalf("sprite count got %d want 10", len(got))
	}
	for i, s := range got {
		if s.OAMIndex != i {
			t.Fatalf("sprite %d has OAM index %d; want OAM order", i, s.OAMIndex)
		}
	}
}

func TestPPU_FrameRendering(t *testing.T) {
	p, _ := newPPU()
	// Identity palette, BG+LCD enabled, unsigned tile data.
	p.Write(0xFF47, 0xE4)
	p.Write(0xFF40, 0x91)
	// Tile 1 solid color 3 in the top-left map cell.
	var lo, hi byte = 0xFF, 0xFF
	for row := uint16(0); row < 8; row++ {
		p.Write(0x8010+row*2, lo)
		p.Write(0x8010+row*2+1, hi)
	}
	p.Write(0x9800, 1)

	p.Tick(DotsPerFrame)
	fb := p.ShadeFrame()
	if fb[0] != 3 {
		t.Fatalf("pixel (0,0) got %d want 3", fb[0])
	}
	if fb[8] != 0 {
		t.Fatalf("pixel (8,0) got %d want 0", fb[8])
	}
	if fb[7*ScreenW+7] != 3 {
		t.Fatalf("pixel (7,7) got %d want 3", fb[7*ScreenW+7])
	}
	if fb[8*ScreenW] != 0 {
		t.Fatalf("pixel (0,8) got %d want 0", fb[8*ScreenW])
	}
}

func TestPPU_WindowOverlaysBackground(t *testing.T) {
	p, _ := newPPU()
	p.Write(0xFF47, 0xE4)
	// LCD + BG + window enabled; window map at 0x9C00.
	p.Write(0xFF40, 0x80|0x40|0x20|0x10|0x01)
	p.Write(0xFF4A, 0) // WY
	p.Write(0xFF4B, 7) // WX -> window starts at column 0
	// Window tile: solid color 2.
	for row := uint16(0); row < 8; row++ {
		p.Write(0x8020+row*2+1, 0xFF)
	}
	p.Write(0x9C00, 2)

	p.Tick(DotsPerFrame)
	fb := p.ShadeFrame()
	if fb[0] != 2 {
		t.Fatalf("window pixel got %d want 2", fb[0])
	}
}

func TestPPU_WindowWXBelowSeven(t *testing.T) {
	p, _ := newPPU()
	p.Write(0xFF47, 0xE4)
	p.Write(0xFF40, 0x80|0x40|0x20|0x10|0x01)
	p.Write(0xFF4A, 0) // WY
	p.Write(0xFF4B, 0) // WX=0: window start is off the left edge
	// Window tiles solid color 2 across the whole map row.
	for row := uint16(0); row < 8; row++ {
		p.Write(0x8020+row*2+1, 0xFF)
	}
	for i := uint16(0); i < 21; i++ {
		p.Write(0x9C00+i, 2)
	}

	p.Tick(dotsPerLine) // render scanline 0; must not panic
	fb := p.ShadeFrame()
	if fb[0] != 2 {
		t.Fatalf("left edge got %d want 2", fb[0])
	}
	if fb[152] != 2 {
		t.Fatalf("pixel 152 got %d want 2", fb[152])
	}
	// The seven rightmost columns fall past the rendered window line and
	// keep the background.
	if fb[153] != 0 {
		t.Fatalf("pixel 153 got %d want 0", fb[153])
	}
}
