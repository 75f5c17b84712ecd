package ppu

// Scanline rendering. The background and window run through the
// fetcher/FIFO path; sprites are composited on top per pixel.

// rawVRAM gives the renderer unrestricted VRAM access.
type rawVRAM struct{ p *PPU }

func (r rawVRAM) Read(addr uint16) byte { return r.p.RawVRAM(addr) }

// RenderBGScanline renders 160 background color indices for scanline ly
// using the fetcher. mapBase is 0x9800 or 0x9C00; tileData8000 selects
// unsigned addressing.
func RenderBGScanline(mem VRAMReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) [ScreenW]byte {
	var out [ScreenW]byte

	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31

	startX := uint16(scx)
	tileX := (startX >> 3) & 31
	fineX := int(startX & 7)

	var q fifo
	f := newTileFetcher(mem, &q)
	f.Configure(tileData8000, mapBase+mapY*32+tileX, fineY)
	f.Fetch()
	// Discard the scx fractional pixels.
	for i := 0; i < fineX; i++ {
		_, _ = q.Pop()
	}

	for x := 0; x < ScreenW; x++ {
		if q.Len() == 0 {
			tileX = (tileX + 1) & 31 // wrap within the 32-tile map row
			f.Configure(tileData8000, mapBase+mapY*32+tileX, fineY)
			f.Fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}

// RenderWindowScanline renders one row of the window layer, in window
// coordinates: out[0] is the leftmost window column. winLine is the
// internal window line counter, not LY.
func RenderWindowScanline(mem VRAMReader, mapBase uint16, tileData8000 bool, winLine byte) [ScreenW]byte {
	var out [ScreenW]byte

	fineY := winLine & 7
	mapY := uint16(winLine / 8)

	var q fifo
	f := newTileFetcher(mem, &q)
	tileX := uint16(0)
	f.Configure(tileData8000, mapBase+mapY*32+tileX, fineY)
	f.Fetch()

	for x := 0; x < ScreenW; x++ {
		if q.Len() == 0 {
			tileX++
			f.Configure(tileData8000, mapBase+mapY*32+(tileX&31), fineY)
			f.Fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}

// Sprite is one OAM entry selected for the current scanline.
type Sprite struct {
	X, Y     int // top-left screen position (already offset by -8/-16)
	Tile     byte
	Attr     byte
	OAMIndex int
}

const maxSpritesPerLine = 10

// collectSprites performs the OAM scan for scanline y: up to ten sprites
// covering the line, in OAM order.
func collectSprites(oam *[0xA0]byte, y int, tall bool) []Sprite {
	h := 8
	if tall {
		h = 16
	}
	out := make([]Sprite, 0, maxSpritesPerLine)
	for i := 0; i < 40 && len(out) < maxSpritesPerLine; i++ {
		sy := int(oam[i*4]) - 16
		sx := int(oam[i*4+1]) - 8
		if sy <= y && y < sy+h {
			out = append(out, Sprite{X: sx, Y: sy, Tile: oam[i*4+2], Attr: oam[i*4+3], OAMIndex: i})
		}
	}
	return out
}

// ComposeSpriteLine overlays sprite pixels for scanline y onto a line of
// background color indices. It returns the sprite color index per pixel
// (0 = no sprite pixel) and which OBJ palette each pixel uses (0 or 1).
// Among overlapping opaque sprite pixels the lowest OAM index wins; a
// sprite with the behind-background attribute loses to non-zero BG pixels.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, y int, bgLine [ScreenW]byte, tall bool) (line, palSel [ScreenW]byte) {
	for x := 0; x < ScreenW; x++ {
		for _, s := range sprites {
			if x < s.X || x >= s.X+8 {
				continue
			}
			row := y - s.Y
			col := x - s.X
			if s.Attr&(1<<6) != 0 { // y-flip
				if tall {
					row = 15 - row
				} else {
					row = 7 - row
				}
			}
			if s.Attr&(1<<5) != 0 { // x-flip
				col = 7 - col
			}
			tile := s.Tile
			if tall {
				tile &= 0xFE
				if row >= 8 {
					tile++
				}
			}
			base := 0x8000 + uint16(tile)*16 + uint16(row&7)*2
			lo := mem.Read(base)
			hi := mem.Read(base + 1)
			bit := 7 - byte(col)
			ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if ci == 0 {
				continue // transparent
			}
			if s.Attr&(1<<7) != 0 && bgLine[x] != 0 {
				continue // behind non-zero background
			}
			line[x] = ci
			if s.Attr&(1<<4) != 0 {
				palSel[x] = 1
			}
			break // lowest OAM index wins
		}
	}
	return line, palSel
}

func shade(pal, ci byte) byte { return (pal >> (ci * 2)) & 0x03 }

// renderScanline composites background, window and sprites for line y and
// stores post-palette shades into the frame raster.
func (p *PPU) renderScanline(y int) {
	var bgci [ScreenW]byte
	mem := rawVRAM{p}

	bgEnabled := p.lcdc&0x01 != 0
	if bgEnabled {
		mapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := p.lcdc&0x10 != 0
		bgci = RenderBGScanline(mem, mapBase, tileData8000, p.scx, p.scy, byte(y))

		// Window sits on top of the background when enabled and in range.
		if p.lcdc&0x20 != 0 && p.wy < ScreenH && y >= int(p.wy) && p.wx <= 166 {
			winX := int(p.wx) - 7
			if winX < ScreenW {
				winMapBase := uint16(0x9800)
				if p.lcdc&0x40 != 0 {
					winMapBase = 0x9C00
				}
				wline := RenderWindowScanline(mem, winMapBase, tileData8000, p.winLine)
				// WX below 7 pushes the window start off the left edge;
				// clamp both ends so the source stays within the line.
				start := winX
				if start < 0 {
					start = 0
				}
				end := winX + ScreenW
				if end > ScreenW {
					end = ScreenW
				}
				for x := start; x < end; x++ {
					bgci[x] = wline[x-winX]
				}
				p.winLine++
			}
		}
	}

	row := p.frame[y*ScreenW : (y+1)*ScreenW]
	for x := 0; x < ScreenW; x++ {
		if bgEnabled {
			row[x] = shade(p.bgp, bgci[x])
		} else {
			row[x] = 0
		}
	}

	if p.lcdc&0x02 != 0 { // sprites enabled
		tall := p.lcdc&0x04 != 0
		sprites := collectSprites(&p.oam, y, tall)
		if len(sprites) > 0 {
			line, palSel := ComposeSpriteLine(mem, sprites, y, bgci, tall)
			for x := 0; x < ScreenW; x++ {
				if line[x] == 0 {
					continue
				}
				pal := p.obp0
				if palSel[x] == 1 {
					pal = p.obp1
				}
				row[x] = shade(pal, line[x])
			}
		}
	}
}
