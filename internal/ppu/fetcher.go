package ppu

// VRAMReader abstracts how tile bytes are fetched, so the scanline
// helpers work against the live PPU or a test fixture.
type VRAMReader interface {
	Read(addr uint16) byte
}

// fifo is a small ring buffer of 2-bit color indices.
type fifo struct {
	buf  [32]byte
	head int
	tail int
	size int
}

func (q *fifo) Clear()   { q.head, q.tail, q.size = 0, 0, 0 }
func (q *fifo) Len() int { return q.size }

func (q *fifo) Push(ci byte) bool {
	if q.size == len(q.buf) {
		return false
	}
	q.buf[q.tail] = ci & 0x03
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++
	return true
}

func (q *fifo) Pop() (byte, bool) {
	if q.size == 0 {
		return 0, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v, true
}

// tileFetcher pulls one tile row (8 pixels) at a time into the FIFO. Both
// the background and the window use it; only the map base and the row
// coordinate differ.
type tileFetcher struct {
	mem           VRAMReader
	fifo          *fifo
	tileData8000  bool   // true: 0x8000 unsigned; false: 0x9000 signed
	tileIndexAddr uint16 // address of the tile number within the map
	fineY         byte   // 0..7 within the tile
}

func newTileFetcher(mem VRAMReader, f *fifo) *tileFetcher {
	return &tileFetcher{mem: mem, fifo: f}
}

// Configure points the fetcher at a map entry and row for the next fetch.
func (fch *tileFetcher) Configure(tileData8000 bool, tileIndexAddr uint16, fineY byte) {
	fch.tileData8000 = tileData8000
	fch.tileIndexAddr = tileIndexAddr
	fch.fineY = fineY & 7
}

// Fetch decodes the addressed tile row and pushes its 8 color indices.
func (fch *tileFetcher) Fetch() {
	tileNum := fch.mem.Read(fch.tileIndexAddr)
	var base uint16
	if fch.tileData8000 {
		base = 0x8000 + uint16(tileNum)*16 + uint16(fch.fineY)*2
	} else {
		base = uint16(int(0x9000) + int(int8(tileNum))*16 + int(fch.fineY)*2)
	}
	lo := fch.mem.Read(base)
	hi := fch.mem.Read(base + 1)
	for px := 0; px < 8; px++ {
		bit := 7 - byte(px)
		ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		_ = fch.fifo.Push(ci)
	}
}
