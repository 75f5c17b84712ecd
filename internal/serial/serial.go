// Package serial implements the SB/SC link-port register pair. There is
// no link peer: a started transfer completes immediately, handing the
// byte to an optional io.Writer. Test ROMs report results this way.
package serial

import (
	"io"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/irq"
)

const (
	AddrSB = 0xFF01
	AddrSC = 0xFF02
)

type Port struct {
	sb  byte
	sc  byte
	out io.Writer
	irq *irq.Controller
}

func New(ic *irq.Controller) *Port { return &Port{irq: ic} }

// SetWriter attaches a sink receiving every transferred byte.
func (p *Port) SetWriter(w io.Writer) { p.out = w }

func (p *Port) Read(addr uint16) byte {
	switch addr {
	case AddrSB:
		return p.sb
	case AddrSC:
		return 0x7E | (p.sc & 0x81)
	}
	return 0xFF
}

func (p *Port) Write(addr uint16, v byte) {
	switch addr {
	case AddrSB:
		p.sb = v
	case AddrSC:
		p.sc = v & 0x81
		if p.sc&0x80 != 0 {
			if p.out != nil {
				_, _ = p.out.Write([]byte{p.sb})
			}
			// Transfer done: clear the start bit and request the interrupt.
			p.sc &^= 0x80
			if p.irq != nil {
				p.irq.Request(irq.Serial)
			}
		}
	}
}
