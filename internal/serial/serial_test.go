package serial

import (
	"bytes"
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbcore/internal/irq"
)

func TestTransferDeliversByteAndRaisesIRQ(t *testing.T) {
	ic := irq.New()
	p := New(ic)
	var buf bytes.Buffer
	p.SetWriter(&buf)

	p.Write(AddrSB, 'G')
	p.Write(AddrSC, 0x81)

	if got := buf.String(); got != "G" {
		t.Fatalf("sink got %q want \"G\"", got)
	}
	if p.Read(AddrSC)&0x80 != 0 {
		t.Fatal("SC start bit still set after transfer")
	}
	ic.WriteIE(0xFF)
	if i, ok := ic.Pending(); !ok || i != irq.Serial {
		t.Fatalf("pending got %v,%v want Serial,true", i, ok)
	}
}

func TestWriterlessTransferStillCompletes(t *testing.T) {
	p := New(irq.New())
	p.Write(AddrSB, 0x42)
	p.Write(AddrSC, 0x81)
	if p.Read(AddrSC)&0x80 != 0 {
		t.Fatal("transfer did not complete without a sink")
	}
}

func TestRegisterReadback(t *testing.T) {
	p := New(irq.New())
	p.Write(AddrSB, 0x5A)
	if got := p.Read(AddrSB); got != 0x5A {
		t.Fatalf("SB got %02X want 5A", got)
	}
	p.Write(AddrSC, 0x01)
	if got := p.Read(AddrSC); got != 0x7F {
		t.Fatalf("SC got %02X want 7F", got)
	}
	if got := p.Read(0xFF03); got != 0xFF {
		t.Fatalf("unmapped read got %02X want FF", got)
	}
}
