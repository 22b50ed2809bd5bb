// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import (
	"errors"
	"strings"
	"testing"
)

func TestIrqDecode(t *testing.T) {
	irq, err := decodeIrqStatus([]byte{0xFF, 0xFF})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if irq != IrqAll {
		t.Fatalf("got %#04x expected %#04x", uint16(irq), uint16(IrqAll))
	}
	s := irq.String()
	for _, name := range []string{"TxDone", "RxDone", "CrcError", "MasterResultValid", "PreambleDetected"} {
		if !strings.Contains(s, name) {
			t.Fatalf("String %q missing %s", s, name)
		}
	}

	irq, err = decodeIrqStatus([]byte{0x40, 0x02})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if irq != IrqRxTxTimeout|IrqRxDone {
		t.Fatalf("got %v expected %v", irq, IrqRxTxTimeout|IrqRxDone)
	}

	if _, err := decodeIrqStatus([]byte{0x40}); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("got %v expected %v", err, ErrMalformedResponse)
	}
}

func TestIrqBytes(t *testing.T) {
	b := (IrqRxTxTimeout | IrqTxDone).bytes()
	if len(b) != 2 || b[0] != 0x40 || b[1] != 0x01 {
		t.Fatalf("got %+v expected [40 01]", b)
	}
}

// The IRQ register is write-1-to-clear: acknowledging one flag leaves the others set.
func TestIrqClearCycle(t *testing.T) {
	f := newFake()
	r := newTestRadio(f)
	f.irq = uint16(IrqRxDone | IrqCrcError | IrqHeaderValid)

	irq, err := r.PollIrq()
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if irq != IrqRxDone|IrqCrcError|IrqHeaderValid {
		t.Fatalf("poll got %v", irq)
	}

	if err := r.ClearIrq(IrqRxDone); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	irq, err = r.PollIrq()
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if irq != IrqCrcError|IrqHeaderValid {
		t.Fatalf("after clear got %v expected %v", irq, IrqCrcError|IrqHeaderValid)
	}

	if err := r.ClearIrq(IrqAll); err != nil {
		t.Fatalf("clear all failed: %v", err)
	}
	if f.irq != 0 {
		t.Fatalf("after clear all chip still has %#04x", f.irq)
	}
}
