// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import (
	"errors"
	"testing"
)

func TestLegalityMatrix(t *testing.T) {
	cases := map[string]struct {
		mode ChipMode
		op   Opcode
		ok   bool
	}{
		"tx-from-standby":      {ModeStandbyRC, CmdSetTx, true},
		"tx-from-fs":           {ModeFS, CmdSetTx, true},
		"tx-from-sleep":        {ModeSleep, CmdSetTx, false},
		"tx-from-rx":           {ModeRx, CmdSetTx, false},
		"tx-from-unknown":      {ModeUnknown, CmdSetTx, false},
		"config-during-rx":     {ModeRx, CmdSetModulationParams, false},
		"config-from-standby":  {ModeStandbyXOSC, CmdSetModulationParams, true},
		"standby-from-sleep":   {ModeSleep, CmdSetStandby, true},
		"standby-from-unknown": {ModeUnknown, CmdSetStandby, true},
		"sleep-from-sleep":     {ModeSleep, CmdSetSleep, true},
		"sleep-from-tx":        {ModeTx, CmdSetSleep, false},
		"status-from-unknown":  {ModeUnknown, CmdGetStatus, true},
		"irq-while-asleep":     {ModeSleep, CmdGetIrqStatus, false},
		"irq-during-rx":        {ModeRx, CmdGetIrqStatus, true},
		"read-buf-during-rx":   {ModeRx, CmdReadBuffer, true},
		"write-buf-during-rx":  {ModeRx, CmdWriteBuffer, false},
		"read-reg-unknown":     {ModeUnknown, CmdReadRegister, true},
	}
	for n, tc := range cases {
		r := newTestRadio(newFake())
		r.mode = tc.mode
		err := r.checkTransition(tc.op)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", n, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidStateTransition) {
			t.Fatalf("%s: got %v expected %v", n, err, ErrInvalidStateTransition)
		}
	}
}

// An illegal command must be refused before anything is clocked onto the bus.
func TestIllegalCommandNoTransport(t *testing.T) {
	f := newFake()
	r := newTestRadio(f)
	r.mode = ModeSleep

	_, err := r.execCommand(CmdSetTx, []byte{PERIOD_1_MS, 0x00, 0x00})
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("got %v expected %v", err, ErrInvalidStateTransition)
	}
	if len(f.calls) != 0 {
		t.Fatalf("expected no SPI traffic, saw %v", f.calls)
	}
}

func TestCompatMode(t *testing.T) {
	f := newFake()
	r := newTestRadio(f)
	r.compat = true
	r.mode = ModeUnknown

	// a config command out of place is logged and waved through
	if _, err := r.execCommand(CmdSetPacketType, []byte{byte(PacketLoRa)}); err != nil {
		t.Fatalf("compat should permit config from unknown: %v", err)
	}

	// transitions into an active mode never are
	r.mode = ModeSleep
	_, err := r.execCommand(CmdSetRx, []byte{PERIOD_1_MS, 0xFF, 0xFF})
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("got %v expected %v", err, ErrInvalidStateTransition)
	}
}

func TestChipModeNames(t *testing.T) {
	if ModeRxDutyCycle.String() != "rx-duty-cycle" {
		t.Fatalf("got %q", ModeRxDutyCycle.String())
	}
	if ChipMode(42).String() != "ChipMode(42)" {
		t.Fatalf("got %q", ChipMode(42).String())
	}
}
