// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import (
	"errors"
	"testing"
)

var frames = map[string]struct {
	op      Opcode
	params  []byte
	respLen int
	frame   []byte
}{
	"get-status":   {CmdGetStatus, nil, 0, []byte{0xC0, 0x00}},
	"standby":      {CmdSetStandby, []byte{STDBY_RC}, 0, []byte{0x80, 0x00}},
	"fs":           {CmdSetFs, nil, 0, []byte{0xC1}},
	"set-tx":       {CmdSetTx, []byte{0x02, 0x01, 0xF4}, 0, []byte{0x83, 0x02, 0x01, 0xF4}},
	"packet-type":  {CmdSetPacketType, []byte{0x01}, 0, []byte{0x8A, 0x01}},
	"get-irq":      {CmdGetIrqStatus, nil, 0, []byte{0x15, 0x00, 0x00, 0x00}},
	"clear-irq":    {CmdClearIrqStatus, []byte{0x40, 0x02}, 0, []byte{0x97, 0x40, 0x02}},
	"read-reg":     {CmdReadRegister, []byte{0x01, 0x53}, 2, []byte{0x19, 0x01, 0x53, 0x00, 0x00, 0x00}},
	"write-reg":    {CmdWriteRegister, []byte{0x09, 0x44, 0x12}, 0, []byte{0x18, 0x09, 0x44, 0x12}},
	"read-buffer":  {CmdReadBuffer, []byte{0x20}, 3, []byte{0x1B, 0x20, 0x00, 0x00, 0x00, 0x00}},
	"write-buffer": {CmdWriteBuffer, []byte{0x00, 0xAA, 0xBB}, 0, []byte{0x1A, 0x00, 0xAA, 0xBB}},
	"pkt-status":   {CmdGetPacketStatus, nil, 0, []byte{0x1D, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
}

func TestEncodeCmd(t *testing.T) {
	for n, tc := range frames {
		got, err := encodeCmd(tc.op, tc.params, tc.respLen)
		if err != nil {
			t.Fatalf("Encoding %s: unexpected error %v", n, err)
		}
		if len(got) != len(tc.frame) {
			t.Fatalf("Encoding %s length mismatch got %+v expected %+v", n, got, tc.frame)
		}
		for i := range got {
			if got[i] != tc.frame[i] {
				t.Fatalf("Encoding %s got %+v expected %+v", n, got, tc.frame)
			}
		}
	}
}

func TestEncodeCmdBadParams(t *testing.T) {
	bad := map[string]struct {
		op     Opcode
		params []byte
	}{
		"standby-extra":  {CmdSetStandby, []byte{0, 1}},
		"standby-none":   {CmdSetStandby, nil},
		"set-tx-short":   {CmdSetTx, []byte{0x02}},
		"write-reg-bare": {CmdWriteRegister, []byte{0x09, 0x44}}, // address but no data
		"write-buf-bare": {CmdWriteBuffer, []byte{0x00}},
		"unknown-opcode": {Opcode(0x42), nil},
	}
	for n, tc := range bad {
		if _, err := encodeCmd(tc.op, tc.params, 0); !errors.Is(err, ErrInvalidParameterLength) {
			t.Fatalf("%s: got %v expected %v", n, err, ErrInvalidParameterLength)
		}
	}
}

func TestStatusByte(t *testing.T) {
	statuses := map[string]struct {
		raw  byte
		cmd  CmdStatus
		mode ChipMode
	}{
		"ok-standby-rc":   {0x28, StatusOk, ModeStandbyRC}, // 001 010 00
		"data-avail-rx":   {0x54, StatusDataAvail, ModeRx}, // 010 101 00
		"timeout-tx":      {0x78, StatusTimeout, ModeTx},   // 011 110 00
		"failure-fs":      {0xB0, StatusFailure, ModeFS},   // 101 100 00
		"ok-sleep":        {0x24, StatusOk, ModeSleep},     // 001 001 00
		"reserved-mode-0": {0x20, StatusOk, ModeUnknown},   // mode bits 000
		"reserved-mode-7": {0x3C, StatusOk, ModeUnknown},   // mode bits 111
	}
	for n, tc := range statuses {
		s := Status(tc.raw)
		if s.Cmd() != tc.cmd {
			t.Fatalf("%s: cmd got %v expected %v", n, s.Cmd(), tc.cmd)
		}
		if s.Mode() != tc.mode {
			t.Fatalf("%s: mode got %v expected %v", n, s.Mode(), tc.mode)
		}
	}
}

func TestDecodeResponse(t *testing.T) {
	// ReadRegister of 2 bytes: status mirrored into the header, payload at the end
	out, err := encodeCmd(CmdReadRegister, []byte{0x01, 0x53}, 2)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	in := []byte{0x28, 0x28, 0x28, 0x28, 0xA9, 0xB5}
	resp, err := decodeResponse(CmdReadRegister, out, in, 2, true, nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Status.Cmd() != StatusOk || resp.Status.Mode() != ModeStandbyRC {
		t.Fatalf("status got %v", resp.Status)
	}
	if len(resp.Payload) != 2 || resp.Payload[0] != 0xA9 || resp.Payload[1] != 0xB5 {
		t.Fatalf("payload got %+v expected [a9 b5]", resp.Payload)
	}
}

func TestDecodeResponseLengthMismatch(t *testing.T) {
	out, _ := encodeCmd(CmdGetIrqStatus, nil, 0)
	_, err := decodeResponse(CmdGetIrqStatus, out, []byte{0x28}, 0, true, nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("got %v expected %v", err, ErrMalformedResponse)
	}
}

func TestReservedStatusBits(t *testing.T) {
	out, _ := encodeCmd(CmdSetStandby, []byte{STDBY_RC}, 0)
	in := []byte{0x2B, 0x2B} // reserved bits 1:0 set

	if _, err := decodeResponse(CmdSetStandby, out, in, 0, true, nil); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("strict: got %v expected %v", err, ErrMalformedResponse)
	}

	warned := false
	warn := func(format string, v ...interface{}) { warned = true }
	resp, err := decodeResponse(CmdSetStandby, out, in, 0, false, warn)
	if err != nil {
		t.Fatalf("lenient: unexpected error %v", err)
	}
	if !warned {
		t.Fatalf("lenient: expected a warning for reserved bits")
	}
	if resp.Status.reserved() != 0 {
		t.Fatalf("lenient: reserved bits should be masked, got %#02x", byte(resp.Status))
	}
}
