// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import (
	"context"
	"errors"
	"testing"
)

// Configure must issue its steps in the fixed order and nothing else.
func TestConfigureSequence(t *testing.T) {
	f := newFake()
	r := newTestRadio(f)

	if err := r.Configure(testLoRa); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	want := []Opcode{
		CmdSetStandby, CmdSetPacketType, CmdSetModulationParams, CmdSetPacketParams,
		CmdSetBufferBaseAddress, CmdSetRfFrequency, CmdSetTxParams,
	}
	if len(f.calls) != len(want) {
		t.Fatalf("call sequence got %v expected %v", f.calls, want)
	}
	for i := range want {
		if f.calls[i] != want[i] {
			t.Fatalf("call %d got %v expected %v", i, f.calls[i], want[i])
		}
	}
	if !r.configured {
		t.Fatalf("radio should be configured")
	}
	if f.pktType != byte(PacketLoRa) {
		t.Fatalf("packet type got %#02x expected %#02x", f.pktType, byte(PacketLoRa))
	}
}

// A failing step aborts the sequence right there: later steps are never issued and the
// radio stays unconfigured.
func TestConfigureAbort(t *testing.T) {
	f := newFake()
	f.failOp = CmdSetModulationParams
	r := newTestRadio(f)

	err := r.Configure(testLoRa)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("got %v expected %v", err, ErrCommandFailed)
	}
	if f.count(CmdSetPacketParams) != 0 {
		t.Fatalf("SetPacketParams issued after a failed step: %v", f.calls)
	}
	if f.count(CmdSetRfFrequency) != 0 {
		t.Fatalf("SetRfFrequency issued after a failed step: %v", f.calls)
	}
	if r.configured {
		t.Fatalf("radio must not be configured after an aborted sequence")
	}
	if err := r.Transmit(context.Background(), []byte{1}, 0); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("transmit got %v expected %v", err, ErrNotConfigured)
	}
}

func TestLoRaWireEncoding(t *testing.T) {
	c := &LoRaConfig{SpreadingFactor: 7, Bandwidth: BW_400, CodingRate: CR_4_5,
		PreambleLength: 12, PayloadLength: 32}
	mp := c.modParams()
	if mp != [3]byte{0x70, 0x26, 0x01} {
		t.Fatalf("mod params got %+v expected [70 26 01]", mp)
	}
	pp := c.pktParams()
	if pp != [7]byte{12, 0x00, 32, 0x20, 0x40, 0, 0} {
		t.Fatalf("pkt params got %+v", pp)
	}

	c.ImplicitHeader = true
	c.NoCrc = true
	c.InvertIQ = true
	pp = c.pktParams()
	if pp != [7]byte{12, 0x80, 32, 0x00, 0x00, 0, 0} {
		t.Fatalf("pkt params got %+v", pp)
	}
}

func TestConfigValidation(t *testing.T) {
	bad := map[string]Modulation{
		"sf-low":      &LoRaConfig{SpreadingFactor: 4, Bandwidth: BW_400, CodingRate: CR_4_5, PreambleLength: 8},
		"sf-high":     &LoRaConfig{SpreadingFactor: 13, Bandwidth: BW_400, CodingRate: CR_4_5, PreambleLength: 8},
		"bad-bw":      &LoRaConfig{SpreadingFactor: 7, Bandwidth: 0x42, CodingRate: CR_4_5, PreambleLength: 8},
		"no-preamble": &LoRaConfig{SpreadingFactor: 7, Bandwidth: BW_400, CodingRate: CR_4_5},
		"ranging-sf12": &RangingConfig{LoRaConfig: LoRaConfig{
			SpreadingFactor: 12, Bandwidth: BW_400, CodingRate: CR_4_5, PreambleLength: 8}},
		"gfsk-modindex": &GfskConfig{ModIndex: 16, PayloadLength: 10},
		"flrc-short":    &FlrcConfig{PayloadLength: 3},
	}
	for n, m := range bad {
		r := newTestRadio(newFake())
		if err := r.Configure(m); err == nil {
			t.Fatalf("%s: expected a validation error", n)
		}
	}
}

func TestSetFrequency(t *testing.T) {
	f := newFake()
	r := newTestRadio(f)
	// 2403 in MHz scales up to 2403000000 Hz; steps = 2403e6 * 2^18 / 52e6
	if err := r.setFrequency(2403); err != nil {
		t.Fatalf("set frequency failed: %v", err)
	}
	if r.freq != 2403000000 {
		t.Fatalf("freq got %d expected 2403000000", r.freq)
	}
	want := []byte{0xB8, 0xD8, 0x9D} // 12114077 PLL steps
	if len(f.freqParams) != 3 || f.freqParams[0] != want[0] ||
		f.freqParams[1] != want[1] || f.freqParams[2] != want[2] {
		t.Fatalf("frequency params got %+v expected %+v", f.freqParams, want)
	}
}

func TestSetTxPowerClamp(t *testing.T) {
	cases := map[string]struct {
		dbm  int8
		wire byte
	}{
		"max":     {13, 31},
		"min":     {-18, 0},
		"mid":     {0, 18},
		"too-hot": {20, 31},
		"too-low": {-30, 0},
	}
	for n, tc := range cases {
		f := newFake()
		r := newTestRadio(f)
		if err := r.setTxPower(tc.dbm); err != nil {
			t.Fatalf("%s: set power failed: %v", n, err)
		}
		if len(f.txParams) != 2 || f.txParams[0] != tc.wire {
			t.Fatalf("%s: power params got %+v expected [%d %d]", n, f.txParams, tc.wire, RAMP_10_US)
		}
		if f.txParams[1] != RAMP_10_US {
			t.Fatalf("%s: ramp got %#02x expected %#02x", n, f.txParams[1], RAMP_10_US)
		}
	}
}

func TestConfigureRoutesIrqs(t *testing.T) {
	f := newFake()
	r := newTestRadio(f)
	r.intrPin = &fakePin{}
	if err := r.Configure(testLoRa); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if f.count(CmdSetDioIrqParams) != 1 {
		t.Fatalf("expected one SetDioIrqParams with an interrupt pin, got %d",
			f.count(CmdSetDioIrqParams))
	}
}
