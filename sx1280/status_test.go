// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import (
	"errors"
	"testing"
)

func TestPacketStatusLoRa(t *testing.T) {
	cases := map[string]struct {
		raw  [5]byte
		rssi float64
		snr  float64
	}{
		"strong": {[5]byte{0x28, 0x08, 0, 0, 0}, -20.0, 8.0},
		"weak":   {[5]byte{0xC8, 0xFC, 0, 0, 0}, -100.0, -4.0},
		"zero":   {[5]byte{0x00, 0x00, 0, 0, 0}, 0.0, 0.0},
	}
	for n, tc := range cases {
		for _, pt := range []PacketType{PacketLoRa, PacketRanging} {
			ps, err := decodePacketStatus(tc.raw[:], pt)
			if err != nil {
				t.Fatalf("%s/%v: unexpected error %v", n, pt, err)
			}
			if ps.Rssi != tc.rssi {
				t.Fatalf("%s/%v: rssi got %v expected %v", n, pt, ps.Rssi, tc.rssi)
			}
			if ps.Snr != tc.snr {
				t.Fatalf("%s/%v: snr got %v expected %v", n, pt, ps.Snr, tc.snr)
			}
		}
	}
}

func TestPacketStatusGfsk(t *testing.T) {
	raw := []byte{0x00, 0x50, 0x50, 0x00, 0x02} // rssi -40, sync+crc errors, sync addr 2
	for _, pt := range []PacketType{PacketGfsk, PacketFlrc, PacketBle} {
		ps, err := decodePacketStatus(raw, pt)
		if err != nil {
			t.Fatalf("%v: unexpected error %v", pt, err)
		}
		if ps.Rssi != -40.0 {
			t.Fatalf("%v: rssi got %v expected -40", pt, ps.Rssi)
		}
		if !ps.SyncError || !ps.CrcError {
			t.Fatalf("%v: error flags got %+v", pt, ps)
		}
		if ps.LengthError || ps.AbortError {
			t.Fatalf("%v: spurious error flags %+v", pt, ps)
		}
		if ps.SyncAddr != 2 {
			t.Fatalf("%v: sync addr got %d expected 2", pt, ps.SyncAddr)
		}
	}
}

func TestPacketStatusUnsupported(t *testing.T) {
	if _, err := decodePacketStatus(make([]byte, 5), PacketNone); !errors.Is(err, ErrUnsupportedPacketType) {
		t.Fatalf("got %v expected %v", err, ErrUnsupportedPacketType)
	}
	if _, err := decodePacketStatus([]byte{1, 2}, PacketLoRa); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("got %v expected %v", err, ErrMalformedResponse)
	}
}

func TestRxBufferStatus(t *testing.T) {
	bs, err := decodeRxBufferStatus([]byte{17, 0x80})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if bs.Length != 17 || bs.Offset != 0x80 {
		t.Fatalf("got %+v expected {17 128}", bs)
	}
	if _, err := decodeRxBufferStatus([]byte{17}); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("got %v expected %v", err, ErrMalformedResponse)
	}
}
