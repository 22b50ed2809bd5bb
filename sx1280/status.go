// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import "fmt"

// PacketStatus holds the per-packet link stats reported by GetPacketStatus. The wire
// layout depends on the active packet type, so decoding dispatches on it: LoRa and
// ranging packets report RSSI and SNR, the FSK-family types (GFSK, FLRC, BLE) report
// RSSI plus sync/length/CRC/abort error flags and the matched sync address.
type PacketStatus struct {
	Rssi float64 // RSSI of the last packet in dBm
	Snr  float64 // signal to noise in dB, LoRa/ranging only

	// FSK-family error flags
	SyncError   bool // sync word not matched
	LengthError bool // received length out of range
	CrcError    bool // payload CRC mismatch
	AbortError  bool // reception aborted
	SyncAddr    byte // which of the three sync addresses matched
}

// decodePacketStatus parses the five bytes returned by GetPacketStatus according to the
// active packet type.
func decodePacketStatus(b []byte, pt PacketType) (*PacketStatus, error) {
	if len(b) != 5 {
		return nil, fmt.Errorf("%w: packet status is %d bytes, expected 5",
			ErrMalformedResponse, len(b))
	}
	switch pt {
	case PacketLoRa, PacketRanging:
		// [0]=rssiSync, [1]=snr, rest reserved
		return &PacketStatus{
			Rssi: -float64(b[0]) / 2,
			Snr:  float64(int8(b[1])),
		}, nil
	case PacketGfsk, PacketFlrc, PacketBle:
		// [0]=rfu, [1]=rssiSync, [2]=errors, [3]=status, [4]=sync
		return &PacketStatus{
			Rssi:        -float64(b[1]) / 2,
			SyncError:   b[2]&0x40 != 0,
			LengthError: b[2]&0x20 != 0,
			CrcError:    b[2]&0x10 != 0,
			AbortError:  b[2]&0x08 != 0,
			SyncAddr:    b[4] & 0x07,
		}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedPacketType, pt)
}

// RxBufferStatus locates the most recently received packet in the chip's data buffer.
type RxBufferStatus struct {
	Length byte // payload length in bytes
	Offset byte // buffer offset of the first payload byte
}

// decodeRxBufferStatus parses the two bytes returned by GetRxBufferStatus.
func decodeRxBufferStatus(b []byte) (RxBufferStatus, error) {
	if len(b) != 2 {
		return RxBufferStatus{}, fmt.Errorf("%w: rx buffer status is %d bytes, expected 2",
			ErrMalformedResponse, len(b))
	}
	return RxBufferStatus{Length: b[0], Offset: b[1]}, nil
}
