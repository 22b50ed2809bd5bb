// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import "fmt"

// PacketType selects the active modulation scheme. All packet types share the same
// command opcodes but give the parameter bytes of SetModulationParams and
// SetPacketParams different meanings, which is why each type gets its own config
// variant below instead of one struct with overloaded fields.
type PacketType byte

const (
	PacketGfsk    PacketType = 0x00
	PacketLoRa    PacketType = 0x01
	PacketRanging PacketType = 0x02
	PacketFlrc    PacketType = 0x03
	PacketBle     PacketType = 0x04
	PacketNone    PacketType = 0x0F
)

var packetNames = map[PacketType]string{
	PacketGfsk: "gfsk", PacketLoRa: "lora", PacketRanging: "ranging",
	PacketFlrc: "flrc", PacketBle: "ble", PacketNone: "none",
}

func (pt PacketType) String() string {
	if n, ok := packetNames[pt]; ok {
		return n
	}
	return fmt.Sprintf("PacketType(%#02x)", byte(pt))
}

// LoRa bandwidth codes and their physical bandwidth in kHz.
const (
	BW_1600 = 0x0A
	BW_800  = 0x18
	BW_400  = 0x26
	BW_200  = 0x34
)

var loraBwKhz = map[byte]float64{
	BW_1600: 1625.0,
	BW_800:  812.5,
	BW_400:  406.25,
	BW_200:  203.125,
}

// LoRa coding rate codes; the LI variants interleave for better burst robustness.
const (
	CR_4_5    = 0x01
	CR_4_6    = 0x02
	CR_4_7    = 0x03
	CR_4_8    = 0x04
	CR_LI_4_5 = 0x05
	CR_LI_4_6 = 0x06
	CR_LI_4_7 = 0x07
)

// Bitrate/bandwidth pair codes shared by the GFSK and BLE modems (Mb/s / MHz).
const (
	GFSK_BR_2_000_BW_2_4 = 0x04
	GFSK_BR_1_600_BW_2_4 = 0x28
	GFSK_BR_1_000_BW_2_4 = 0x4C
	GFSK_BR_1_000_BW_1_2 = 0x45
	GFSK_BR_0_800_BW_2_4 = 0x70
	GFSK_BR_0_800_BW_1_2 = 0x69
	GFSK_BR_0_500_BW_1_2 = 0x8D
	GFSK_BR_0_500_BW_0_6 = 0x86
	GFSK_BR_0_400_BW_1_2 = 0xB1
	GFSK_BR_0_400_BW_0_6 = 0xAA
	GFSK_BR_0_250_BW_0_6 = 0xCE
	GFSK_BR_0_250_BW_0_3 = 0xC7
	GFSK_BR_0_125_BW_0_3 = 0xEF
)

// FLRC bitrate/bandwidth pair codes.
const (
	FLRC_BR_1_300_BW_1_2 = 0x45
	FLRC_BR_1_040_BW_1_2 = 0x69
	FLRC_BR_0_650_BW_0_6 = 0x86
	FLRC_BR_0_520_BW_0_6 = 0xAA
	FLRC_BR_0_325_BW_0_3 = 0xC7
	FLRC_BR_0_260_BW_0_3 = 0xEB
)

// FLRC coding rates.
const (
	FLRC_CR_1_2 = 0x00
	FLRC_CR_3_4 = 0x02
	FLRC_CR_1_0 = 0x04
)

// Gaussian filter shaping for the FSK-family modems.
const (
	BT_OFF = 0x00
	BT_1_0 = 0x10
	BT_0_5 = 0x20
)

// Preamble length codes for GFSK and FLRC, 4..32 bits in steps of 4.
const (
	PREAMBLE_04_BITS = 0x00
	PREAMBLE_08_BITS = 0x10
	PREAMBLE_12_BITS = 0x20
	PREAMBLE_16_BITS = 0x30
	PREAMBLE_20_BITS = 0x40
	PREAMBLE_24_BITS = 0x50
	PREAMBLE_28_BITS = 0x60
	PREAMBLE_32_BITS = 0x70
)

// Sync word length codes for GFSK (1..5 bytes) and FLRC (none or 4 bytes).
const (
	SYNC_LEN_1 = 0x00
	SYNC_LEN_2 = 0x02
	SYNC_LEN_3 = 0x04
	SYNC_LEN_4 = 0x06
	SYNC_LEN_5 = 0x08

	FLRC_SYNC_NONE = 0x00
	FLRC_SYNC_4    = 0x04
)

// Sync word match configuration: which of the three sync addresses to accept.
const (
	SYNC_MATCH_OFF   = 0x00
	SYNC_MATCH_1     = 0x10
	SYNC_MATCH_2     = 0x20
	SYNC_MATCH_1_2   = 0x30
	SYNC_MATCH_3     = 0x40
	SYNC_MATCH_1_3   = 0x50
	SYNC_MATCH_2_3   = 0x60
	SYNC_MATCH_1_2_3 = 0x70
)

// CRC length codes for the FSK-family packet engines.
const (
	CRC_OFF     = 0x00
	CRC_1_BYTE  = 0x10
	CRC_2_BYTES = 0x20
	CRC_3_BYTES = 0x30 // FLRC only
)

// Modulation is the tagged configuration variant for one packet type. Each variant
// knows its wire encoding for SetModulationParams (3 bytes) and SetPacketParams
// (7 bytes); adding a packet type means adding a variant, nothing else changes.
type Modulation interface {
	PacketType() PacketType
	modParams() [3]byte
	pktParams() [7]byte
	validate() error
}

// LoRaConfig configures the LoRa modem.
type LoRaConfig struct {
	SpreadingFactor byte // 5..12
	Bandwidth       byte // BW_* code
	CodingRate      byte // CR_* code
	PreambleLength  byte // preamble symbols, 1..255
	ImplicitHeader  bool // fixed-length packets, no header on air
	PayloadLength   byte // payload bytes; the length for implicit header mode
	NoCrc           bool
	InvertIQ        bool
}

func (c *LoRaConfig) PacketType() PacketType { return PacketLoRa }

func (c *LoRaConfig) modParams() [3]byte {
	return [3]byte{c.SpreadingFactor << 4, c.Bandwidth, c.CodingRate}
}

func (c *LoRaConfig) pktParams() [7]byte {
	hdr := byte(0x00) // explicit, variable length
	if c.ImplicitHeader {
		hdr = 0x80
	}
	crc := byte(0x20)
	if c.NoCrc {
		crc = 0x00
	}
	iq := byte(0x40) // normal
	if c.InvertIQ {
		iq = 0x00
	}
	return [7]byte{c.PreambleLength, hdr, c.PayloadLength, crc, iq, 0, 0}
}

func (c *LoRaConfig) validate() error {
	if c.SpreadingFactor < 5 || c.SpreadingFactor > 12 {
		return fmt.Errorf("sx1280: spreading factor %d out of range 5..12", c.SpreadingFactor)
	}
	if _, ok := loraBwKhz[c.Bandwidth]; !ok {
		return fmt.Errorf("sx1280: invalid LoRa bandwidth code %#02x", c.Bandwidth)
	}
	if c.CodingRate < CR_4_5 || c.CodingRate > CR_LI_4_7 {
		return fmt.Errorf("sx1280: invalid coding rate code %#02x", c.CodingRate)
	}
	if c.PreambleLength == 0 {
		return fmt.Errorf("sx1280: preamble length must be at least 1 symbol")
	}
	return nil
}

// RangingConfig configures the ranging engine, which runs on the LoRa modem with a
// per-device address exchanged during the request. Ranging calibration only exists for
// spreading factors 5..10.
type RangingConfig struct {
	LoRaConfig
	Address   uint32 // ranging device address (slave) or target address (master)
	CheckBits byte   // RANGING_CHECK_* code: address bits the slave verifies
}

// Address check length codes for RangingConfig.CheckBits.
const (
	RANGING_CHECK_8  = 0x00
	RANGING_CHECK_16 = 0x40
	RANGING_CHECK_24 = 0x80
	RANGING_CHECK_32 = 0xC0
)

func (c *RangingConfig) PacketType() PacketType { return PacketRanging }

func (c *RangingConfig) validate() error {
	if err := c.LoRaConfig.validate(); err != nil {
		return err
	}
	if c.SpreadingFactor > 10 {
		return fmt.Errorf("sx1280: no ranging calibration for SF%d, use SF5..SF10",
			c.SpreadingFactor)
	}
	return nil
}

// GfskConfig configures the GFSK modem.
type GfskConfig struct {
	Bitrate        byte // GFSK_BR_* code
	ModIndex       byte // modulation index in steps of 0.25 starting at 0.35: 0=0.35 .. 15=4.0
	Shaping        byte // BT_* code
	PreambleLength byte // PREAMBLE_* code
	SyncWordLength byte // SYNC_LEN_* code
	SyncWordMatch  byte // SYNC_MATCH_* code
	FixedLength    bool // no length byte on air
	PayloadLength  byte
	CrcLength      byte // CRC_* code
	NoWhitening    bool
}

func (c *GfskConfig) PacketType() PacketType { return PacketGfsk }

func (c *GfskConfig) modParams() [3]byte {
	return [3]byte{c.Bitrate, c.ModIndex, c.Shaping}
}

func (c *GfskConfig) pktParams() [7]byte {
	hdr := byte(0x20) // variable length
	if c.FixedLength {
		hdr = 0x00
	}
	wh := byte(0x00) // whitening on
	if c.NoWhitening {
		wh = 0x08
	}
	return [7]byte{c.PreambleLength, c.SyncWordLength, c.SyncWordMatch, hdr,
		c.PayloadLength, c.CrcLength, wh}
}

func (c *GfskConfig) validate() error {
	if c.ModIndex > 15 {
		return fmt.Errorf("sx1280: GFSK modulation index code %d out of range 0..15", c.ModIndex)
	}
	if c.PayloadLength == 0 {
		return fmt.Errorf("sx1280: GFSK payload length must be 1..255")
	}
	return nil
}

// FlrcConfig configures the FLRC (fast long-range) modem.
type FlrcConfig struct {
	Bitrate        byte // FLRC_BR_* code
	CodingRate     byte // FLRC_CR_* code
	Shaping        byte // BT_* code
	PreambleLength byte // PREAMBLE_* code
	SyncWordLength byte // FLRC_SYNC_* code
	SyncWordMatch  byte // SYNC_MATCH_* code
	FixedLength    bool
	PayloadLength  byte
	CrcLength      byte // CRC_* code
}

func (c *FlrcConfig) PacketType() PacketType { return PacketFlrc }

func (c *FlrcConfig) modParams() [3]byte {
	return [3]byte{c.Bitrate, c.CodingRate, c.Shaping}
}

func (c *FlrcConfig) pktParams() [7]byte {
	hdr := byte(0x20)
	if c.FixedLength {
		hdr = 0x00
	}
	return [7]byte{c.PreambleLength, c.SyncWordLength, c.SyncWordMatch, hdr,
		c.PayloadLength, c.CrcLength, 0x08} // whitening unsupported in FLRC
}

func (c *FlrcConfig) validate() error {
	if c.PayloadLength < 6 {
		return fmt.Errorf("sx1280: FLRC payload length must be 6..127")
	}
	return nil
}

// BleConfig configures the BLE-advertising-compatible modem. The bitrate is fixed by
// the BLE PHY at 1Mb/s over 1.2MHz bandwidth.
type BleConfig struct {
	ModIndex        byte // as GfskConfig.ModIndex; BLE wants 0.5
	Shaping         byte // BT_* code
	ConnectionState byte // BLE_PAYLOAD_* code
	CrcField        byte // BLE_CRC_* code
	TestPayload     byte // BLE_TEST_* pattern for test packets
	NoWhitening     bool
}

// BLE packet engine codes.
const (
	BLE_PAYLOAD_MAX_31  = 0x00 // advertiser, max 31 payload bytes
	BLE_PAYLOAD_MAX_37  = 0x20
	BLE_PAYLOAD_TEST    = 0x40
	BLE_PAYLOAD_MAX_255 = 0x80

	BLE_CRC_OFF = 0x00
	BLE_CRC_3B  = 0x10

	BLE_TEST_PRBS9   = 0x00
	BLE_TEST_EYELONG = 0x04
	BLE_TEST_PRBS15  = 0x0C
	BLE_TEST_ALL_1   = 0x10
	BLE_TEST_ALL_0   = 0x14
)

func (c *BleConfig) PacketType() PacketType { return PacketBle }

func (c *BleConfig) modParams() [3]byte {
	return [3]byte{GFSK_BR_1_000_BW_1_2, c.ModIndex, c.Shaping}
}

func (c *BleConfig) pktParams() [7]byte {
	wh := byte(0x00)
	if c.NoWhitening {
		wh = 0x08
	}
	return [7]byte{c.ConnectionState, c.CrcField, c.TestPayload, wh, 0, 0, 0}
}

func (c *BleConfig) validate() error {
	if c.ModIndex > 15 {
		return fmt.Errorf("sx1280: BLE modulation index code %d out of range 0..15", c.ModIndex)
	}
	return nil
}

// Configure applies a modulation configuration as one fixed, ordered sequence:
// standby, packet type, modulation params, packet params, buffer base addresses,
// frequency and TX power, and finally the DIO IRQ routing when an interrupt pin is in
// use. Any step failing aborts the sequence right there: the chip keeps whatever the
// last successful step produced, nothing is retried, and the radio refuses TX/RX and
// ranging commands until a Configure call runs to completion. Changing the packet type
// also switches the packet-status decode variant.
func (r *Radio) Configure(m Modulation) error {
	if err := m.validate(); err != nil {
		return err
	}
	// keep a private copy, payload-length updates must not touch the caller's struct
	switch c := m.(type) {
	case *LoRaConfig:
		cc := *c
		m = &cc
	case *RangingConfig:
		cc := *c
		m = &cc
	case *GfskConfig:
		cc := *c
		m = &cc
	case *FlrcConfig:
		cc := *c
		m = &cc
	case *BleConfig:
		cc := *c
		m = &cc
	}

	r.configured = false
	if _, err := r.execCommand(CmdSetStandby, []byte{STDBY_RC}); err != nil {
		return fmt.Errorf("sx1280: configure standby: %w", err)
	}
	if _, err := r.execCommand(CmdSetPacketType, []byte{byte(m.PacketType())}); err != nil {
		return fmt.Errorf("sx1280: configure packet type: %w", err)
	}
	// the decode dispatch follows the chip's packet type from here on
	r.packetType = m.PacketType()
	mp := m.modParams()
	if _, err := r.execCommand(CmdSetModulationParams, mp[:]); err != nil {
		return fmt.Errorf("sx1280: configure modulation params: %w", err)
	}
	pp := m.pktParams()
	if _, err := r.execCommand(CmdSetPacketParams, pp[:]); err != nil {
		return fmt.Errorf("sx1280: configure packet params: %w", err)
	}
	if _, err := r.execCommand(CmdSetBufferBaseAddress, []byte{0x00, 0x00}); err != nil {
		return fmt.Errorf("sx1280: configure buffer base: %w", err)
	}
	if err := r.setFrequency(r.freq); err != nil {
		return fmt.Errorf("sx1280: configure frequency: %w", err)
	}
	if err := r.setTxPower(r.power); err != nil {
		return fmt.Errorf("sx1280: configure tx power: %w", err)
	}
	if r.intrPin != nil {
		// route every armed IRQ to DIO1, the pin wired up as the interrupt line
		if err := r.setDioIrqParams(IrqNone, IrqNone); err != nil {
			return fmt.Errorf("sx1280: configure irq routing: %w", err)
		}
	}

	if rc, ok := m.(*RangingConfig); ok {
		if err := r.configureRanging(rc); err != nil {
			return err
		}
	} else {
		r.rng = rangingIdle
	}

	r.modCfg = m
	r.configured = true
	r.log("configured %v", m.PacketType())
	return nil
}

// setFrequency programs the RF center frequency. Any scale is accepted the same way the
// other drivers in this collection do it: the value is multiplied by 10 until it is a
// plausible 2.4GHz channel in Hz.
func (r *Radio) setFrequency(freq uint32) error {
	for freq > 0 && freq < 1000000000 {
		freq *= 10
	}
	steps := uint32((uint64(freq) << freqStepShift) / freqStepNum)
	_, err := r.execCommand(CmdSetRfFrequency,
		[]byte{byte(steps >> 16), byte(steps >> 8), byte(steps)})
	if err == nil {
		r.freq = freq
	}
	return err
}

// setTxPower programs the PA for the given output power in dBm (-18..13). The wire
// value is offset by 18.
func (r *Radio) setTxPower(dbm int8) error {
	if dbm < -18 {
		dbm = -18
	} else if dbm > 13 {
		dbm = 13
	}
	_, err := r.execCommand(CmdSetTxParams, []byte{byte(dbm + 18), RAMP_10_US})
	if err == nil {
		r.power = dbm
	}
	return err
}

// setDioIrqParams arms irq in the chip's IRQ enable mask and routes dio1 to the DIO1
// pin. DIO2/DIO3 are not wired up on the supported modules.
func (r *Radio) setDioIrqParams(irq, dio1 IrqStatus) error {
	p := make([]byte, 0, 8)
	p = append(p, irq.bytes()...)
	p = append(p, dio1.bytes()...)
	p = append(p, 0, 0, 0, 0)
	_, err := r.execCommand(CmdSetDioIrqParams, p)
	return err
}
