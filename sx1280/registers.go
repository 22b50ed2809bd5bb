// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

// Register addresses. The SX1280 exposes these through the ReadRegister/WriteRegister
// commands using 16-bit big-endian addresses.
const (
	REG_FIRMWARE_VERSION   = 0x0153 // 16-bit firmware version, big-endian
	REG_RX_GAIN            = 0x0891
	REG_MANUAL_GAIN_CTRL   = 0x089F
	REG_MANUAL_GAIN_VALUE  = 0x089E
	REG_DEMOD_DETECTION    = 0x0895
	REG_LORA_PAYLOAD_LEN   = 0x0901
	REG_LORA_PACKET_PARAMS = 0x0903
	REG_RANGING_REQ_ADDR   = 0x0912 // master: address of the slave being ranged, 4 bytes
	REG_RANGING_DEV_ADDR   = 0x0916 // slave: own ranging address, 4 bytes
	REG_RANGING_FILTER_WS  = 0x091E
	REG_RANGING_RES_CLEAR  = 0x0923
	REG_RANGING_RES_CFG    = 0x0924 // result mux and freeze control
	REG_RANGING_DELAY_CAL  = 0x092C
	REG_RANGING_ID_CHECK   = 0x0931 // number of address bytes checked by the slave
	REG_FREQ_ERROR_MSB     = 0x0954 // 20-bit signed frequency error, big-endian
	REG_RANGING_RESULT     = 0x0961 // 24-bit ranging counter, big-endian
	REG_RANGING_RSSI       = 0x0964
	REG_RANGING_FREEZE     = 0x097F
	REG_LORA_SYNC_WORD     = 0x0944
	REG_CRC_SEED           = 0x09C8
	REG_CRC_POLY           = 0x09C6
	REG_WHITENING_SEED     = 0x09C5
	REG_SYNC_TOLERANCE     = 0x09CD
	REG_SYNC_ADDR1         = 0x09CE
	REG_SYNC_ADDR2         = 0x09D3
	REG_SYNC_ADDR3         = 0x09D8
	REG_BLE_ACCESS_ADDR    = 0x09CF
)

// Masks for the shared gain/ranging control registers.
const (
	MASK_RANGING_MUX_SEL   = 0xCF
	MASK_LNA_REGIME        = 0xC0
	MASK_MANUAL_GAIN_CTRL  = 0x80
	MASK_DEMOD_DETECTION   = 0xFE
	MASK_MANUAL_GAIN_VALUE = 0xF0
	MASK_FREQ_ERROR        = 0x0FFFFF
)

// SetStandby argument.
const (
	STDBY_RC   = 0x00 // 13MHz RC oscillator
	STDBY_XOSC = 0x01 // 52MHz crystal
)

// SetSleep argument bits.
const (
	SLEEP_RAM_RETAIN  = 0x01 // keep data RAM (rx/tx buffer) powered
	SLEEP_BUFF_RETAIN = 0x02 // keep instruction RAM powered
)

// SetRegulatorMode argument.
const (
	REGULATOR_LDO  = 0x00
	REGULATOR_DCDC = 0x01
)

// Power ramp times for SetTxParams.
const (
	RAMP_02_US = 0x00
	RAMP_04_US = 0x20
	RAMP_06_US = 0x40
	RAMP_08_US = 0x60
	RAMP_10_US = 0x80
	RAMP_12_US = 0xA0
	RAMP_16_US = 0xC0
	RAMP_20_US = 0xE0
)

// SetCadParams argument: symbols sampled per channel-activity-detection cycle.
const (
	CAD_ON_1_SYMB  = 0x00
	CAD_ON_2_SYMB  = 0x20
	CAD_ON_4_SYMB  = 0x40
	CAD_ON_8_SYMB  = 0x60
	CAD_ON_16_SYMB = 0x80
)

// Time base for the SetTx/SetRx/SetRxDutyCycle timeout counters.
const (
	PERIOD_15_US  = 0x00
	PERIOD_62_US  = 0x01
	PERIOD_1_MS   = 0x02
	PERIOD_4_MS   = 0x03
	RX_SINGLE     = 0x0000 // timeout count: single receive, no timeout
	RX_CONTINUOUS = 0xFFFF // timeout count: stay in RX after each packet
)

// The PLL step is 52MHz / 2^18, used to convert Hz to SetRfFrequency counts.
const freqStepNum = 52000000
const freqStepShift = 18
