// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import "fmt"

// ChipMode is the operating mode of the radio IC. The driver's cached mode starts out
// as ModeUnknown and is only ever updated from the chip-mode field of a successfully
// decoded response status byte, never from the mode a command was meant to produce.
// This way a command the chip silently ignored cannot poison the cache.
type ChipMode byte

const (
	ModeUnknown ChipMode = iota
	ModeSleep
	ModeStandbyRC
	ModeStandbyXOSC
	ModeFS
	ModeTx
	ModeRx
	ModeRxDutyCycle
	ModeCad
)

var modeNames = []string{
	"unknown", "sleep", "standby-rc", "standby-xosc", "fs", "tx", "rx", "rx-duty-cycle", "cad",
}

func (m ChipMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("ChipMode(%d)", byte(m))
}

// decodeChipMode maps the 3-bit mode field of a status byte to a ChipMode. The values
// follow the vendor status table; 0b000 and 0b111 are reserved and decode to unknown.
func decodeChipMode(bits byte) ChipMode {
	switch bits {
	case 0x1:
		return ModeSleep
	case 0x2:
		return ModeStandbyRC
	case 0x3:
		return ModeStandbyXOSC
	case 0x4:
		return ModeFS
	case 0x5:
		return ModeRx
	case 0x6:
		return ModeTx
	}
	return ModeUnknown
}

// modeMask is a set of ChipModes, one bit per mode.
type modeMask uint16

func maskOf(modes ...ChipMode) modeMask {
	var m modeMask
	for _, mode := range modes {
		m |= 1 << mode
	}
	return m
}

func (m modeMask) has(mode ChipMode) bool { return m&(1<<mode) != 0 }

var (
	anyMode    = maskOf(ModeUnknown, ModeSleep, ModeStandbyRC, ModeStandbyXOSC, ModeFS, ModeTx, ModeRx, ModeRxDutyCycle, ModeCad)
	standbyFs  = maskOf(ModeStandbyRC, ModeStandbyXOSC, ModeFS)
	notBusy    = maskOf(ModeSleep, ModeStandbyRC, ModeStandbyXOSC, ModeFS)
	queryModes = anyMode &^ maskOf(ModeSleep) // chip cannot answer while asleep
)

// cmdModes is the command legality matrix: the set of cached modes each opcode may be
// issued from. Commands absent from the table are refused outright. The matrix encodes
// the hardware's constraints: TX/RX/CAD can only be entered from a standby or FS mode
// (never straight out of sleep), configuration and buffer/register writes must not race
// an in-flight TX/RX exchange, and status queries work anywhere the chip is awake.
var cmdModes = map[Opcode]modeMask{
	// status and event queries, legal wherever the chip can respond; GetStatus also
	// serves as the recovery probe from the unknown state
	CmdGetStatus:         anyMode,
	CmdGetIrqStatus:      queryModes,
	CmdClearIrqStatus:    queryModes,
	CmdGetPacketType:     queryModes,
	CmdGetPacketStatus:   queryModes,
	CmdGetRxBufferStatus: queryModes,
	CmdGetRssiInst:       queryModes,

	// standby is the universal recovery command
	CmdSetStandby: anyMode,
	// sleep from any non-busy mode; sleep-to-sleep is an idempotent self-transition
	CmdSetSleep: notBusy,
	CmdSetFs:    standbyFs,

	// active modes only from standby or FS
	CmdSetTx:               standbyFs,
	CmdSetRx:               standbyFs,
	CmdSetRxDutyCycle:      standbyFs,
	CmdSetCad:              standbyFs,
	CmdSetTxContinuousWave: standbyFs,
	CmdSetTxContinuousPre:  standbyFs,

	// configuration, never while an exchange may be in flight
	CmdSetPacketType:        standbyFs,
	CmdSetRfFrequency:       standbyFs,
	CmdSetTxParams:          standbyFs,
	CmdSetCadParams:         standbyFs,
	CmdSetBufferBaseAddress: standbyFs,
	CmdSetModulationParams:  standbyFs,
	CmdSetPacketParams:      standbyFs,
	CmdSetDioIrqParams:      standbyFs,
	CmdCalibrate:            standbyFs,
	CmdSetRegulatorMode:     standbyFs,
	CmdSetSaveContext:       standbyFs,
	CmdSetAutoTx:            standbyFs,
	CmdSetAutoFs:            standbyFs,
	CmdSetLongPreamble:      standbyFs,
	CmdSetUartSpeed:         standbyFs,
	CmdSetRangingRole:       standbyFs,

	// register reads also serve the unknown-state identification probe; buffer reads
	// are explicitly allowed in RX so packets can be pulled in continuous receive
	CmdReadRegister:  standbyFs | maskOf(ModeUnknown, ModeRx, ModeRxDutyCycle, ModeCad),
	CmdReadBuffer:    standbyFs | maskOf(ModeRx, ModeRxDutyCycle),
	CmdWriteRegister: standbyFs,
	CmdWriteBuffer:   standbyFs,
}

// intoActive marks the transitions the compat option never waves through.
var intoActive = map[Opcode]bool{
	CmdSetTx:               true,
	CmdSetRx:               true,
	CmdSetRxDutyCycle:      true,
	CmdSetTxContinuousWave: true,
	CmdSetTxContinuousPre:  true,
}

// checkTransition verifies that op may be issued from the cached mode. It is called
// before any bytes are handed to the transport. With the compat option, violations are
// logged and permitted, except for transitions into TX/RX which always fail.
func (r *Radio) checkTransition(op Opcode) error {
	allowed, ok := cmdModes[op]
	if ok && allowed.has(r.mode) {
		return nil
	}
	if r.compat && ok && !intoActive[op] {
		r.log("compat: allowing %v from %v", op, r.mode)
		return nil
	}
	return fmt.Errorf("%w: %v from %v", ErrInvalidStateTransition, op, r.mode)
}
