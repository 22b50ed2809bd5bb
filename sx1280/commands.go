// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import "fmt"

// Opcode is the one-byte command selector of the SX1280 command interface.
type Opcode byte

const (
	CmdGetStatus            Opcode = 0xC0
	CmdWriteRegister        Opcode = 0x18
	CmdReadRegister         Opcode = 0x19
	CmdWriteBuffer          Opcode = 0x1A
	CmdReadBuffer           Opcode = 0x1B
	CmdSetSleep             Opcode = 0x84
	CmdSetStandby           Opcode = 0x80
	CmdSetFs                Opcode = 0xC1
	CmdSetTx                Opcode = 0x83
	CmdSetRx                Opcode = 0x82
	CmdSetRxDutyCycle       Opcode = 0x94
	CmdSetCad               Opcode = 0xC5
	CmdSetTxContinuousWave  Opcode = 0xD1
	CmdSetTxContinuousPre   Opcode = 0xD2
	CmdSetPacketType        Opcode = 0x8A
	CmdGetPacketType        Opcode = 0x03
	CmdSetRfFrequency       Opcode = 0x86
	CmdSetTxParams          Opcode = 0x8E
	CmdSetCadParams         Opcode = 0x88
	CmdSetBufferBaseAddress Opcode = 0x8F
	CmdSetModulationParams  Opcode = 0x8B
	CmdSetPacketParams      Opcode = 0x8C
	CmdGetRxBufferStatus    Opcode = 0x17
	CmdGetPacketStatus      Opcode = 0x1D
	CmdGetRssiInst          Opcode = 0x1F
	CmdSetDioIrqParams      Opcode = 0x8D
	CmdGetIrqStatus         Opcode = 0x15
	CmdClearIrqStatus       Opcode = 0x97
	CmdCalibrate            Opcode = 0x89
	CmdSetRegulatorMode     Opcode = 0x96
	CmdSetSaveContext       Opcode = 0xD5
	CmdSetAutoTx            Opcode = 0x98
	CmdSetAutoFs            Opcode = 0x9E
	CmdSetLongPreamble      Opcode = 0x9B
	CmdSetUartSpeed         Opcode = 0x9D
	CmdSetRangingRole       Opcode = 0xA3
)

// cmdInfo describes the fixed wire layout of one opcode. Param is the exact number of
// parameter bytes the command takes, resp the exact number of response bytes it returns.
// A value of -1 means variable: the length is supplied by the caller per invocation
// (register and buffer access commands). Read commands clock out one NOP byte between the
// parameters and the response.
type cmdInfo struct {
	name  string
	param int
	resp  int
	read  bool
}

var cmdTable = map[Opcode]cmdInfo{
	CmdGetStatus:            {"GetStatus", 0, 0, true},
	CmdWriteRegister:        {"WriteRegister", -1, 0, false}, // addr16 + data
	CmdReadRegister:         {"ReadRegister", 2, -1, true},   // addr16 -> data
	CmdWriteBuffer:          {"WriteBuffer", -1, 0, false},   // offset + data
	CmdReadBuffer:           {"ReadBuffer", 1, -1, true},     // offset -> data
	CmdSetSleep:             {"SetSleep", 1, 0, false},
	CmdSetStandby:           {"SetStandby", 1, 0, false},
	CmdSetFs:                {"SetFs", 0, 0, false},
	CmdSetTx:                {"SetTx", 3, 0, false}, // periodBase + count16
	CmdSetRx:                {"SetRx", 3, 0, false}, // periodBase + count16
	CmdSetRxDutyCycle:       {"SetRxDutyCycle", 5, 0, false},
	CmdSetCad:               {"SetCad", 0, 0, false},
	CmdSetTxContinuousWave:  {"SetTxContinuousWave", 0, 0, false},
	CmdSetTxContinuousPre:   {"SetTxContinuousPreamble", 0, 0, false},
	CmdSetPacketType:        {"SetPacketType", 1, 0, false},
	CmdGetPacketType:        {"GetPacketType", 0, 1, true},
	CmdSetRfFrequency:       {"SetRfFrequency", 3, 0, false}, // 24-bit PLL steps, big-endian
	CmdSetTxParams:          {"SetTxParams", 2, 0, false},    // power + ramp time
	CmdSetCadParams:         {"SetCadParams", 1, 0, false},
	CmdSetBufferBaseAddress: {"SetBufferBaseAddress", 2, 0, false},
	CmdSetModulationParams:  {"SetModulationParams", 3, 0, false},
	CmdSetPacketParams:      {"SetPacketParams", 7, 0, false},
	CmdGetRxBufferStatus:    {"GetRxBufferStatus", 0, 2, true},
	CmdGetPacketStatus:      {"GetPacketStatus", 0, 5, true},
	CmdGetRssiInst:          {"GetRssiInst", 0, 1, true},
	CmdSetDioIrqParams:      {"SetDioIrqParams", 8, 0, false}, // irq mask + dio1..3 masks
	CmdGetIrqStatus:         {"GetIrqStatus", 0, 2, true},
	CmdClearIrqStatus:       {"ClearIrqStatus", 2, 0, false},
	CmdCalibrate:            {"Calibrate", 1, 0, false},
	CmdSetRegulatorMode:     {"SetRegulatorMode", 1, 0, false},
	CmdSetSaveContext:       {"SetSaveContext", 0, 0, false},
	CmdSetAutoTx:            {"SetAutoTx", 2, 0, false},
	CmdSetAutoFs:            {"SetAutoFs", 1, 0, false},
	CmdSetLongPreamble:      {"SetLongPreamble", 1, 0, false},
	CmdSetUartSpeed:         {"SetUartSpeed", 1, 0, false},
	CmdSetRangingRole:       {"SetRangingRole", 1, 0, false},
}

// String returns the command mnemonic, or the raw opcode for unknown commands.
func (o Opcode) String() string {
	if ci, ok := cmdTable[o]; ok {
		return ci.name
	}
	return fmt.Sprintf("Opcode(%#02x)", byte(o))
}

// CmdStatus is the command status reported in bits 7:5 of every response's status byte.
type CmdStatus byte

const (
	StatusReserved  CmdStatus = 0 // value unused by the chip
	StatusOk        CmdStatus = 1
	StatusDataAvail CmdStatus = 2
	StatusTimeout   CmdStatus = 3
	StatusCmdError  CmdStatus = 4 // command processing error
	StatusFailure   CmdStatus = 5 // command could not be executed
	StatusTxDone    CmdStatus = 6
	StatusReserved7 CmdStatus = 7
)

func (s CmdStatus) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusDataAvail:
		return "data available"
	case StatusTimeout:
		return "timeout"
	case StatusCmdError:
		return "processing error"
	case StatusFailure:
		return "failure"
	case StatusTxDone:
		return "tx done"
	}
	return fmt.Sprintf("CmdStatus(%d)", byte(s))
}

// Status is the status byte the chip mirrors back while a command header is clocked in.
// Bits 7:5 hold the command status, bits 4:2 the chip operating mode, bits 1:0 are
// reserved and read as zero.
type Status byte

func (s Status) Cmd() CmdStatus { return CmdStatus(s>>5) & 0x7 }
func (s Status) Mode() ChipMode { return decodeChipMode(byte(s>>2) & 0x7) }
func (s Status) reserved() byte { return byte(s) & 0x3 }

func (s Status) String() string {
	return fmt.Sprintf("%v/%v", s.Cmd(), s.Mode())
}

// Response is a decoded command response: the status byte plus any payload bytes.
type Response struct {
	Status  Status
	Payload []byte
}

// encodeCmd builds the outbound SPI frame for a command: the opcode, the parameter
// bytes, and for read commands a NOP byte followed by zero padding that clocks the
// response out of the chip. The parameter count is validated against the opcode's
// fixed layout. respLen is only consulted for the variable-length read commands.
func encodeCmd(op Opcode, params []byte, respLen int) ([]byte, error) {
	ci, ok := cmdTable[op]
	if !ok {
		return nil, fmt.Errorf("%w: unknown opcode %#02x", ErrInvalidParameterLength, byte(op))
	}
	if ci.param >= 0 && len(params) != ci.param {
		return nil, fmt.Errorf("%w: %s takes %d parameter bytes, got %d",
			ErrInvalidParameterLength, ci.name, ci.param, len(params))
	}
	if ci.param < 0 && len(params) < minVarParams(op) {
		return nil, fmt.Errorf("%w: %s takes at least %d parameter bytes, got %d",
			ErrInvalidParameterLength, ci.name, minVarParams(op), len(params))
	}
	n := ci.resp
	if n < 0 {
		n = respLen
	}
	frame := make([]byte, 0, 1+len(params)+1+n)
	frame = append(frame, byte(op))
	frame = append(frame, params...)
	if ci.read {
		frame = append(frame, 0) // NOP, clocks the status out before the response
		frame = append(frame, make([]byte, n)...)
	}
	return frame, nil
}

// minVarParams returns the minimum parameter count for the variable-length commands:
// WriteRegister needs a 16-bit address plus at least one data byte, WriteBuffer an
// offset plus at least one data byte.
func minVarParams(op Opcode) int {
	if op == CmdWriteRegister {
		return 3
	}
	return 2
}

// decodeResponse validates and parses the inbound frame of a command exchange. The
// status byte is the one mirrored back during the last header byte; for read commands
// the payload follows it. In strict mode non-zero reserved status bits fail with
// ErrMalformedResponse; in lenient mode they are logged through warn and ignored.
func decodeResponse(op Opcode, out, in []byte, respLen int, strict bool, warn LogPrintf) (Response, error) {
	ci, ok := cmdTable[op]
	if !ok {
		return Response{}, fmt.Errorf("%w: unknown opcode %#02x", ErrMalformedResponse, byte(op))
	}
	if len(in) != len(out) {
		return Response{}, fmt.Errorf("%w: %s response is %d bytes, expected %d",
			ErrMalformedResponse, ci.name, len(in), len(out))
	}
	n := ci.resp
	if n < 0 {
		n = respLen
	}
	hdr := len(in) - n
	if !ci.read {
		hdr = len(in)
	}
	if hdr < 1 || hdr > len(in) {
		return Response{}, fmt.Errorf("%w: %s response too short", ErrMalformedResponse, ci.name)
	}
	st := Status(in[hdr-1])
	if st.reserved() != 0 {
		if strict {
			return Response{}, fmt.Errorf("%w: %s status %#02x has reserved bits set",
				ErrMalformedResponse, ci.name, byte(st))
		}
		if warn != nil {
			warn("%s status %#02x has reserved bits set", ci.name, byte(st))
		}
		st &^= 0x3
	}
	r := Response{Status: st}
	if ci.read && n > 0 {
		r.Payload = in[hdr:]
	}
	return r, nil
}
