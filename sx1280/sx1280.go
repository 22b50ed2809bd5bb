// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The sx1280 package interfaces with a Semtech SX1280 2.4GHz radio connected to an SPI bus.
//
// The SX1280 is a command-driven chip: instead of a flat register file the host issues
// one-byte opcodes with fixed parameter layouts and the chip mirrors a status byte back
// on MISO while the command header is clocked in. This driver builds everything on that
// command layer: a table-driven codec validates parameter counts before anything touches
// the bus, every decoded status byte refreshes the driver's view of the chip's operating
// mode, and a legality matrix refuses commands the chip would silently ignore in its
// current mode.
//
// The chip supports four distinct modems (LoRa, GFSK, FLRC and BLE) plus a LoRa-based
// two-way ranging engine that measures the distance between two radios from the round
// trip time of a request/response exchange. Configuration is applied as one fixed
// sequence via Configure with a per-modem config variant; ranging runs through
// StartRanging/WaitRanging/RangingResult.
//
// The radio's BUSY line must be respected between commands; wire it to a GPIO and pass
// it to New, or pass nil and accept a fixed settling delay. DIO1 is the interrupt line:
// with it WaitIrq blocks on edges, without it WaitIrq polls. A mutex serializes the
// individual command exchanges, but multi-command operations such as Configure and
// Transmit are not atomic: callers running the radio from several goroutines must
// provide their own serialization.
package sx1280

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tve/radios"
)

// LogPrintf is the function signature used for logging, a-la log.Printf.
type LogPrintf func(format string, v ...interface{})

// Errors returned by the driver. Command and decode failures wrap one of these so
// callers can test with errors.Is.
var (
	ErrInvalidParameterLength = errors.New("sx1280: invalid parameter length")
	ErrMalformedResponse      = errors.New("sx1280: malformed response")
	ErrUnsupportedPacketType  = errors.New("sx1280: unsupported packet type")
	ErrInvalidStateTransition = errors.New("sx1280: invalid state transition")
	ErrBusyTimeout            = errors.New("sx1280: busy line stuck high")
	ErrNotConfigured          = errors.New("sx1280: radio not configured")
	ErrCommandFailed          = errors.New("sx1280: command failed")
	ErrCrc                    = errors.New("sx1280: CRC error")
	ErrTxRxTimeout            = errors.New("sx1280: tx/rx timeout")
	ErrRangingTimeout         = errors.New("sx1280: ranging timeout")
	ErrRangingDiscarded       = errors.New("sx1280: ranging request discarded")
	ErrRangingAmbiguous       = errors.New("sx1280: ranging result ambiguous")
)

// Radio represents a Semtech SX1280 radio.
type Radio struct {
	// configuration
	spi     radios.SPI  // SPI device to access the radio
	busyPin radios.GPIO // busy line, high while the chip cannot take a command
	intrPin radios.GPIO // DIO1 interrupt pin
	freq    uint32      // center frequency in Hz
	power   int8        // TX output power in dBm
	strict  bool        // fail on reserved status bits instead of warning
	compat  bool        // log and permit most legality violations
	busyTO  time.Duration
	// state
	sync.Mutex            // guard concurrent command exchanges
	mode       ChipMode   // cached operating mode, from decoded status bytes only
	packetType PacketType // active packet type, drives the status decode dispatch
	modCfg     Modulation // the last configuration applied by Configure
	configured bool       // a Configure sequence ran to completion
	rng        rangingState
	rngRole    RangingRole
	rngAddrSet bool
	log        LogPrintf
}

// RadioOpts contains options used when initializing a Radio.
type RadioOpts struct {
	Freq        uint32        // frequency in Hz, Khz, or Mhz
	Power       int8          // TX output power in dBm, -18..13
	Lenient     bool          // warn about reserved status bits instead of failing
	Compat      bool          // permit (and log) out-of-mode commands, except into TX/RX
	Reset       radios.GPIO   // optional reset pin, pulsed low during init
	BusyTimeout time.Duration // max wait for the busy line, default 20ms
	Logger      LogPrintf     // function to use for logging
}

// New initializes an SX1280 Radio given an SPI device, the busy line, and the DIO1
// interrupt pin, and leaves the radio in standby. busy and intr may be nil: without
// busy every command is preceded by a fixed settling delay, without intr WaitIrq polls.
//
// The radio starts out unconfigured: TX, RX and ranging commands are refused until
// Configure has applied a modulation config.
func New(dev radios.SPI, busy, intr radios.GPIO, opts RadioOpts) (*Radio, error) {
	r := &Radio{
		spi: dev, busyPin: busy, intrPin: intr,
		freq: opts.Freq, power: opts.Power,
		strict:     !opts.Lenient,
		compat:     opts.Compat,
		busyTO:     opts.BusyTimeout,
		mode:       ModeUnknown,
		packetType: PacketNone,
		log:        func(format string, v ...interface{}) {},
	}
	if opts.Logger != nil {
		r.log = func(format string, v ...interface{}) {
			opts.Logger("sx1280: "+format, v...)
		}
	}
	if r.busyTO == 0 {
		r.busyTO = 20 * time.Millisecond
	}

	// Set SPI parameters.
	if err := dev.Speed(10 * 1000 * 1000); err != nil {
		return nil, fmt.Errorf("sx1280: cannot set speed, %v", err)
	}
	if err := dev.Configure(radios.SPIMode0, 8); err != nil {
		return nil, fmt.Errorf("sx1280: cannot set mode, %v", err)
	}
	if busy != nil {
		if err := busy.In(radios.GpioNoEdge); err != nil {
			return nil, fmt.Errorf("sx1280: error initializing busy pin: %s", err)
		}
	}
	if intr != nil {
		if err := intr.In(radios.GpioRisingEdge); err != nil {
			return nil, fmt.Errorf("sx1280: error initializing interrupt pin: %s", err)
		}
	}

	if opts.Reset != nil {
		opts.Reset.Out(radios.GpioLow)
		time.Sleep(time.Millisecond)
		opts.Reset.Out(radios.GpioHigh)
		time.Sleep(5 * time.Millisecond)
	}

	// Try to synchronize communication with the chip: GetStatus is legal in every
	// mode, so a couple of probes pull the mode cache out of unknown.
	var st Status
	var err error
	for n := 10; n > 0; n-- {
		if st, err = r.Status(); err == nil && st.Mode() != ModeUnknown {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("sx1280: cannot sync with chip: %s", err)
	}

	if err := r.Standby(STDBY_RC); err != nil {
		return nil, err
	}

	// Detect chip version.
	fw, err := r.readRegs(REG_FIRMWARE_VERSION, 2)
	if err != nil {
		return nil, fmt.Errorf("sx1280: cannot read firmware version: %s", err)
	}
	r.log("SX1280 firmware %#04x", uint16(fw[0])<<8|uint16(fw[1]))

	if _, err := r.execCommand(CmdSetRegulatorMode, []byte{REGULATOR_DCDC}); err != nil {
		return nil, err
	}
	return r, nil
}

// Mode returns the driver's cached chip operating mode.
func (r *Radio) Mode() ChipMode {
	r.Lock()
	defer r.Unlock()
	return r.mode
}

// Status issues GetStatus and returns the decoded status byte.
func (r *Radio) Status() (Status, error) {
	resp, err := r.execCommand(CmdGetStatus, nil)
	return resp.Status, err
}

// Standby places the radio in standby, on the RC or crystal oscillator.
func (r *Radio) Standby(cfg byte) error {
	_, err := r.execCommand(CmdSetStandby, []byte{cfg})
	return err
}

// Sleep puts the radio into its lowest-power mode. The retain bits select which RAMs
// stay powered. Sleeping an already sleeping radio is a no-op for the chip and is
// permitted.
func (r *Radio) Sleep(retain byte) error {
	_, err := r.execCommand(CmdSetSleep, []byte{retain})
	return err
}

// SetFs places the radio in frequency-synthesis mode, for fast TX/RX turnaround.
func (r *Radio) SetFs() error {
	_, err := r.execCommand(CmdSetFs, nil)
	return err
}

// Cad starts a LoRa channel-activity-detection cycle; completion is signaled through
// the CadDone/CadDetected IRQs.
func (r *Radio) Cad() error {
	if err := r.requireConfigured(); err != nil {
		return err
	}
	_, err := r.execCommand(CmdSetCad, nil)
	return err
}

// SetCadParams sets how many symbols a channel-activity-detection cycle samples, one
// of the CAD_ON_*_SYMB codes.
func (r *Radio) SetCadParams(symbols byte) error {
	_, err := r.execCommand(CmdSetCadParams, []byte{symbols})
	return err
}

// SetAutoFs makes the chip fall back to FS instead of standby after TX and RX, which
// shortens turnaround at the cost of the synthesizer's idle current.
func (r *Radio) SetAutoFs(enable bool) error {
	v := byte(0)
	if enable {
		v = 1
	}
	_, err := r.execCommand(CmdSetAutoFs, []byte{v})
	return err
}

// Calibrate runs the selected calibration blocks, see the CALIB bits in the datasheet.
func (r *Radio) Calibrate(blocks byte) error {
	_, err := r.execCommand(CmdCalibrate, []byte{blocks})
	return err
}

// RssiInst returns the instantaneous RSSI in dBm, useful while receiving.
func (r *Radio) RssiInst() (float64, error) {
	resp, err := r.execCommand(CmdGetRssiInst, nil)
	if err != nil {
		return 0, err
	}
	return -float64(resp.Payload[0]) / 2, nil
}

// PacketType queries the chip for its active packet type.
func (r *Radio) PacketType() (PacketType, error) {
	resp, err := r.execCommand(CmdGetPacketType, nil)
	if err != nil {
		return PacketNone, err
	}
	return PacketType(resp.Payload[0]), nil
}

// Transmit writes payload into the TX buffer and transmits it, blocking until the
// chip signals TxDone. timeout bounds the transmission in the chip's own timer; zero
// disables the hardware timeout and leaves cancellation to ctx.
func (r *Radio) Transmit(ctx context.Context, payload []byte, timeout time.Duration) error {
	if err := r.requireConfigured(); err != nil {
		return err
	}
	if len(payload) == 0 || len(payload) > 255 {
		return fmt.Errorf("%w: payload of %d bytes", ErrInvalidParameterLength, len(payload))
	}
	if err := r.setPayloadLength(byte(len(payload))); err != nil {
		return err
	}
	if err := r.writeBuffer(0, payload); err != nil {
		return err
	}
	if err := r.ClearIrq(IrqTxDone | IrqRxTxTimeout); err != nil {
		return err
	}
	if err := r.setDioIrqParams(IrqTxDone|IrqRxTxTimeout, IrqTxDone|IrqRxTxTimeout); err != nil {
		return err
	}
	if _, err := r.execCommand(CmdSetTx, txTimeout(timeout)); err != nil {
		return err
	}
	irq, err := r.WaitIrq(ctx, IrqTxDone|IrqRxTxTimeout)
	if err != nil {
		return err
	}
	if err := r.ClearIrq(IrqTxDone | IrqRxTxTimeout); err != nil {
		return err
	}
	if irq&IrqRxTxTimeout != 0 {
		return ErrTxRxTimeout
	}
	return nil
}

// StartReceive arms the RX IRQs and places the radio in continuous receive. Packets
// are picked up with WaitIrq and ReadPacket.
func (r *Radio) StartReceive() error {
	if err := r.requireConfigured(); err != nil {
		return err
	}
	mask := IrqRxDone | IrqCrcError | IrqRxTxTimeout
	if err := r.ClearIrq(mask); err != nil {
		return err
	}
	if err := r.setDioIrqParams(mask, mask); err != nil {
		return err
	}
	_, err := r.execCommand(CmdSetRx, []byte{PERIOD_1_MS, 0xFF, 0xFF})
	return err
}

// ReadPacket pulls the most recently received packet out of the chip: buffer status,
// payload, and the per-packet status decoded for the active modulation. The RX IRQs
// are cleared. A packet that failed its CRC is still returned, with ErrCrc.
func (r *Radio) ReadPacket() ([]byte, *PacketStatus, error) {
	if err := r.requireConfigured(); err != nil {
		return nil, nil, err
	}
	irq, err := r.PollIrq()
	if err != nil {
		return nil, nil, err
	}
	resp, err := r.execCommand(CmdGetRxBufferStatus, nil)
	if err != nil {
		return nil, nil, err
	}
	bs, err := decodeRxBufferStatus(resp.Payload)
	if err != nil {
		return nil, nil, err
	}
	payload, err := r.readBuffer(bs.Offset, int(bs.Length))
	if err != nil {
		return nil, nil, err
	}
	resp, err = r.execCommand(CmdGetPacketStatus, nil)
	if err != nil {
		return nil, nil, err
	}
	ps, err := decodePacketStatus(resp.Payload, r.packetType)
	if err != nil {
		return nil, nil, err
	}
	if err := r.ClearIrq(IrqRxDone | IrqCrcError); err != nil {
		return nil, nil, err
	}
	if irq&IrqCrcError != 0 || ps.CrcError {
		ps.CrcError = true
		return payload, ps, ErrCrc
	}
	return payload, ps, nil
}

// PollIrq reads the 16-bit IRQ register without clearing anything.
func (r *Radio) PollIrq() (IrqStatus, error) {
	resp, err := r.execCommand(CmdGetIrqStatus, nil)
	if err != nil {
		return 0, err
	}
	return decodeIrqStatus(resp.Payload)
}

// ClearIrq acknowledges the given IRQ flags. The register is write-1-to-clear, so
// flags outside mask are untouched.
func (r *Radio) ClearIrq(mask IrqStatus) error {
	_, err := r.execCommand(CmdClearIrqStatus, mask.bytes())
	return err
}

// WaitIrq blocks until one of the flags in mask is raised or ctx is done. With an
// interrupt pin the wait rides on DIO1 edges; without one it polls. The flags are
// returned unacknowledged, clearing them is up to the caller.
func (r *Radio) WaitIrq(ctx context.Context, mask IrqStatus) (IrqStatus, error) {
	for {
		irq, err := r.PollIrq()
		if err != nil {
			return 0, err
		}
		if hit := irq & mask; hit != 0 {
			return hit, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if r.intrPin != nil {
			r.intrPin.WaitForEdge(100 * time.Millisecond)
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

// TransmitContinuousWave emits an unmodulated carrier at the configured frequency, for
// regulatory and antenna testing. Leave with Standby.
func (r *Radio) TransmitContinuousWave() error {
	if err := r.requireConfigured(); err != nil {
		return err
	}
	_, err := r.execCommand(CmdSetTxContinuousWave, nil)
	return err
}

// TransmitContinuousPreamble emits an endless preamble sequence. Leave with Standby.
func (r *Radio) TransmitContinuousPreamble() error {
	if err := r.requireConfigured(); err != nil {
		return err
	}
	_, err := r.execCommand(CmdSetTxContinuousPre, nil)
	return err
}

//===== command exchange

// execCommand runs one full command exchange: legality check, encode, busy wait, SPI
// transaction, decode, and mode-cache refresh. It is the single path every command
// takes; the legality check runs before any byte reaches the transport.
func (r *Radio) execCommand(op Opcode, params []byte) (Response, error) {
	return r.exec(op, params, 0)
}

// execRead is execCommand for the variable-length read commands, with the number of
// response bytes to clock out.
func (r *Radio) execRead(op Opcode, params []byte, respLen int) (Response, error) {
	return r.exec(op, params, respLen)
}

func (r *Radio) exec(op Opcode, params []byte, respLen int) (Response, error) {
	r.Lock()
	defer r.Unlock()

	if err := r.checkTransition(op); err != nil {
		return Response{}, err
	}
	out, err := encodeCmd(op, params, respLen)
	if err != nil {
		return Response{}, err
	}
	if err := r.waitBusy(); err != nil {
		return Response{}, err
	}
	in := make([]byte, len(out))
	if err := r.spi.Tx(out, in); err != nil {
		return Response{}, fmt.Errorf("sx1280: %v: %s", op, err)
	}
	resp, err := decodeResponse(op, out, in, respLen, r.strict, r.log)
	if err != nil {
		return Response{}, err
	}
	// the mode cache follows what the chip reports, not what the command asked for
	r.mode = resp.Status.Mode()
	switch resp.Status.Cmd() {
	case StatusCmdError, StatusFailure:
		return resp, fmt.Errorf("%w: %v: %v", ErrCommandFailed, op, resp.Status.Cmd())
	}
	return resp, nil
}

// waitBusy waits for the chip's busy line to drop. Commands issued while busy is high
// are ignored by the chip, so a stuck line is reported instead of silently proceeding.
func (r *Radio) waitBusy() error {
	if r.busyPin == nil {
		time.Sleep(100 * time.Microsecond)
		return nil
	}
	deadline := time.Now().Add(r.busyTO)
	for r.busyPin.Read() != radios.GpioLow {
		if time.Now().After(deadline) {
			return ErrBusyTimeout
		}
		time.Sleep(10 * time.Microsecond)
	}
	return nil
}

func (r *Radio) requireConfigured() error {
	if !r.configured {
		return ErrNotConfigured
	}
	return nil
}

// txTimeout converts a duration to the SetTx/SetRx period base and count. Zero
// disables the hardware timeout.
func txTimeout(d time.Duration) []byte {
	count := d.Milliseconds()
	if count > 0xFFFF {
		count = 0xFFFF
	}
	return []byte{PERIOD_1_MS, byte(count >> 8), byte(count)}
}

// setPayloadLength re-issues SetPacketParams with the payload length of the packet
// about to be transmitted, for the modems that carry the length in the packet params.
func (r *Radio) setPayloadLength(n byte) error {
	switch c := r.modCfg.(type) {
	case *LoRaConfig:
		c.PayloadLength = n
	case *RangingConfig:
		c.PayloadLength = n
	case *GfskConfig:
		c.PayloadLength = n
	case *FlrcConfig:
		c.PayloadLength = n
	default:
		return nil
	}
	pp := r.modCfg.pktParams()
	_, err := r.execCommand(CmdSetPacketParams, pp[:])
	return err
}

//===== register and buffer access

// writeRegs writes data to consecutive registers starting at addr.
func (r *Radio) writeRegs(addr uint16, data ...byte) error {
	p := make([]byte, 0, 2+len(data))
	p = append(p, byte(addr>>8), byte(addr))
	p = append(p, data...)
	_, err := r.execCommand(CmdWriteRegister, p)
	return err
}

// readRegs reads n consecutive registers starting at addr.
func (r *Radio) readRegs(addr uint16, n int) ([]byte, error) {
	resp, err := r.execRead(CmdReadRegister, []byte{byte(addr >> 8), byte(addr)}, n)
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// writeBuffer writes data into the chip's data RAM at the given offset.
func (r *Radio) writeBuffer(offset byte, data []byte) error {
	p := make([]byte, 0, 1+len(data))
	p = append(p, offset)
	p = append(p, data...)
	_, err := r.execCommand(CmdWriteBuffer, p)
	return err
}

// readBuffer reads n bytes from the chip's data RAM at the given offset.
func (r *Radio) readBuffer(offset byte, n int) ([]byte, error) {
	resp, err := r.execRead(CmdReadBuffer, []byte{offset}, n)
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}
