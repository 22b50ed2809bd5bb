// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import (
	"context"
	"fmt"
)

// RangingRole selects which side of the two-way ranging exchange this radio plays.
type RangingRole byte

const (
	RangingSlave  RangingRole = 0x00 // answers ranging requests
	RangingMaster RangingRole = 0x01 // initiates the exchange and computes distance
)

func (r RangingRole) String() string {
	if r == RangingMaster {
		return "master"
	}
	return "slave"
}

// rangingState tracks the ranging engine through one exchange. A new exchange starts
// from roleSet again; re-arming after a timeout is the caller's decision.
type rangingState byte

const (
	rangingIdle rangingState = iota // no ranging configuration active
	rangingRoleSet
	rangingArmed
	rangingExchanging
	rangingComplete
	rangingTimedOut
	rangingDiscarded
)

var rangingStateNames = []string{
	"idle", "role-set", "armed", "exchanging", "complete", "timed-out", "discarded",
}

func (s rangingState) String() string { return rangingStateNames[s] }

// RangingResult is one completed distance measurement.
type RangingResult struct {
	Raw    int32   // sign-extended 24-bit counter, calibration already subtracted
	Meters float64 // calibrated distance
	FeiHz  float64 // frequency error measured during the exchange
	Rssi   float64 // RSSI of the exchange in dBm
}

// Ranging calibration offsets in raw counter units, indexed SF5..SF10, from the vendor
// calibration tables. These are partly empirical; treat oddities as vendor data.
var rangingCalib = map[byte][6]int32{
	BW_400:  {10299, 10271, 10244, 10242, 10230, 10246},
	BW_800:  {11486, 11474, 11453, 11426, 11417, 11401},
	BW_1600: {13308, 13493, 13528, 13515, 13430, 13376},
}

// Frequency-error gradient in meters per kHz of frequency offset, indexed SF5..SF10,
// also from the vendor calibration tables.
var rangingFgrad = map[byte][6]float64{
	BW_400:  {-0.148, -0.214, -0.419, -0.853, -1.686, -3.423},
	BW_800:  {-0.041, -0.811, -0.218, -0.429, -0.853, -1.737},
	BW_1600: {0.103, -0.041, -0.101, -0.211, -0.424, -0.870},
}

// rangingMaxCounts is the per-bandwidth unambiguous window of the ranging counter.
// Beyond it the counter has wrapped and the measurement is meaningless, so results
// outside the window are flagged instead of returned.
var rangingMaxCounts = map[byte]int32{
	BW_400:  0x90000,
	BW_800:  0x48000,
	BW_1600: 0x24000,
}

// metersPerCount converts raw ranging counter units to meters for a LoRa bandwidth.
func metersPerCount(bw byte) float64 {
	return 150.0 / (4.096 * loraBwKhz[bw])
}

// configureRanging finishes a ranging Configure: it programs the address-check length
// and resets the ranging engine. The role and address are set separately because the
// address register to use depends on the role.
func (r *Radio) configureRanging(rc *RangingConfig) error {
	if _, ok := rangingCalib[rc.Bandwidth]; !ok {
		return fmt.Errorf("sx1280: no ranging calibration for bandwidth code %#02x",
			rc.Bandwidth)
	}
	if err := r.writeRegs(REG_RANGING_ID_CHECK, rc.CheckBits); err != nil {
		return fmt.Errorf("sx1280: configure ranging id check: %w", err)
	}
	r.rng = rangingIdle
	r.rngAddrSet = false
	return nil
}

// SetRangingRole programs which side of the exchange this radio plays. It must be
// called after a ranging Configure and before SetRangingAddress and StartRanging.
func (r *Radio) SetRangingRole(role RangingRole) error {
	if err := r.requireRanging(); err != nil {
		return err
	}
	if _, err := r.execCommand(CmdSetRangingRole, []byte{byte(role)}); err != nil {
		return err
	}
	r.rngRole = role
	r.rng = rangingRoleSet
	r.rngAddrSet = false
	return nil
}

// SetRangingAddress programs the ranging address: on the master the address of the
// slave to be ranged, on the slave its own address. Requires the role to be set.
func (r *Radio) SetRangingAddress(addr uint32) error {
	if err := r.requireRanging(); err != nil {
		return err
	}
	if r.rng < rangingRoleSet {
		return fmt.Errorf("%w: ranging address before role", ErrInvalidStateTransition)
	}
	reg := uint16(REG_RANGING_DEV_ADDR)
	if r.rngRole == RangingMaster {
		reg = REG_RANGING_REQ_ADDR
	}
	b := []byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}
	if err := r.writeRegs(reg, b...); err != nil {
		return err
	}
	r.rngAddrSet = true
	return nil
}

// StartRanging performs the full arm sequence for the given role: role, address from
// the active RangingConfig, IRQ mask, and the TX (master) or RX (slave) command that
// starts the exchange. Callers wanting a different address should use SetRangingRole
// and SetRangingAddress directly and then call Arm.
func (r *Radio) StartRanging(role RangingRole) error {
	if err := r.requireRanging(); err != nil {
		return err
	}
	rc := r.modCfg.(*RangingConfig)
	if err := r.SetRangingRole(role); err != nil {
		return err
	}
	if err := r.SetRangingAddress(rc.Address); err != nil {
		return err
	}
	return r.Arm()
}

// Arm clears stale ranging IRQs, arms the role's completion mask, and issues the
// SetTx/SetRx that triggers the exchange.
func (r *Radio) Arm() error {
	if err := r.requireRanging(); err != nil {
		return err
	}
	if r.rng < rangingRoleSet || !r.rngAddrSet {
		return fmt.Errorf("%w: ranging start before role and address", ErrInvalidStateTransition)
	}
	mask := r.rangingIrqMask()
	if err := r.ClearIrq(mask | IrqRxTxTimeout); err != nil {
		return err
	}
	if err := r.setDioIrqParams(mask, mask); err != nil {
		return err
	}
	var err error
	if r.rngRole == RangingMaster {
		_, err = r.execCommand(CmdSetTx, []byte{PERIOD_1_MS, 0x00, 0x00})
	} else {
		_, err = r.execCommand(CmdSetRx, []byte{PERIOD_1_MS, 0xFF, 0xFF})
	}
	if err != nil {
		return err
	}
	r.rng = rangingArmed
	return nil
}

func (r *Radio) rangingIrqMask() IrqStatus {
	if r.rngRole == RangingMaster {
		return IrqMasterResultValid | IrqMasterTimeout
	}
	return IrqSlaveResponseDone | IrqSlaveRequestDiscarded | IrqSlaveRequestValid
}

// WaitRanging blocks until the armed exchange reaches a terminal state or ctx is
// cancelled. Timeouts and discarded requests are reported as errors and the engine is
// left in the corresponding state; it is up to the caller to re-arm.
func (r *Radio) WaitRanging(ctx context.Context) error {
	if r.rng != rangingArmed && r.rng != rangingExchanging {
		return fmt.Errorf("%w: ranging wait while %v", ErrInvalidStateTransition, r.rng)
	}
	mask := r.rangingIrqMask()
	for {
		irq, err := r.WaitIrq(ctx, mask|IrqRxTxTimeout)
		if err != nil {
			return err
		}
		if irq&IrqSlaveRequestValid != 0 {
			r.rng = rangingExchanging
			if err := r.ClearIrq(IrqSlaveRequestValid); err != nil {
				return err
			}
			if irq&^IrqSlaveRequestValid == 0 {
				continue
			}
		}
		switch {
		case irq&IrqMasterResultValid != 0, irq&IrqSlaveResponseDone != 0:
			r.rng = rangingComplete
			return r.ClearIrq(mask)
		case irq&IrqMasterTimeout != 0, irq&IrqRxTxTimeout != 0:
			r.rng = rangingTimedOut
			if err := r.ClearIrq(mask | IrqRxTxTimeout); err != nil {
				return err
			}
			return ErrRangingTimeout
		case irq&IrqSlaveRequestDiscarded != 0:
			r.rng = rangingDiscarded
			if err := r.ClearIrq(mask); err != nil {
				return err
			}
			return ErrRangingDiscarded
		}
	}
}

// RangingResult reads the raw 24-bit counter and the frequency-error register of a
// completed exchange and converts them to a calibrated distance in meters. A counter
// outside the bandwidth's unambiguous window fails with ErrRangingAmbiguous.
func (r *Radio) RangingResult() (*RangingResult, error) {
	if err := r.requireRanging(); err != nil {
		return nil, err
	}
	if r.rng != rangingComplete {
		return nil, fmt.Errorf("%w: ranging result while %v", ErrInvalidStateTransition, r.rng)
	}
	rc := r.modCfg.(*RangingConfig)

	// freeze the result and select the raw mux before reading
	cfg, err := r.readRegs(REG_RANGING_RES_CFG, 1)
	if err != nil {
		return nil, err
	}
	if err := r.writeRegs(REG_RANGING_RES_CFG, cfg[0]&MASK_RANGING_MUX_SEL); err != nil {
		return nil, err
	}

	raw, err := r.readRegs(REG_RANGING_RESULT, 3)
	if err != nil {
		return nil, err
	}
	cnt := int32(raw[0])<<16 | int32(raw[1])<<8 | int32(raw[2])
	if cnt&0x800000 != 0 {
		cnt -= 1 << 24 // sign-extend the 24-bit counter
	}

	fei, err := r.readFrequencyError()
	if err != nil {
		return nil, err
	}
	rb, err := r.readRegs(REG_RANGING_RSSI, 1)
	if err != nil {
		return nil, err
	}
	rssi := float64(rb[0])/2.0 - 150.0

	sf := rc.SpreadingFactor - 5
	cal := rangingCalib[rc.Bandwidth][sf]
	counts := cnt - cal
	if counts > rangingMaxCounts[rc.Bandwidth] || counts < -rangingMaxCounts[rc.Bandwidth] {
		return nil, fmt.Errorf("%w: counter %d beyond window %d",
			ErrRangingAmbiguous, counts, rangingMaxCounts[rc.Bandwidth])
	}
	meters := float64(counts)*metersPerCount(rc.Bandwidth) +
		rangingFgrad[rc.Bandwidth][sf]*(fei/1000.0)
	r.log("ranging result: raw=%d cal=%d fei=%.0fHz rssi=%.1fdBm dist=%.2fm", cnt, cal, fei, rssi, meters)
	return &RangingResult{Raw: counts, Meters: meters, FeiHz: fei, Rssi: rssi}, nil
}

// readFrequencyError reads the 20-bit signed frequency-error estimate and scales it
// to Hz for the active bandwidth.
func (r *Radio) readFrequencyError() (float64, error) {
	b, err := r.readRegs(REG_FREQ_ERROR_MSB, 3)
	if err != nil {
		return 0, err
	}
	raw := (int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])) & MASK_FREQ_ERROR
	if raw&0x80000 != 0 {
		raw -= 1 << 20
	}
	rc, ok := r.modCfg.(*RangingConfig)
	bw := 1625.0
	if ok {
		bw = loraBwKhz[rc.Bandwidth]
	} else if lc, ok := r.modCfg.(*LoRaConfig); ok {
		bw = loraBwKhz[lc.Bandwidth]
	}
	return float64(raw) * 1.55 * (bw / 1600.0), nil
}

func (r *Radio) requireRanging() error {
	if !r.configured || r.packetType != PacketRanging {
		return fmt.Errorf("%w: ranging requires an applied RangingConfig", ErrNotConfigured)
	}
	return nil
}
