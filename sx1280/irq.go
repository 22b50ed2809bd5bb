// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1280

import (
	"fmt"
	"strings"
)

// IrqStatus is the chip's 16-bit interrupt flag register. Flags are set by the chip as
// events occur and are write-1-to-clear through ClearIrqStatus: a flag stays set, and
// masks any repeat of the same event, until it is cleared.
type IrqStatus uint16

const (
	IrqTxDone                IrqStatus = 1 << 0
	IrqRxDone                IrqStatus = 1 << 1
	IrqSyncWordValid         IrqStatus = 1 << 2
	IrqSyncWordError         IrqStatus = 1 << 3
	IrqHeaderValid           IrqStatus = 1 << 4
	IrqHeaderError           IrqStatus = 1 << 5
	IrqCrcError              IrqStatus = 1 << 6
	IrqSlaveResponseDone     IrqStatus = 1 << 7
	IrqSlaveRequestDiscarded IrqStatus = 1 << 8
	IrqMasterResultValid     IrqStatus = 1 << 9
	IrqMasterTimeout         IrqStatus = 1 << 10
	IrqSlaveRequestValid     IrqStatus = 1 << 11
	IrqCadDone               IrqStatus = 1 << 12
	IrqCadDetected           IrqStatus = 1 << 13
	IrqRxTxTimeout           IrqStatus = 1 << 14
	IrqPreambleDetected      IrqStatus = 1 << 15
	IrqNone                  IrqStatus = 0
	IrqAll                   IrqStatus = 0xFFFF
)

var irqNames = []string{
	"TxDone", "RxDone", "SyncWordValid", "SyncWordError", "HeaderValid", "HeaderError",
	"CrcError", "SlaveResponseDone", "SlaveRequestDiscarded", "MasterResultValid",
	"MasterTimeout", "SlaveRequestValid", "CadDone", "CadDetected", "RxTxTimeout",
	"PreambleDetected",
}

func (i IrqStatus) String() string {
	if i == 0 {
		return "none"
	}
	var names []string
	for bit, name := range irqNames {
		if i&(1<<bit) != 0 {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// bytes returns the register value big-endian, as ClearIrqStatus and SetDioIrqParams
// expect it on the wire.
func (i IrqStatus) bytes() []byte {
	return []byte{byte(i >> 8), byte(i)}
}

// decodeIrqStatus parses the two big-endian bytes returned by GetIrqStatus.
func decodeIrqStatus(b []byte) (IrqStatus, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("%w: irq status is %d bytes, expected 2", ErrMalformedResponse, len(b))
	}
	return IrqStatus(b[0])<<8 | IrqStatus(b[1]), nil
}
