package radios

// The SPI and GPIO interfaces in here decouple the radio drivers from the gpio/bus library
// in use. Implementations exist for embd (below) and periph.io (periph.go); tests use
// in-memory fakes.

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kidoman/embd"
)

// SPI is the byte-transport used by the radio drivers. Tx performs a full-duplex
// transaction: w is clocked out while r is filled in, len(r) must equal len(w).
type SPI interface {
	Tx(w, r []byte) error
	Speed(hz int64) error
	Configure(mode int, bits int) error
	Close() error
}

const (
	SPIMode0 = 0x0 // CPOL=0, CPHA=0
	SPIMode1 = 0x1 // CPOL=0, CPHA=1
	SPIMode2 = 0x2 // CPOL=1, CPHA=0
	SPIMode3 = 0x3 // CPOL=1, CPHA=1
)

// GPIO is a single input or output pin. The radio drivers use one for the chip's busy
// line, one for the interrupt line, and one for reset.
type GPIO interface {
	In(edge int) error
	Read() int
	WaitForEdge(timeout time.Duration) bool
	Out(level int)
	Number() int
}

const (
	GpioLow         = 0
	GpioHigh        = 1
	GpioNoEdge      = 0
	GpioRisingEdge  = 1
	GpioFallingEdge = 2
	GpioBothEdges   = 3
)

//===== SPI shim for embd

// NewSPI returns an SPI backed by embd's first SPI bus. embd only applies the clock
// rate when the bus is first used, so the bus is opened on the first Tx and Speed and
// Configure must be called before that.
func NewSPI() SPI {
	return &spiShim{speed: 4 * 1000 * 1000, mode: SPIMode0}
}

type spiShim struct {
	bus   embd.SPIBus
	speed int64
	mode  int
}

func (s *spiShim) Tx(w, r []byte) error {
	if s.bus == nil {
		s.bus = embd.NewSPIBus(byte(s.mode), 0, int(s.speed), 8, 0)
	}
	copy(r, w)
	return s.bus.TransferAndReceiveData(r)
}

func (s *spiShim) Speed(hz int64) error {
	if hz <= 0 || hz > 10*1000*1000 {
		return fmt.Errorf("SPI: unsupported speed %dHz", hz)
	}
	if s.bus != nil && hz != s.speed {
		return errors.New("SPI: cannot change speed after first transfer")
	}
	s.speed = hz
	return nil
}

func (s *spiShim) Configure(mode int, bits int) error {
	if bits != 8 {
		return errors.New("SPI: sorry, only 8-bit mode supported")
	}
	if s.bus != nil && mode != s.mode {
		return errors.New("SPI: cannot change mode after first transfer")
	}
	s.mode = mode
	return nil
}

func (s *spiShim) Close() error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Close()
}

//===== GPIO shim for embd

// NewGPIO returns a GPIO for the named embd pin, or nil if the pin cannot be opened.
func NewGPIO(name string) GPIO {
	g, err := embd.NewDigitalPin(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "NewDigitalPin: %s\n", err)
		return nil
	}
	return &gpioShim{p: g, dir: embd.In, edge: make(chan struct{}, 1)}
}

type gpioShim struct {
	p    embd.DigitalPin
	dir  embd.Direction
	edge chan struct{}
}

func (g *gpioShim) In(edge int) error {
	if err := g.p.SetDirection(embd.In); err != nil {
		return err
	}
	g.dir = embd.In
	if edge != GpioNoEdge {
		e := []embd.Edge{embd.EdgeNone, embd.EdgeRising, embd.EdgeFalling, embd.EdgeBoth}[edge]
		return g.p.Watch(e, g.edgeCB)
	}
	return nil
}

func (g *gpioShim) Read() int {
	v, _ := g.p.Read()
	return v
}

func (g *gpioShim) WaitForEdge(timeout time.Duration) bool {
	to := time.After(timeout)
	select {
	case <-g.edge:
		return true
	case <-to:
		return false
	}
}

func (g *gpioShim) Out(level int) {
	if g.dir != embd.Out {
		g.p.SetDirection(embd.Out)
		g.dir = embd.Out
	}
	g.p.Write(level)
}

func (g *gpioShim) Number() int {
	return g.p.N()
}

func (g *gpioShim) edgeCB(embd.DigitalPin) {
	select {
	case g.edge <- struct{}{}:
	default:
	}
}
