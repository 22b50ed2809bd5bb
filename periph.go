package radios

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// NewPeriphSPI opens the named periph.io SPI port and returns an SPI connected at the
// requested speed in mode 0. host.Init must have been called beforehand.
func NewPeriphSPI(name string, hz int64) (SPI, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("radios: cannot open SPI port %s: %v", name, err)
	}
	c, err := p.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("radios: cannot connect to %s: %v", name, err)
	}
	return &periphSPI{conn: c, port: p, speed: hz}, nil
}

// WrapPeriphSPI adapts an already-connected periph.io spi.Conn, e.g. one produced by
// spimux for radios sharing a bus.
func WrapPeriphSPI(c spi.Conn) SPI {
	return &periphSPI{conn: c, speed: 4000000}
}

type periphSPI struct {
	conn  spi.Conn
	port  spi.PortCloser
	speed int64
}

func (s *periphSPI) Tx(w, r []byte) error { return s.conn.Tx(w, r) }

func (s *periphSPI) Speed(hz int64) error {
	// the speed is fixed at Connect time
	if hz > s.speed {
		return fmt.Errorf("radios: SPI connected at %dHz, cannot raise to %dHz", s.speed, hz)
	}
	return nil
}

func (s *periphSPI) Configure(mode int, bits int) error {
	if mode != SPIMode0 || bits != 8 {
		return fmt.Errorf("radios: SPI connected in mode 0/8-bit, cannot switch")
	}
	return nil
}

func (s *periphSPI) Close() error {
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}

// NewPeriphGPIO returns a GPIO for the named periph.io pin, or nil if it cannot be found.
func NewPeriphGPIO(name string) GPIO {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil
	}
	return &periphGPIO{p: p}
}

type periphGPIO struct {
	p gpio.PinIO
}

func (g *periphGPIO) In(edge int) error {
	e := []gpio.Edge{gpio.NoEdge, gpio.RisingEdge, gpio.FallingEdge, gpio.BothEdges}[edge&3]
	return g.p.In(gpio.PullDown, e)
}

func (g *periphGPIO) Read() int {
	if g.p.Read() == gpio.High {
		return GpioHigh
	}
	return GpioLow
}

func (g *periphGPIO) WaitForEdge(timeout time.Duration) bool {
	return g.p.WaitForEdge(timeout)
}

func (g *periphGPIO) Out(level int) {
	g.p.Out(level == GpioHigh)
}

func (g *periphGPIO) Number() int {
	return g.p.Number()
}
