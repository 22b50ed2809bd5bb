// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// sx1280-test exercises an SX1280 radio: it sends a couple of LoRa packets, receives
// for a while, or emits a continuous wave for antenna tuning, depending on the first
// command line argument (tx, rx, cw).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"periph.io/x/host/v3"

	"github.com/tve/radios"
	"github.com/tve/radios/sx1280"
)

func panicIf(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	spiName := flag.String("spi", "", "SPI port name, empty for the first available")
	busyName := flag.String("busy", "GPIO24", "busy pin name")
	intrName := flag.String("intr", "GPIO25", "DIO1 interrupt pin name")
	rstName := flag.String("rst", "", "reset pin name, empty for none")
	freq := flag.Int("freq", 2403000000, "center frequency in Hz, Khz, or Mhz")
	power := flag.Int("power", 10, "output power in dBm")
	sf := flag.Int("sf", 7, "LoRa spreading factor, 5..12")
	debug := flag.Bool("debug", false, "enable debug output")
	flag.Parse()

	_, err := host.Init()
	panicIf(err)

	spiBus, err := radios.NewPeriphSPI(*spiName, 10*1000*1000)
	panicIf(err)
	busyPin := radios.NewPeriphGPIO(*busyName)
	if busyPin == nil {
		panic("cannot open pin " + *busyName)
	}
	intrPin := radios.NewPeriphGPIO(*intrName)
	if intrPin == nil {
		panic("cannot open pin " + *intrName)
	}
	var rstPin radios.GPIO
	if *rstName != "" {
		rstPin = radios.NewPeriphGPIO(*rstName)
	}

	var logger sx1280.LogPrintf
	if *debug {
		logger = log.Printf
	}

	log.Printf("Initializing SX1280...")
	t0 := time.Now()
	radio, err := sx1280.New(spiBus, busyPin, intrPin, sx1280.RadioOpts{
		Freq:   uint32(*freq),
		Power:  int8(*power),
		Reset:  rstPin,
		Logger: logger,
	})
	panicIf(err)
	panicIf(radio.Configure(&sx1280.LoRaConfig{
		SpreadingFactor: byte(*sf),
		Bandwidth:       sx1280.BW_400,
		CodingRate:      sx1280.CR_4_5,
		PreambleLength:  12,
	}))
	log.Printf("Ready (%.1fms)", time.Since(t0).Seconds()*1000)

	mode := "rx"
	if flag.NArg() > 0 {
		mode = flag.Arg(0)
	}

	switch mode {
	case "tx":
		for i := 1; i <= 10; i++ {
			msg := fmt.Sprintf("\x01Hello %03d", i)
			t0 = time.Now()
			err := radio.Transmit(context.Background(), []byte(msg), time.Second)
			if err != nil {
				log.Printf("TX %d failed: %s", i, err)
				continue
			}
			log.Printf("Sent packet %d in %.1fms", i, time.Since(t0).Seconds()*1000)
			time.Sleep(500 * time.Millisecond)
		}

	case "rx":
		panicIf(radio.StartReceive())
		log.Printf("Receiving for 60 seconds...")
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		for {
			_, err := radio.WaitIrq(ctx, sx1280.IrqRxDone|sx1280.IrqCrcError)
			if err != nil {
				break
			}
			pkt, ps, err := radio.ReadPacket()
			if err != nil {
				log.Printf("RX error: %s", err)
				continue
			}
			log.Printf("RX %.1fdBm %.1fdB %db: %q", ps.Rssi, ps.Snr, len(pkt), pkt)
		}
		log.Printf("Done")

	case "cw":
		log.Printf("Emitting continuous wave for 10 seconds, don't try this outside a cage")
		panicIf(radio.TransmitContinuousWave())
		time.Sleep(10 * time.Second)
		panicIf(radio.Standby(sx1280.STDBY_RC))

	default:
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] tx|rx|cw\n", os.Args[0])
		os.Exit(1)
	}
}
