// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// mqttradio gateways between SX1280 radios and an MQTT broker: received packets are
// published as JSON to <prefix>/rx and packets published to <prefix>/tx are
// transmitted. Two radios can share one SPI chip select through a demux driven by an
// extra gpio pin, which covers boards that pair two SX1280 modules for ranging.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/chip"

	"github.com/tve/radios"
	"github.com/tve/radios/spimux"
	"github.com/tve/radios/sx1280"
)

type LogPrintf func(format string, v ...interface{})

// radioConfig collects the per-radio settings from the flags or the config file.
type radioConfig struct {
	Prefix string `json:"prefix"` // MQTT topic prefix
	Intr   string `json:"intr"`   // DIO1 interrupt pin name
	Busy   string `json:"busy"`   // busy pin name
	Freq   int    `json:"freq"`   // center frequency
	Sf     int    `json:"sf"`     // LoRa spreading factor
	Power  int    `json:"power"`  // output power in dBm
}

// startRadio instantiates one radio and hooks it up to the broker.
func startRadio(spiDev radios.SPI, c radioConfig, mq *mq, debug LogPrintf) error {
	intrPin := radios.NewGPIO(c.Intr)
	if intrPin == nil {
		return fmt.Errorf("cannot open pin %s", c.Intr)
	}
	var busyPin radios.GPIO
	if c.Busy != "" {
		if busyPin = radios.NewGPIO(c.Busy); busyPin == nil {
			return fmt.Errorf("cannot open pin %s", c.Busy)
		}
	}

	log.Printf("Initializing SX1280 for %s", c.Prefix)
	radio, err := sx1280.New(spiDev, busyPin, intrPin, sx1280.RadioOpts{
		Freq:   uint32(c.Freq),
		Power:  int8(c.Power),
		Logger: sx1280.LogPrintf(debug),
	})
	if err != nil {
		return err
	}
	if err := radio.Configure(&sx1280.LoRaConfig{
		SpreadingFactor: byte(c.Sf),
		Bandwidth:       sx1280.BW_400,
		CodingRate:      sx1280.CR_4_5,
		PreambleLength:  12,
	}); err != nil {
		return err
	}
	log.Printf("%s: radio ready", c.Prefix)

	return gateway(radio, c.Prefix, mq, debug)
}

// muxedSPI opens the SPI bus and uses an extra pin to mux it across two radios.
func muxedSPI(selPinName string) (radios.SPI, radios.SPI, error) {
	selPin := radios.NewGPIO(selPinName)
	if selPin == nil {
		return nil, nil, fmt.Errorf("cannot open pin %s", selPinName)
	}
	spiBus := radios.NewSPI()
	radio0, radio1 := spimux.New(spiBus, selPin)
	return radio0, radio1, nil
}

func main() {
	configFile := flag.String("config", "", "JSON config file, overrides the radio and broker flags")
	csPin := flag.String("cspin", "", "chip select mux pin name, empty for a single radio")
	debug := flag.Bool("debug", false, "enable debug output")

	mqttHost := flag.String("mqtt", "localhost:1883", "host:port of MQTT broker")

	intr0 := flag.String("intr0", "XIO-P0", "interrupt pin name for radio 0")
	busy0 := flag.String("busy0", "XIO-P2", "busy pin name for radio 0")
	sf0 := flag.Int("sf0", 7, "LoRa spreading factor for radio 0")
	power0 := flag.Int("power0", 10, "output power in dBm for radio 0")
	freq0 := flag.Int("freq0", 2403000000, "center frequency in any unit for radio 0")
	pref0 := flag.String("pref0", "radio/0", "MQTT topic prefix for radio 0")

	intr1 := flag.String("intr1", "XIO-P1", "interrupt pin name for radio 1")
	busy1 := flag.String("busy1", "XIO-P3", "busy pin name for radio 1")
	sf1 := flag.Int("sf1", 0, "LoRa spreading factor for radio 1, 0 to disable radio 1")
	power1 := flag.Int("power1", 10, "output power in dBm for radio 1")
	freq1 := flag.Int("freq1", 2425000000, "center frequency in any unit for radio 1")
	pref1 := flag.String("pref1", "radio/1", "MQTT topic prefix for radio 1")
	flag.Parse()

	var logger LogPrintf
	if *debug {
		logger = log.Printf
	}

	cfg := Config{Mqtt: *mqttHost, CsPin: *csPin, Radios: []radioConfig{
		{*pref0, *intr0, *busy0, *freq0, *sf0, *power0},
	}}
	if *sf1 != 0 {
		cfg.Radios = append(cfg.Radios,
			radioConfig{*pref1, *intr1, *busy1, *freq1, *sf1, *power1})
	}
	if *configFile != "" {
		c, err := loadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot load config: %s\n", err)
			os.Exit(2)
		}
		cfg = *c
	}

	mq, err := newMQ(cfg.Mqtt, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to MQTT broker: %s\n", err)
		os.Exit(2)
	}

	log.Printf("Opening radio")
	embd.InitGPIO()
	embd.InitSPI()

	spis := make([]radios.SPI, 2)
	if cfg.CsPin != "" {
		spis[0], spis[1], err = muxedSPI(cfg.CsPin)
	} else {
		spis[0] = radios.NewSPI()
	}

	for i := 0; err == nil && i < len(cfg.Radios); i++ {
		if spis[i] == nil {
			err = fmt.Errorf("radio %d needs a cspin to mux the SPI bus", i)
			break
		}
		err = startRadio(spis[i], cfg.Radios[i], mq, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Exiting due to error: %s\n", err)
		os.Exit(2)
	}
	log.Printf("Gateway is ready")
	for {
		time.Sleep(time.Hour)
	} // ugh!
}
