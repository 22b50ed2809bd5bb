// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// sx1280-range runs one side of an SX1280 two-way ranging exchange. Run it with
// -role slave on one host and with -role master on another to get a series of
// distance measurements, which the master prints and optionally appends to a
// sqlite database for later calibration work.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"periph.io/x/host/v3"

	"github.com/tve/radios"
	"github.com/tve/radios/sx1280"
	"github.com/tve/radios/thread"
)

// Measurement is one ranging result as stored in the sqlite database.
type Measurement struct {
	ID      uint `gorm:"primarykey"`
	At      time.Time
	Address uint32  // ranging address of the slave
	Sf      byte    // spreading factor used
	Raw     int32   // calibrated counter value
	Meters  float64 // computed distance
	FeiHz   float64 // frequency error during the exchange
}

func panicIf(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	spiName := flag.String("spi", "", "SPI port name, empty for the first available")
	busyName := flag.String("busy", "GPIO24", "busy pin name")
	intrName := flag.String("intr", "GPIO25", "DIO1 interrupt pin name")
	role := flag.String("role", "master", "ranging role: master or slave")
	addr := flag.Uint("addr", 0x19283746, "ranging address")
	freq := flag.Int("freq", 2403000000, "center frequency in Hz, Khz, or Mhz")
	sf := flag.Int("sf", 10, "LoRa spreading factor, 5..10")
	count := flag.Int("count", 20, "number of exchanges to run (master)")
	dbPath := flag.String("db", "", "sqlite database to append measurements to")
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

	var logger sx1280.LogPrintf
	if *debug {
		logger = log.Printf
	}

	radio, err := sx1280.New(spiBus, busyPin, intrPin, sx1280.RadioOpts{
		Freq:   uint32(*freq),
		Power:  13,
		Logger: logger,
	})
	panicIf(err)
	panicIf(radio.Configure(&sx1280.RangingConfig{
		LoRaConfig: sx1280.LoRaConfig{
			SpreadingFactor: byte(*sf),
			Bandwidth:       sx1280.BW_400,
			CodingRate:      sx1280.CR_4_5,
			PreambleLength:  12,
		},
		Address:   uint32(*addr),
		CheckBits: sx1280.RANGING_CHECK_32,
	}))

	if *role == "slave" {
		slave(radio)
		return
	}
	master(radio, uint32(*addr), byte(*sf), *count, *dbPath)
}

// slave answers ranging requests until killed.
func slave(radio *sx1280.Radio) {
	log.Printf("Answering ranging requests...")
	for {
		panicIf(radio.StartRanging(sx1280.RangingSlave))
		err := radio.WaitRanging(context.Background())
		if err != nil {
			log.Printf("Exchange failed: %s", err)
			panicIf(radio.Standby(sx1280.STDBY_RC))
			continue
		}
		log.Printf("Answered a request")
	}
}

// master runs count exchanges and reports the distance statistics.
func master(radio *sx1280.Radio, addr uint32, sf byte, count int, dbPath string) {
	if err := thread.Realtime(); err != nil {
		log.Printf("Cannot set realtime priority: %s", err)
	}

	var db *gorm.DB
	if dbPath != "" {
		var err error
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
		panicIf(err)
		panicIf(db.AutoMigrate(&Measurement{}))
	}

	var meters []float64
	for i := 0; i < count; i++ {
		panicIf(radio.StartRanging(sx1280.RangingMaster))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := radio.WaitRanging(ctx)
		cancel()
		if err != nil {
			log.Printf("Exchange %d failed: %s", i, err)
			// the chip may still be in TX if the context fired first
			panicIf(radio.Standby(sx1280.STDBY_RC))
			continue
		}
		res, err := radio.RangingResult()
		if err != nil {
			log.Printf("Exchange %d: %s", i, err)
			continue
		}
		log.Printf("Exchange %d: %.2fm (raw %d, fei %.0fHz)", i, res.Meters, res.Raw, res.FeiHz)
		meters = append(meters, res.Meters)
		if db != nil {
			m := &Measurement{At: time.Now(), Address: addr, Sf: sf,
				Raw: res.Raw, Meters: res.Meters, FeiHz: res.FeiHz}
			if err := db.Create(m).Error; err != nil {
				log.Printf("Cannot store measurement: %s", err)
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	if len(meters) == 0 {
		log.Printf("No successful exchange out of %d", count)
		return
	}
	mean, stddev := stats(meters)
	log.Printf("%d/%d exchanges: mean %.2fm stddev %.2fm", len(meters), count, mean, stddev)
}

func stats(v []float64) (mean, stddev float64) {
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	for _, x := range v {
		stddev += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(stddev / float64(len(v)))
}
