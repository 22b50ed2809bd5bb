// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/tve/radios/sx1280"
)

// RawRxPacket is the structure published to MQTT for raw packets received on a radio.
type RawRxPacket struct {
	Packet []byte    `json:"packet"` // payload as pulled from the radio buffer
	Rssi   float64   `json:"rssi"`   // RSSI in dBm for packet
	Snr    float64   `json:"snr"`    // signal to noise in dB, 0 for non-LoRa modems
	Crc    bool      `json:"crc"`    // true if the packet failed its CRC
	At     time.Time `json:"at"`     // time the packet was pulled from the radio
}

// RawTxPacket is the payload expected via MQTT for raw packets to be transmitted on a
// radio. It is a struct to allow more fields to be added in the future as needed.
type RawTxPacket struct {
	Packet []byte `json:"packet"`
}

// gateway runs the radio<->mqtt forwarding for one radio. The radio sits in continuous
// receive and is briefly pulled into standby to transmit, so a single goroutine owns
// the mode changes and there is no TX/RX race.
func gateway(radio *sx1280.Radio, prefix string, mq *mq, debug LogPrintf) error {
	txChan := make(chan RawTxPacket, 10)
	err := mq.Subscribe(prefix+"/tx", func(payload []byte) {
		var pkt RawTxPacket
		if err := json.Unmarshal(payload, &pkt); err != nil {
			log.Printf("%s: cannot json decode tx packet: %s", prefix, err)
			return
		}
		select {
		case txChan <- pkt:
		default:
			log.Printf("%s: tx queue full, dropping packet", prefix)
		}
	})
	if err != nil {
		return err
	}

	if err := radio.StartReceive(); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case pkt := <-txChan:
				if err := transmit(radio, prefix, pkt, debug); err != nil {
					log.Printf("%s: TX failed: %s", prefix, err)
				}
			default:
				receive(radio, prefix, mq, debug)
			}
		}
	}()
	return nil
}

// receive waits a short while for a packet and publishes it if one arrived.
func receive(radio *sx1280.Radio, prefix string, mq *mq, debug LogPrintf) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := radio.WaitIrq(ctx, sx1280.IrqRxDone|sx1280.IrqCrcError); err != nil {
		return // deadline, check the tx queue
	}
	pkt, ps, err := radio.ReadPacket()
	crc := false
	if errors.Is(err, sx1280.ErrCrc) {
		crc = true
	} else if err != nil {
		log.Printf("%s: RX error: %s", prefix, err)
		return
	}
	if debug != nil {
		debug("%s: RX %.1fdBm %.1fdB %db crc=%v", prefix, ps.Rssi, ps.Snr, len(pkt), crc)
	}
	mq.Publish(prefix+"/rx",
		&RawRxPacket{Packet: pkt, Rssi: ps.Rssi, Snr: ps.Snr, Crc: crc, At: time.Now()})
}

// transmit pulls the radio out of receive, sends one packet, and resumes receiving.
func transmit(radio *sx1280.Radio, prefix string, pkt RawTxPacket, debug LogPrintf) error {
	if err := radio.Standby(sx1280.STDBY_RC); err != nil {
		return err
	}
	if debug != nil {
		debug("%s: TX %db: %#x", prefix, len(pkt.Packet), pkt.Packet)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := radio.Transmit(ctx, pkt.Packet, time.Second)
	cancel()
	if rxErr := radio.StartReceive(); rxErr != nil && err == nil {
		err = rxErr
	}
	return err
}
